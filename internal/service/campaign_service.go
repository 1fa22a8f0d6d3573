package service

import (
	"context"
	stderrors "errors"
	"strings"
	"sync"

	"vcf-drop/internal/campaign"
	"vcf-drop/internal/domain"
	"vcf-drop/internal/export"
	"vcf-drop/internal/repository"
	"vcf-drop/pkg/errors"
	"vcf-drop/pkg/logger"
	"vcf-drop/pkg/utils"
)

// User-facing messages
const (
	MessageJoined         = "JOINED SUCCESSFULLY"
	MessageFieldsRequired = "NAME AND PHONE REQUIRED"
	MessageInvalidPhone   = "INVALID PHONE NUMBER"
	MessageInvalidName    = "INVALID NAME"
	MessageInputTooLong   = "INPUT TOO LONG"
	MessageNoContacts     = "NO CONTACTS TO EXPORT"
	MessageNoOverflow     = "NO OVERFLOW CONTACTS"
	MessageBatchNotFound  = "BATCH NOT FOUND"
	MessageGroupNotFound  = "GROUP NOT FOUND"
	MessageNoActiveGroup  = "NO GROUP CONFIGURED"
	MessageInvalidTarget  = "TARGET MUST BE A POSITIVE NUMBER"
	MessageInvalidGroups  = "INVALID GROUP LIST"
)

// Input limits
const (
	maxNameLength  = 200
	maxPhoneLength = 40
)

// Export is a rendered vCard file
type Export struct {
	Filename string
	Content  string
	Contacts int
}

// campaignService serializes every read-decide-write cycle in this process
type campaignService struct {
	store        repository.RecordStore
	engine       *campaign.Engine
	formatter    *export.Formatter
	logger       *logger.Logger
	cloudEnabled bool
	mu           sync.Mutex
}

// NewCampaignService creates a new campaign service. cloudEnabled is reported
// in status responses so clients can show a no-sync indicator.
func NewCampaignService(store repository.RecordStore, engine *campaign.Engine, formatter *export.Formatter, logger *logger.Logger, cloudEnabled bool) CampaignService {
	return &campaignService{
		store:        store,
		engine:       engine,
		formatter:    formatter,
		logger:       logger,
		cloudEnabled: cloudEnabled,
	}
}

func (s *campaignService) Status(ctx context.Context) (*domain.CampaignStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	settings, err := s.currentSettings(ctx)
	if err != nil {
		return nil, err
	}
	contactsGauge.Set(float64(settings.TotalCollected))
	return s.status(settings), nil
}

func (s *campaignService) Submit(ctx context.Context, name, phone string) (*domain.Decision, error) {
	name = strings.TrimSpace(name)
	phone = strings.TrimSpace(phone)
	if name == "" || phone == "" {
		submissionsTotal.WithLabelValues(outcomeInvalid).Inc()
		return nil, errors.NewValidationError(MessageFieldsRequired, nil)
	}
	if len(name) > maxNameLength || len(phone) > maxPhoneLength {
		submissionsTotal.WithLabelValues(outcomeInvalid).Inc()
		return nil, errors.NewValidationError(MessageInputTooLong, nil)
	}
	// Names are written verbatim into vCard lines, so CR/LF would start a
	// new property.
	if utils.HasControlChars(name) {
		submissionsTotal.WithLabelValues(outcomeInvalid).Inc()
		return nil, errors.NewValidationError(MessageInvalidName, nil)
	}
	if !utils.HasDigits(phone) || utils.HasControlChars(phone) {
		submissionsTotal.WithLabelValues(outcomeInvalid).Inc()
		return nil, errors.NewValidationError(MessageInvalidPhone, nil)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.logger.WithField("phone_hash", utils.HashPhoneForLog(phone))

	settings, err := s.currentSettings(ctx)
	if err != nil {
		submissionsTotal.WithLabelValues(outcomeError).Inc()
		return nil, err
	}
	contacts, err := s.store.GetContacts(ctx)
	if err != nil {
		submissionsTotal.WithLabelValues(outcomeError).Inc()
		log.WithError(err).Error("Failed to read contacts")
		return nil, errors.NewPersistenceError(err)
	}

	decision := s.engine.Submit(name, phone, settings, contacts)
	if !decision.Accepted {
		submissionsTotal.WithLabelValues(outcomeFor(decision.Reason)).Inc()
		log.WithField("reason", string(decision.Reason)).Info("Submission rejected")
		return &decision, nil
	}

	if err := s.store.PutContact(ctx, *decision.Contact); err != nil {
		if stderrors.Is(err, repository.ErrDuplicatePhone) {
			// Another writer stored the same phone after our read
			submissionsTotal.WithLabelValues(outcomeDuplicate).Inc()
			log.Info("Submission rejected by store uniqueness")
			return &domain.Decision{Reason: domain.ReasonDuplicate}, nil
		}
		submissionsTotal.WithLabelValues(outcomeError).Inc()
		log.WithError(err).Error("Failed to store contact")
		return nil, errors.NewPersistenceError(err)
	}

	// Reconcile the total from an authoritative count, not the local increment
	if n, err := s.store.CountContacts(ctx); err != nil {
		log.WithError(err).Warn("Failed to recount contacts, using local total")
	} else {
		decision.Patch.TotalCollected = domain.Int(n)
	}

	updated, err := s.store.PatchSettings(ctx, decision.Patch)
	if err != nil {
		// The contact is stored; the next submission recounts and re-arms
		log.WithError(err).Error("Failed to update settings after accepting contact")
	} else {
		contactsGauge.Set(float64(updated.TotalCollected))
	}

	submissionsTotal.WithLabelValues(outcomeAccepted).Inc()
	if decision.Contact.IsOverflow {
		overflowTotal.Inc()
	}
	if decision.CountdownStarted {
		countdownsStarted.Inc()
		log.WithField("target", settings.TargetCount).Info("Target reached, countdown started")
	}

	log.WithFields(map[string]interface{}{
		"contact_id":  decision.Contact.ID,
		"is_overflow": decision.Contact.IsOverflow,
	}).Info("Submission accepted")

	return &decision, nil
}

func (s *campaignService) ActiveGroup(ctx context.Context) (*domain.GroupLink, error) {
	groups, err := s.store.GetGroups(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Failed to read groups")
		return nil, errors.NewPersistenceError(err)
	}
	group, ok := campaign.ActiveGroup(groups)
	if !ok {
		return nil, errors.NewNotFoundError(MessageNoActiveGroup)
	}
	return &group, nil
}

func (s *campaignService) RefreshCountdown(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	settings, err := s.readSettings(ctx)
	if err != nil {
		return false, err
	}
	after, err := s.expireCountdown(ctx, settings)
	if err != nil {
		return false, err
	}
	return after.IsSystemLocked && !settings.IsSystemLocked, nil
}

func (s *campaignService) Dashboard(ctx context.Context) (*domain.Dashboard, error) {
	status, err := s.Status(ctx)
	if err != nil {
		return nil, err
	}
	contacts, err := s.Contacts(ctx)
	if err != nil {
		return nil, err
	}

	standard, overflow := domain.CountOverflow(contacts)
	return &domain.Dashboard{
		Status:        *status,
		StandardCount: standard,
		OverflowCount: overflow,
		BatchCount:    (standard + export.BatchSize - 1) / export.BatchSize,
		Contacts:      contacts,
	}, nil
}

func (s *campaignService) Contacts(ctx context.Context) ([]domain.Contact, error) {
	contacts, err := s.store.GetContacts(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Failed to read contacts")
		return nil, errors.NewPersistenceError(err)
	}
	return contacts, nil
}

func (s *campaignService) SetTarget(ctx context.Context, target int) (*domain.CampaignStatus, error) {
	patch, err := campaign.SetTarget(target)
	if err != nil {
		return nil, errors.NewValidationError(MessageInvalidTarget, map[string]interface{}{"targetCount": target})
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	settings, err := s.patch(ctx, patch)
	if err != nil {
		return nil, err
	}
	s.logger.WithField("target", target).Info("Target updated")
	return s.status(settings), nil
}

func (s *campaignService) Lock(ctx context.Context) (*domain.CampaignStatus, error) {
	return s.transition(ctx, "admin lock", campaign.Lock)
}

func (s *campaignService) Unlock(ctx context.Context) (*domain.CampaignStatus, error) {
	return s.transition(ctx, "admin unlock", campaign.Unlock)
}

func (s *campaignService) Groups(ctx context.Context) ([]domain.GroupLink, error) {
	groups, err := s.store.GetGroups(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Failed to read groups")
		return nil, errors.NewPersistenceError(err)
	}
	return groups, nil
}

func (s *campaignService) PutGroups(ctx context.Context, groups []domain.GroupLink) ([]domain.GroupLink, error) {
	if err := campaign.ValidateGroups(groups); err != nil {
		return nil, errors.NewValidationError(MessageInvalidGroups, map[string]interface{}{"reason": err.Error()})
	}
	normalized := campaign.NormalizeGroups(groups)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.PutGroups(ctx, normalized); err != nil {
		s.logger.WithError(err).Error("Failed to store groups")
		return nil, errors.NewPersistenceError(err)
	}
	s.logger.WithField("groups", len(normalized)).Info("Groups replaced")
	return normalized, nil
}

func (s *campaignService) ActivateGroup(ctx context.Context, id string) ([]domain.GroupLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	groups, err := s.store.GetGroups(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Failed to read groups")
		return nil, errors.NewPersistenceError(err)
	}
	updated, err := campaign.ActivateGroup(groups, id)
	if err != nil {
		return nil, errors.NewNotFoundError(MessageGroupNotFound)
	}
	if err := s.store.PutGroups(ctx, updated); err != nil {
		s.logger.WithError(err).Error("Failed to store groups")
		return nil, errors.NewPersistenceError(err)
	}
	s.logger.WithField("group_id", id).Info("Group activated")
	return updated, nil
}

func (s *campaignService) Reset(ctx context.Context) (*domain.CampaignStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.DeleteAllContacts(ctx); err != nil {
		s.logger.WithError(err).Error("Failed to delete contacts")
		return nil, errors.NewPersistenceError(err)
	}
	settings, err := s.patch(ctx, campaign.ResetPatch())
	if err != nil {
		return nil, err
	}
	contactsGauge.Set(0)
	s.logger.Warn("Campaign reset")
	return s.status(settings), nil
}

func (s *campaignService) ExportManifest(ctx context.Context) ([]export.File, error) {
	contacts, err := s.Contacts(ctx)
	if err != nil {
		return nil, err
	}
	files := s.formatter.Manifest(contacts)
	if files == nil {
		files = []export.File{}
	}
	return files, nil
}

func (s *campaignService) ExportAll(ctx context.Context) (*Export, error) {
	contacts, err := s.Contacts(ctx)
	if err != nil {
		return nil, err
	}
	if len(contacts) == 0 {
		return nil, errors.NewNotFoundError(MessageNoContacts)
	}
	return s.render(s.formatter.CompleteFilename(), contacts), nil
}

// ExportBatch renders standard batch n, counting from 1
func (s *campaignService) ExportBatch(ctx context.Context, n int) (*Export, error) {
	contacts, err := s.Contacts(ctx)
	if err != nil {
		return nil, err
	}
	standard, _ := export.SplitOverflow(contacts)
	batches := export.Batches(standard, export.BatchSize)
	if n < 1 || n > len(batches) {
		return nil, errors.NewNotFoundError(MessageBatchNotFound)
	}
	return s.render(s.formatter.BatchFilename(n), batches[n-1]), nil
}

func (s *campaignService) ExportOverflow(ctx context.Context) (*Export, error) {
	contacts, err := s.Contacts(ctx)
	if err != nil {
		return nil, err
	}
	_, overflow := export.SplitOverflow(contacts)
	if len(overflow) == 0 {
		return nil, errors.NewNotFoundError(MessageNoOverflow)
	}
	return s.render(s.formatter.OverflowFilename(), overflow), nil
}

func (s *campaignService) render(filename string, contacts []domain.Contact) *Export {
	return &Export{
		Filename: filename,
		Content:  s.formatter.Format(contacts),
		Contacts: len(contacts),
	}
}

// transition applies an admin state change computed from current settings.
// Callers must not hold s.mu.
func (s *campaignService) transition(ctx context.Context, name string, build func(domain.Settings) domain.SettingsPatch) (*domain.CampaignStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.readSettings(ctx)
	if err != nil {
		return nil, err
	}
	settings, err := s.patch(ctx, build(current))
	if err != nil {
		return nil, err
	}
	if settings.IsSystemLocked && !current.IsSystemLocked {
		locksTotal.WithLabelValues("admin").Inc()
	}
	s.logger.WithField("state", string(settings.State())).Info("Campaign " + name)
	return s.status(settings), nil
}

// currentSettings reads settings and applies a due countdown expiry.
// Callers hold s.mu.
func (s *campaignService) currentSettings(ctx context.Context) (domain.Settings, error) {
	settings, err := s.readSettings(ctx)
	if err != nil {
		return domain.Settings{}, err
	}
	return s.expireCountdown(ctx, settings)
}

func (s *campaignService) expireCountdown(ctx context.Context, settings domain.Settings) (domain.Settings, error) {
	patch, due := s.engine.EvaluateCountdown(settings)
	if !due {
		return settings, nil
	}
	updated, err := s.patch(ctx, patch)
	if err != nil {
		return domain.Settings{}, err
	}
	locksTotal.WithLabelValues("countdown").Inc()
	s.logger.WithField("total", updated.TotalCollected).Info("Countdown expired, submissions locked")
	return updated, nil
}

func (s *campaignService) readSettings(ctx context.Context) (domain.Settings, error) {
	settings, err := s.store.GetSettings(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Failed to read settings")
		return domain.Settings{}, errors.NewPersistenceError(err)
	}
	return settings, nil
}

func (s *campaignService) patch(ctx context.Context, patch domain.SettingsPatch) (domain.Settings, error) {
	settings, err := s.store.PatchSettings(ctx, patch)
	if err != nil {
		s.logger.WithError(err).Error("Failed to update settings")
		return domain.Settings{}, errors.NewPersistenceError(err)
	}
	return settings, nil
}

func (s *campaignService) status(settings domain.Settings) *domain.CampaignStatus {
	status := domain.NewCampaignStatus(settings, s.engine.Countdown(settings), s.cloudEnabled)
	return &status
}
