package repository

import (
	"context"
	"time"

	"vcf-drop/internal/domain"
	"vcf-drop/internal/notify"
	"vcf-drop/pkg/logger"
)

// NotifyingStore publishes a change event after every committed write.
// Publish failures are logged; the write has already succeeded.
type NotifyingStore struct {
	RecordStore
	notifier notify.Notifier
	source   string
	logger   *logger.Logger
	now      func() time.Time
}

// NewNotifyingStore wraps inner. source identifies this replica in events.
func NewNotifyingStore(inner RecordStore, notifier notify.Notifier, source string, log *logger.Logger) *NotifyingStore {
	return &NotifyingStore{
		RecordStore: inner,
		notifier:    notifier,
		source:      source,
		logger:      log,
		now:         time.Now,
	}
}

func (s *NotifyingStore) PutContact(ctx context.Context, contact domain.Contact) error {
	if err := s.RecordStore.PutContact(ctx, contact); err != nil {
		return err
	}
	s.publish(ctx, domain.EventContactAdded)
	return nil
}

func (s *NotifyingStore) PatchSettings(ctx context.Context, patch domain.SettingsPatch) (domain.Settings, error) {
	settings, err := s.RecordStore.PatchSettings(ctx, patch)
	if err != nil {
		return domain.Settings{}, err
	}
	s.publish(ctx, domain.EventSettingsUpdated)
	return settings, nil
}

func (s *NotifyingStore) PutGroups(ctx context.Context, groups []domain.GroupLink) error {
	if err := s.RecordStore.PutGroups(ctx, groups); err != nil {
		return err
	}
	s.publish(ctx, domain.EventGroupsUpdated)
	return nil
}

func (s *NotifyingStore) DeleteAllContacts(ctx context.Context) error {
	if err := s.RecordStore.DeleteAllContacts(ctx); err != nil {
		return err
	}
	s.publish(ctx, domain.EventReset)
	return nil
}

func (s *NotifyingStore) publish(ctx context.Context, eventType domain.EventType) {
	event := domain.Event{Type: eventType, At: s.now(), Source: s.source}
	if err := s.notifier.Publish(ctx, event); err != nil {
		s.logger.WithFields(map[string]interface{}{
			"event": string(eventType),
			"error": err.Error(),
		}).Warn("Failed to publish change event")
	}
}
