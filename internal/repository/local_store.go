package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"vcf-drop/internal/domain"
	"vcf-drop/pkg/logger"
	"vcf-drop/pkg/utils"
)

// LocalStore keeps settings and groups as JSON blobs in a KV. A blob that
// fails to decode is replaced by its seeded default and a warning is logged.
//
// Contacts are a KV list of JSON entries plus an index of claimed phone
// digits, so concurrent submitters (in this process or in other replicas on
// the same KV) append without overwriting each other.
type LocalStore struct {
	kv     KV
	keys   Keys
	seed   domain.Seed
	logger *logger.Logger

	// serializes read-modify-write cycles inside this process
	mu sync.Mutex
}

// NewLocalStore creates a store over kv
func NewLocalStore(kv KV, keys Keys, seed domain.Seed, log *logger.Logger) *LocalStore {
	return &LocalStore{kv: kv, keys: keys, seed: seed, logger: log}
}

// GetContacts returns contacts in submission order. Entries that fail to
// decode are skipped with a warning.
func (s *LocalStore) GetContacts(ctx context.Context) ([]domain.Contact, error) {
	entries, err := s.kv.Range(ctx, s.keys.Contacts)
	if err != nil {
		return []domain.Contact{}, fmt.Errorf("failed to read %s: %w", s.keys.Contacts, err)
	}

	contacts := make([]domain.Contact, 0, len(entries))
	for i, raw := range entries {
		var c domain.Contact
		if err := json.Unmarshal([]byte(raw), &c); err != nil {
			s.logger.WithFields(map[string]interface{}{
				"key":   s.keys.Contacts,
				"index": i,
				"error": err.Error(),
			}).Warn("Skipping corrupt contact entry")
			continue
		}
		contacts = append(contacts, c)
	}
	return contacts, nil
}

func (s *LocalStore) CountContacts(ctx context.Context) (int, error) {
	contacts, err := s.GetContacts(ctx)
	return len(contacts), err
}

func (s *LocalStore) GetSettings(ctx context.Context) (domain.Settings, error) {
	raw, found, err := s.read(ctx, s.keys.Settings)
	if err != nil {
		return domain.Settings{}, err
	}
	if !found {
		return s.seed.Settings, nil
	}

	settings, err := decodeSettings([]byte(raw), s.seed.Settings)
	if err != nil {
		s.repair(ctx, s.keys.Settings, s.seed.Settings, err)
		return s.seed.Settings, nil
	}
	return settings, nil
}

func (s *LocalStore) GetGroups(ctx context.Context) ([]domain.GroupLink, error) {
	raw, found, err := s.read(ctx, s.keys.Groups)
	if err != nil {
		return nil, err
	}
	if !found {
		return domain.CloneGroups(s.seed.Groups), nil
	}

	var groups []domain.GroupLink
	if err := json.Unmarshal([]byte(raw), &groups); err != nil {
		s.repair(ctx, s.keys.Groups, s.seed.Groups, err)
		return domain.CloneGroups(s.seed.Groups), nil
	}
	if groups == nil {
		groups = []domain.GroupLink{}
	}
	return groups, nil
}

// PutContact appends contact, refusing a phone whose digits are already
// claimed
func (s *LocalStore) PutContact(ctx context.Context, contact domain.Contact) error {
	err := s.appendContact(ctx, contact)
	if errors.Is(err, ErrMemberClaimed) {
		return ErrDuplicatePhone
	}
	return err
}

func (s *LocalStore) PatchSettings(ctx context.Context, patch domain.SettingsPatch) (domain.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.GetSettings(ctx)
	if err != nil {
		return domain.Settings{}, err
	}
	merged := patch.Apply(current)
	if err := s.write(ctx, s.keys.Settings, merged); err != nil {
		return domain.Settings{}, err
	}
	return merged, nil
}

func (s *LocalStore) PutGroups(ctx context.Context, groups []domain.GroupLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if groups == nil {
		groups = []domain.GroupLink{}
	}
	return s.write(ctx, s.keys.Groups, groups)
}

// DeleteAllContacts drops the contact list together with its phone index
func (s *LocalStore) DeleteAllContacts(ctx context.Context) error {
	if err := s.kv.Delete(ctx, s.keys.Contacts, s.keys.Phones); err != nil {
		return fmt.Errorf("failed to clear %s: %w", s.keys.Contacts, err)
	}
	return nil
}

// EnsureDefaults writes the seed for every record that is absent, in one
// batch. Present records, even corrupt ones, are left for repair on read.
func (s *LocalStore) EnsureDefaults(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	seeds := map[string]interface{}{
		s.keys.Settings: s.seed.Settings,
		s.keys.Groups:   s.seed.Groups,
	}

	missing := make(map[string]string, len(seeds))
	for key, seed := range seeds {
		_, found, err := s.read(ctx, key)
		if err != nil {
			return err
		}
		if found {
			continue
		}
		data, err := json.Marshal(seed)
		if err != nil {
			return fmt.Errorf("failed to encode %s: %w", key, err)
		}
		missing[key] = string(data)
	}

	if len(missing) == 0 {
		return nil
	}
	if err := s.kv.SetMany(ctx, missing); err != nil {
		return fmt.Errorf("failed to seed defaults: %w", err)
	}
	return nil
}

// ReplaceContacts overwrites the stored contacts with a remote snapshot.
// Repeated phones in the snapshot keep their first entry.
func (s *LocalStore) ReplaceContacts(ctx context.Context, contacts []domain.Contact) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.DeleteAllContacts(ctx); err != nil {
		return err
	}
	for _, c := range contacts {
		if err := s.appendContact(ctx, c); err != nil && !errors.Is(err, ErrMemberClaimed) {
			return err
		}
	}
	return nil
}

// ReplaceSettings overwrites the stored settings with a remote snapshot
func (s *LocalStore) ReplaceSettings(ctx context.Context, settings domain.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(ctx, s.keys.Settings, settings)
}

func (s *LocalStore) appendContact(ctx context.Context, contact domain.Contact) error {
	data, err := json.Marshal(contact)
	if err != nil {
		return fmt.Errorf("failed to encode contact: %w", err)
	}
	err = s.kv.AppendUnique(ctx, s.keys.Contacts, s.keys.Phones, phoneClaim(contact.Phone), string(data))
	if err != nil && !errors.Is(err, ErrMemberClaimed) {
		return fmt.Errorf("failed to write %s: %w", s.keys.Contacts, err)
	}
	return err
}

// phoneClaim is the index member for a phone. Digits when it has any, so
// formatting variants collide; the raw string otherwise.
func phoneClaim(phone string) string {
	if digits := utils.NormalizePhoneNumber(phone); digits != "" {
		return digits
	}
	return phone
}

func (s *LocalStore) read(ctx context.Context, key string) (string, bool, error) {
	raw, err := s.kv.Get(ctx, key)
	if errors.Is(err, ErrKeyNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return raw, true, nil
}

func (s *LocalStore) write(ctx context.Context, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	if err := s.kv.Set(ctx, key, string(data)); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

// repair reseeds a corrupt blob. Failure to rewrite is logged, not returned.
func (s *LocalStore) repair(ctx context.Context, key string, seed interface{}, cause error) {
	s.logger.WithFields(map[string]interface{}{
		"key":   key,
		"error": cause.Error(),
	}).Warn("Corrupt record replaced with default")

	if err := s.write(ctx, key, seed); err != nil {
		s.logger.WithError(err).Error("Failed to rewrite corrupt record")
	}
}

// decodeSettings merges a stored settings blob over defaults, so fields
// missing from older blobs keep their default values
func decodeSettings(raw []byte, defaults domain.Settings) (domain.Settings, error) {
	settings := defaults
	if err := json.Unmarshal(raw, &settings); err != nil {
		return domain.Settings{}, err
	}
	return settings, nil
}
