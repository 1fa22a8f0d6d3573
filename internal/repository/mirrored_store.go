package repository

import (
	"context"
	"errors"

	"vcf-drop/internal/domain"
	"vcf-drop/pkg/logger"
)

// MirroredStore treats remote as authoritative and keeps local as an offline
// copy. Writes go to remote first and are mirrored only after they succeed.
// Reads fall back to local when remote is unreachable.
type MirroredStore struct {
	remote RecordStore
	local  *LocalStore
	logger *logger.Logger
}

// NewMirroredStore creates a mirrored store
func NewMirroredStore(remote RecordStore, local *LocalStore, log *logger.Logger) *MirroredStore {
	return &MirroredStore{remote: remote, local: local, logger: log}
}

func (m *MirroredStore) GetContacts(ctx context.Context) ([]domain.Contact, error) {
	contacts, err := m.remote.GetContacts(ctx)
	if err != nil {
		m.fallback("GetContacts", err)
		return m.local.GetContacts(ctx)
	}
	m.mirror("contacts", m.local.ReplaceContacts(ctx, contacts))
	return contacts, nil
}

// CountContacts never falls back: callers use it to reconcile totals
func (m *MirroredStore) CountContacts(ctx context.Context) (int, error) {
	return m.remote.CountContacts(ctx)
}

func (m *MirroredStore) GetSettings(ctx context.Context) (domain.Settings, error) {
	settings, err := m.remote.GetSettings(ctx)
	if err != nil {
		m.fallback("GetSettings", err)
		return m.local.GetSettings(ctx)
	}
	m.mirror("settings", m.local.ReplaceSettings(ctx, settings))
	return settings, nil
}

func (m *MirroredStore) GetGroups(ctx context.Context) ([]domain.GroupLink, error) {
	groups, err := m.remote.GetGroups(ctx)
	if err != nil {
		m.fallback("GetGroups", err)
		return m.local.GetGroups(ctx)
	}
	m.mirror("groups", m.local.PutGroups(ctx, groups))
	return groups, nil
}

func (m *MirroredStore) PutContact(ctx context.Context, contact domain.Contact) error {
	if err := m.remote.PutContact(ctx, contact); err != nil {
		return err
	}
	// A stale mirror may already hold the phone; the remote accepted it
	if err := m.local.PutContact(ctx, contact); err != nil && !errors.Is(err, ErrDuplicatePhone) {
		m.mirror("contacts", err)
	}
	return nil
}

func (m *MirroredStore) PatchSettings(ctx context.Context, patch domain.SettingsPatch) (domain.Settings, error) {
	settings, err := m.remote.PatchSettings(ctx, patch)
	if err != nil {
		return domain.Settings{}, err
	}
	m.mirror("settings", m.local.ReplaceSettings(ctx, settings))
	return settings, nil
}

func (m *MirroredStore) PutGroups(ctx context.Context, groups []domain.GroupLink) error {
	if err := m.remote.PutGroups(ctx, groups); err != nil {
		return err
	}
	m.mirror("groups", m.local.PutGroups(ctx, groups))
	return nil
}

func (m *MirroredStore) DeleteAllContacts(ctx context.Context) error {
	if err := m.remote.DeleteAllContacts(ctx); err != nil {
		return err
	}
	m.mirror("contacts", m.local.DeleteAllContacts(ctx))
	return nil
}

func (m *MirroredStore) EnsureDefaults(ctx context.Context) error {
	if err := m.remote.EnsureDefaults(ctx); err != nil {
		return err
	}
	m.mirror("defaults", m.local.EnsureDefaults(ctx))
	return nil
}

func (m *MirroredStore) fallback(op string, err error) {
	m.logger.WithFields(map[string]interface{}{
		"operation": op,
		"error":     err.Error(),
	}).Warn("Remote store unavailable, reading local mirror")
}

func (m *MirroredStore) mirror(record string, err error) {
	if err == nil {
		return
	}
	m.logger.WithFields(map[string]interface{}{
		"record": record,
		"error":  err.Error(),
	}).Warn("Failed to update local mirror")
}
