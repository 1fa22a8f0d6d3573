package repository

import (
	"context"
	"errors"

	"vcf-drop/internal/domain"
)

var (
	// ErrDuplicatePhone is returned by PutContact when a contact with the same
	// digit-normalized phone already exists
	ErrDuplicatePhone = errors.New("phone number already registered")

	// ErrKeyNotFound is returned by a KV on a missing key
	ErrKeyNotFound = errors.New("key not found")

	// ErrMemberClaimed is returned by KV.AppendUnique when the member is
	// already present in the index
	ErrMemberClaimed = errors.New("member already claimed")
)

// RecordStore persists contacts, the settings singleton and group links.
// Implementations are interchangeable; callers never branch on the backend.
type RecordStore interface {
	// GetContacts returns every contact in insertion order
	GetContacts(ctx context.Context) ([]domain.Contact, error)

	// CountContacts returns an authoritative count of stored contacts
	CountContacts(ctx context.Context) (int, error)

	// GetSettings returns the settings, or the seeded defaults if never stored
	GetSettings(ctx context.Context) (domain.Settings, error)

	// GetGroups returns the group links in stored order
	GetGroups(ctx context.Context) ([]domain.GroupLink, error)

	// PutContact appends a contact
	PutContact(ctx context.Context, contact domain.Contact) error

	// PatchSettings merges patch into the stored settings and returns the result
	PatchSettings(ctx context.Context, patch domain.SettingsPatch) (domain.Settings, error)

	// PutGroups replaces every group link
	PutGroups(ctx context.Context, groups []domain.GroupLink) error

	// DeleteAllContacts removes every contact
	DeleteAllContacts(ctx context.Context) error

	// EnsureDefaults writes the seed records that are absent
	EnsureDefaults(ctx context.Context) error
}

// KV is a string key-value surface for the local store
type KV interface {
	// Get returns ErrKeyNotFound when key is absent
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	// SetMany writes every pair in one round trip
	SetMany(ctx context.Context, values map[string]string) error
	Delete(ctx context.Context, keys ...string) error

	// AppendUnique claims member in the index at indexKey and pushes value
	// onto the list at key. The claim is atomic across every client of the
	// KV; a member claimed before returns ErrMemberClaimed and pushes nothing.
	AppendUnique(ctx context.Context, key, indexKey, member, value string) error
	// Range returns every value pushed onto the list at key, oldest first
	Range(ctx context.Context, key string) ([]string, error)
}

// Keys names the three records a LocalStore keeps in its KV
type Keys struct {
	Contacts string
	Phones   string
	Settings string
	Groups   string
}
