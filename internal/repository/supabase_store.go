package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"vcf-drop/internal/domain"
	"vcf-drop/pkg/database"
	"vcf-drop/pkg/supabase"
)

// allRows matches every row; PostgREST refuses unfiltered deletes
var allRows = url.Values{"id": []string{"not.is.null"}}

// TableClient is the hosted-table surface the SupabaseStore needs
type TableClient interface {
	Select(ctx context.Context, table string, query url.Values, out interface{}) error
	Insert(ctx context.Context, table string, rows interface{}, upsert bool) error
	Update(ctx context.Context, table string, filter url.Values, body interface{}) error
	Delete(ctx context.Context, table string, filter url.Values) error
	Count(ctx context.Context, table string, filter url.Values) (int, error)
}

// SupabaseStore keeps records in the hosted tables created by cmd/migrate
type SupabaseStore struct {
	client TableClient
	seed   domain.Seed
}

// NewSupabaseStore creates a store over client
func NewSupabaseStore(client TableClient, seed domain.Seed) *SupabaseStore {
	return &SupabaseStore{client: client, seed: seed}
}

type settingsRow struct {
	ID int `json:"id"`
	domain.Settings
}

type groupRow struct {
	domain.GroupLink
	Position int `json:"position"`
}

func settingsFilter() url.Values {
	return supabase.Eq("id", strconv.Itoa(database.SettingsRowID))
}

func (s *SupabaseStore) GetContacts(ctx context.Context) ([]domain.Contact, error) {
	contacts := []domain.Contact{}
	query := url.Values{
		"select": []string{"id,name,phone,timestamp,isOverflow"},
		"order":  []string{"seq.asc"},
	}
	if err := s.client.Select(ctx, database.TableContacts, query, &contacts); err != nil {
		return nil, fmt.Errorf("failed to get contacts: %w", err)
	}
	return contacts, nil
}

func (s *SupabaseStore) CountContacts(ctx context.Context) (int, error) {
	n, err := s.client.Count(ctx, database.TableContacts, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to count contacts: %w", err)
	}
	return n, nil
}

func (s *SupabaseStore) GetSettings(ctx context.Context) (domain.Settings, error) {
	var rows []json.RawMessage
	if err := s.client.Select(ctx, database.TableSettings, settingsFilter(), &rows); err != nil {
		return domain.Settings{}, fmt.Errorf("failed to get settings: %w", err)
	}
	if len(rows) == 0 {
		return s.seed.Settings, nil
	}
	settings, err := decodeSettings(rows[0], s.seed.Settings)
	if err != nil {
		return domain.Settings{}, fmt.Errorf("failed to decode settings: %w", err)
	}
	return settings, nil
}

func (s *SupabaseStore) GetGroups(ctx context.Context) ([]domain.GroupLink, error) {
	var rows []groupRow
	query := url.Values{"order": []string{"position.asc"}}
	if err := s.client.Select(ctx, database.TableGroupLinks, query, &rows); err != nil {
		return nil, fmt.Errorf("failed to get groups: %w", err)
	}
	groups := make([]domain.GroupLink, len(rows))
	for i, r := range rows {
		groups[i] = r.GroupLink
	}
	return groups, nil
}

// PutContact inserts contact. The unique phone index maps to ErrDuplicatePhone.
func (s *SupabaseStore) PutContact(ctx context.Context, contact domain.Contact) error {
	if err := s.client.Insert(ctx, database.TableContacts, contact, false); err != nil {
		if supabase.IsUniqueViolation(err) {
			return ErrDuplicatePhone
		}
		return fmt.Errorf("failed to insert contact: %w", err)
	}
	return nil
}

// PatchSettings sends only the changed columns, then re-reads the row
func (s *SupabaseStore) PatchSettings(ctx context.Context, patch domain.SettingsPatch) (domain.Settings, error) {
	if !patch.IsEmpty() {
		if err := s.client.Update(ctx, database.TableSettings, settingsFilter(), patch); err != nil {
			return domain.Settings{}, fmt.Errorf("failed to update settings: %w", err)
		}
	}
	return s.GetSettings(ctx)
}

// PutGroups replaces the table contents. The hosted API has no transaction,
// so a failure between the delete and the insert leaves the table empty
// until the next write.
func (s *SupabaseStore) PutGroups(ctx context.Context, groups []domain.GroupLink) error {
	if err := s.client.Delete(ctx, database.TableGroupLinks, allRows); err != nil {
		return fmt.Errorf("failed to clear groups: %w", err)
	}
	if len(groups) == 0 {
		return nil
	}
	if err := s.client.Insert(ctx, database.TableGroupLinks, groupRows(groups), true); err != nil {
		return fmt.Errorf("failed to insert groups: %w", err)
	}
	return nil
}

func (s *SupabaseStore) DeleteAllContacts(ctx context.Context) error {
	if err := s.client.Delete(ctx, database.TableContacts, allRows); err != nil {
		return fmt.Errorf("failed to delete contacts: %w", err)
	}
	return nil
}

// EnsureDefaults inserts the settings row and default group when absent.
// A concurrent replica winning the insert is not an error.
func (s *SupabaseStore) EnsureDefaults(ctx context.Context) error {
	n, err := s.client.Count(ctx, database.TableSettings, settingsFilter())
	if err != nil {
		return fmt.Errorf("failed to check settings: %w", err)
	}
	if n == 0 {
		row := settingsRow{ID: database.SettingsRowID, Settings: s.seed.Settings}
		if err := s.client.Insert(ctx, database.TableSettings, row, false); err != nil && !supabase.IsUniqueViolation(err) {
			return fmt.Errorf("failed to seed settings: %w", err)
		}
	}

	n, err = s.client.Count(ctx, database.TableGroupLinks, nil)
	if err != nil {
		return fmt.Errorf("failed to check groups: %w", err)
	}
	if n == 0 && len(s.seed.Groups) > 0 {
		if err := s.client.Insert(ctx, database.TableGroupLinks, groupRows(s.seed.Groups), false); err != nil && !supabase.IsUniqueViolation(err) {
			return fmt.Errorf("failed to seed groups: %w", err)
		}
	}
	return nil
}

func groupRows(groups []domain.GroupLink) []groupRow {
	rows := make([]groupRow, len(groups))
	for i, g := range groups {
		rows[i] = groupRow{GroupLink: g, Position: i}
	}
	return rows
}
