package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"testing"

	"vcf-drop/internal/domain"
	"vcf-drop/pkg/database"
	"vcf-drop/pkg/supabase"
	"vcf-drop/pkg/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTables is an in-memory stand-in for the PostgREST API
type fakeTables struct {
	mu     sync.Mutex
	tables map[string][]map[string]interface{}
	err    error
	calls  []string
}

func newFakeTables() *fakeTables {
	return &fakeTables{tables: make(map[string][]map[string]interface{})}
}

func toRows(v interface{}) []map[string]interface{} {
	data, _ := json.Marshal(v)
	if strings.HasPrefix(string(data), "[") {
		var rows []map[string]interface{}
		_ = json.Unmarshal(data, &rows)
		return rows
	}
	var row map[string]interface{}
	_ = json.Unmarshal(data, &row)
	return []map[string]interface{}{row}
}

func matches(row map[string]interface{}, filter url.Values) bool {
	for col, vals := range filter {
		if col == "select" || col == "order" {
			continue
		}
		switch {
		case vals[0] == "not.is.null":
			if row[col] == nil {
				return false
			}
		case strings.HasPrefix(vals[0], "eq."):
			if fmt.Sprint(row[col]) != strings.TrimPrefix(vals[0], "eq.") {
				return false
			}
		}
	}
	return true
}

func (f *fakeTables) Select(_ context.Context, table string, query url.Values, out interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "select "+table)
	if f.err != nil {
		return f.err
	}
	rows := []map[string]interface{}{}
	for _, r := range f.tables[table] {
		if matches(r, query) {
			rows = append(rows, r)
		}
	}
	if query.Get("order") == "position.asc" {
		sort.SliceStable(rows, func(i, j int) bool {
			return rows[i]["position"].(float64) < rows[j]["position"].(float64)
		})
	}
	data, _ := json.Marshal(rows)
	return json.Unmarshal(data, out)
}

func (f *fakeTables) Insert(_ context.Context, table string, rows interface{}, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "insert "+table)
	if f.err != nil {
		return f.err
	}
	for _, r := range toRows(rows) {
		for _, existing := range f.tables[table] {
			dupPhone := table == database.TableContacts && utils.SamePhone(fmt.Sprint(existing["phone"]), fmt.Sprint(r["phone"]))
			if dupPhone || fmt.Sprint(existing["id"]) == fmt.Sprint(r["id"]) {
				return &supabase.APIError{StatusCode: http.StatusConflict, Code: "23505"}
			}
		}
		f.tables[table] = append(f.tables[table], r)
	}
	return nil
}

func (f *fakeTables) Update(_ context.Context, table string, filter url.Values, body interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "update "+table)
	if f.err != nil {
		return f.err
	}
	patch := toRows(body)[0]
	for _, r := range f.tables[table] {
		if matches(r, filter) {
			for k, v := range patch {
				r[k] = v
			}
		}
	}
	return nil
}

func (f *fakeTables) Delete(_ context.Context, table string, filter url.Values) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "delete "+table)
	if f.err != nil {
		return f.err
	}
	kept := []map[string]interface{}{}
	for _, r := range f.tables[table] {
		if !matches(r, filter) {
			kept = append(kept, r)
		}
	}
	f.tables[table] = kept
	return nil
}

func (f *fakeTables) Count(_ context.Context, table string, filter url.Values) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "count "+table)
	if f.err != nil {
		return 0, f.err
	}
	n := 0
	for _, r := range f.tables[table] {
		if matches(r, filter) {
			n++
		}
	}
	return n, nil
}

func TestSupabaseStore_SeedAndRead(t *testing.T) {
	tables := newFakeTables()
	store := NewSupabaseStore(tables, testSeed())
	ctx := context.Background()

	settings, err := store.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, testSeed().Settings, settings, "missing row reads as defaults")

	require.NoError(t, store.EnsureDefaults(ctx))
	require.NoError(t, store.EnsureDefaults(ctx))
	assert.Len(t, tables.tables[database.TableSettings], 1)
	assert.Len(t, tables.tables[database.TableGroupLinks], 1)

	settings, err = store.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, testSeed().Settings, settings)

	groups, err := store.GetGroups(ctx)
	require.NoError(t, err)
	assert.Equal(t, testSeed().Groups, groups)
}

func TestSupabaseStore_Contacts(t *testing.T) {
	tables := newFakeTables()
	store := NewSupabaseStore(tables, testSeed())
	ctx := context.Background()

	c1 := domain.Contact{ID: "a", Name: "A", Phone: "+1 (555) 010", Timestamp: 1, IsOverflow: false}
	c2 := domain.Contact{ID: "b", Name: "B", Phone: "777", Timestamp: 2, IsOverflow: true}
	require.NoError(t, store.PutContact(ctx, c1))
	require.NoError(t, store.PutContact(ctx, c2))

	err := store.PutContact(ctx, domain.Contact{ID: "c", Name: "C", Phone: "1555010"})
	assert.ErrorIs(t, err, ErrDuplicatePhone)

	contacts, err := store.GetContacts(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.Contact{c1, c2}, contacts)

	n, err := store.CountContacts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, store.DeleteAllContacts(ctx))
	n, err = store.CountContacts(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSupabaseStore_PatchSettings(t *testing.T) {
	tables := newFakeTables()
	store := NewSupabaseStore(tables, testSeed())
	ctx := context.Background()
	require.NoError(t, store.EnsureDefaults(ctx))

	merged, err := store.PatchSettings(ctx, domain.SettingsPatch{
		IsCountdownActive:  domain.Bool(true),
		CountdownStartTime: domain.Int64(42),
	})
	require.NoError(t, err)
	require.NotNil(t, merged.CountdownStartTime)
	assert.Equal(t, int64(42), *merged.CountdownStartTime)
	assert.True(t, merged.IsCountdownActive)

	merged, err = store.PatchSettings(ctx, domain.SettingsPatch{
		IsCountdownActive:   domain.Bool(false),
		ClearCountdownStart: true,
		IsSystemLocked:      domain.Bool(true),
	})
	require.NoError(t, err)
	assert.Nil(t, merged.CountdownStartTime)
	assert.True(t, merged.IsSystemLocked)
	assert.Equal(t, 3, merged.TargetCount)

	tables.calls = nil
	_, err = store.PatchSettings(ctx, domain.SettingsPatch{})
	require.NoError(t, err)
	assert.Equal(t, []string{"select settings"}, tables.calls, "empty patch only reads")
}

func TestSupabaseStore_PutGroupsKeepsOrder(t *testing.T) {
	tables := newFakeTables()
	store := NewSupabaseStore(tables, testSeed())
	ctx := context.Background()
	require.NoError(t, store.EnsureDefaults(ctx))

	groups := []domain.GroupLink{
		{ID: "z", Name: "Z", URL: "u1"},
		{ID: "a", Name: "A", URL: "u2", IsActive: true},
	}
	require.NoError(t, store.PutGroups(ctx, groups))

	got, err := store.GetGroups(ctx)
	require.NoError(t, err)
	assert.Equal(t, groups, got)

	require.NoError(t, store.PutGroups(ctx, nil))
	got, err = store.GetGroups(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSupabaseStore_ErrorsAreWrapped(t *testing.T) {
	tables := newFakeTables()
	tables.err = errors.New("unreachable")
	store := NewSupabaseStore(tables, testSeed())
	ctx := context.Background()

	_, err := store.GetContacts(ctx)
	assert.ErrorContains(t, err, "failed to get contacts")
	_, err = store.GetSettings(ctx)
	assert.ErrorContains(t, err, "failed to get settings")
	err = store.PutContact(ctx, domain.Contact{ID: "1", Phone: "1"})
	assert.ErrorContains(t, err, "failed to insert contact")
	assert.NotErrorIs(t, err, ErrDuplicatePhone)
	assert.Error(t, store.EnsureDefaults(ctx))
}
