package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"vcf-drop/internal/domain"
	"vcf-drop/pkg/logger"
	"vcf-drop/pkg/redis"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testKeys = Keys{Contacts: "contacts", Phones: "phones", Settings: "settings", Groups: "groups"}

func testSeed() domain.Seed {
	return domain.DefaultSeed(3, "hash", domain.GroupLink{})
}

func newMemoryStore() (*LocalStore, *MemoryKV) {
	kv := NewMemoryKV()
	return NewLocalStore(kv, testKeys, testSeed(), logger.NewNop()), kv
}

func TestLocalStore_Defaults(t *testing.T) {
	store, _ := newMemoryStore()
	ctx := context.Background()

	contacts, err := store.GetContacts(ctx)
	require.NoError(t, err)
	assert.Empty(t, contacts)
	assert.NotNil(t, contacts)

	settings, err := store.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, testSeed().Settings, settings)

	groups, err := store.GetGroups(ctx)
	require.NoError(t, err)
	assert.Equal(t, testSeed().Groups, groups)
}

func TestLocalStore_EnsureDefaults(t *testing.T) {
	store, kv := newMemoryStore()
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, testKeys.Groups, `[{"id":"x","name":"kept","isActive":true}]`))
	require.NoError(t, store.EnsureDefaults(ctx))

	raw, err := kv.Get(ctx, testKeys.Settings)
	require.NoError(t, err)
	assert.JSONEq(t, `{"targetCount":3,"totalCollected":0,"isCountdownActive":false,"countdownStartTime":null,"isSystemLocked":false,"adminCredential":"hash"}`, raw)

	groups, err := store.GetGroups(ctx)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "kept", groups[0].Name, "existing records are not overwritten")
}

func TestLocalStore_PutContact(t *testing.T) {
	store, _ := newMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.PutContact(ctx, domain.Contact{ID: "1", Name: "A", Phone: "+234-801-2345"}))
	require.NoError(t, store.PutContact(ctx, domain.Contact{ID: "2", Name: "B", Phone: "555"}))

	err := store.PutContact(ctx, domain.Contact{ID: "3", Name: "C", Phone: "2348012345"})
	assert.ErrorIs(t, err, ErrDuplicatePhone)

	contacts, err := store.GetContacts(ctx)
	require.NoError(t, err)
	require.Len(t, contacts, 2)
	assert.Equal(t, "1", contacts[0].ID)
	assert.Equal(t, "2", contacts[1].ID)

	n, err := store.CountContacts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, store.DeleteAllContacts(ctx))
	n, err = store.CountContacts(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestLocalStore_PatchSettings(t *testing.T) {
	store, _ := newMemoryStore()
	ctx := context.Background()

	merged, err := store.PatchSettings(ctx, domain.SettingsPatch{
		TotalCollected:     domain.Int(3),
		IsCountdownActive:  domain.Bool(true),
		CountdownStartTime: domain.Int64(1000),
	})
	require.NoError(t, err)
	assert.Equal(t, 3, merged.TotalCollected)
	assert.Equal(t, 3, merged.TargetCount)
	assert.Equal(t, "hash", merged.AdminCredential)

	merged, err = store.PatchSettings(ctx, domain.SettingsPatch{
		IsCountdownActive:   domain.Bool(false),
		ClearCountdownStart: true,
		IsSystemLocked:      domain.Bool(true),
	})
	require.NoError(t, err)
	assert.Nil(t, merged.CountdownStartTime)
	assert.True(t, merged.IsSystemLocked)

	reread, err := store.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, merged, reread)
}

func TestLocalStore_SettingsMergedOverDefaults(t *testing.T) {
	store, kv := newMemoryStore()
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, testKeys.Settings, `{"totalCollected":2}`))

	settings, err := store.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, settings.TotalCollected)
	assert.Equal(t, 3, settings.TargetCount)
	assert.Equal(t, "hash", settings.AdminCredential)
}

func TestLocalStore_CorruptBlobsAreReseeded(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		check func(t *testing.T, store *LocalStore)
	}{
		{
			name: "settings",
			key:  testKeys.Settings,
			check: func(t *testing.T, store *LocalStore) {
				settings, err := store.GetSettings(context.Background())
				require.NoError(t, err)
				assert.Equal(t, testSeed().Settings, settings)
			},
		},
		{
			name: "groups",
			key:  testKeys.Groups,
			check: func(t *testing.T, store *LocalStore) {
				groups, err := store.GetGroups(context.Background())
				require.NoError(t, err)
				assert.Equal(t, testSeed().Groups, groups)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, kv := newMemoryStore()
			require.NoError(t, kv.Set(context.Background(), tt.key, "{not json"))

			tt.check(t, store)

			raw, err := kv.Get(context.Background(), tt.key)
			require.NoError(t, err)
			assert.NotEqual(t, "{not json", raw, "blob rewritten")
		})
	}
}

func TestLocalStore_CorruptContactEntriesAreSkipped(t *testing.T) {
	store, kv := newMemoryStore()
	ctx := context.Background()

	require.NoError(t, kv.AppendUnique(ctx, testKeys.Contacts, testKeys.Phones, "junk", "{not json"))
	require.NoError(t, store.PutContact(ctx, domain.Contact{ID: "1", Name: "A", Phone: "555"}))

	contacts, err := store.GetContacts(ctx)
	require.NoError(t, err)
	require.Len(t, contacts, 1)
	assert.Equal(t, "1", contacts[0].ID)

	n, err := store.CountContacts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestLocalStore_PutGroups(t *testing.T) {
	store, _ := newMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.PutGroups(ctx, nil))
	groups, err := store.GetGroups(ctx)
	require.NoError(t, err)
	assert.NotNil(t, groups)
	assert.Empty(t, groups)

	want := []domain.GroupLink{{ID: "g1", Name: "One", URL: "https://chat.whatsapp.com/x", IsActive: true}}
	require.NoError(t, store.PutGroups(ctx, want))
	groups, err = store.GetGroups(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, groups)
}

func TestLocalStore_ReplaceContacts(t *testing.T) {
	store, _ := newMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.PutContact(ctx, domain.Contact{ID: "old", Name: "Old", Phone: "999"}))
	require.NoError(t, store.ReplaceContacts(ctx, []domain.Contact{
		{ID: "1", Name: "A", Phone: "111"},
		{ID: "2", Name: "B", Phone: "1-1-1"},
		{ID: "3", Name: "C", Phone: "222"},
	}))

	contacts, err := store.GetContacts(ctx)
	require.NoError(t, err)
	require.Len(t, contacts, 2)
	assert.Equal(t, "1", contacts[0].ID)
	assert.Equal(t, "3", contacts[1].ID)

	// The old phone was released with the old list
	require.NoError(t, store.PutContact(ctx, domain.Contact{ID: "4", Name: "D", Phone: "999"}))
	assert.ErrorIs(t, store.PutContact(ctx, domain.Contact{ID: "5", Name: "E", Phone: "111"}), ErrDuplicatePhone)
}

type failingKV struct{}

func (failingKV) Get(context.Context, string) (string, error) { return "", errors.New("down") }
func (failingKV) Set(context.Context, string, string) error   { return errors.New("down") }
func (failingKV) Delete(context.Context, ...string) error     { return errors.New("down") }

func (failingKV) SetMany(context.Context, map[string]string) error { return errors.New("down") }
func (failingKV) Range(context.Context, string) ([]string, error)  { return nil, errors.New("down") }

func (failingKV) AppendUnique(context.Context, string, string, string, string) error {
	return errors.New("down")
}

func TestLocalStore_KVFailureIsReturned(t *testing.T) {
	store := NewLocalStore(failingKV{}, testKeys, testSeed(), logger.NewNop())
	ctx := context.Background()

	_, err := store.GetSettings(ctx)
	assert.Error(t, err)
	_, err = store.GetContacts(ctx)
	assert.Error(t, err)
	err = store.PutContact(ctx, domain.Contact{ID: "1", Phone: "1"})
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrDuplicatePhone)
	assert.Error(t, store.DeleteAllContacts(ctx))
	assert.Error(t, store.EnsureDefaults(ctx))
}

func TestLocalStore_OnRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := redis.NewClient("redis://"+mr.Addr(), "test", zap.NewNop())
	require.NoError(t, err)
	defer client.Close()

	keys := RedisKeys(client.KeyBuilder)
	store := NewLocalStore(NewRedisKV(client), keys, testSeed(), logger.NewNop())
	ctx := context.Background()

	require.NoError(t, store.EnsureDefaults(ctx))
	assert.True(t, mr.Exists("test:campaign:settings"))
	assert.True(t, mr.Exists("test:campaign:groups"))

	require.NoError(t, store.PutContact(ctx, domain.Contact{ID: "1", Name: "A", Phone: "123"}))
	assert.ErrorIs(t, store.PutContact(ctx, domain.Contact{ID: "2", Name: "B", Phone: "1-2-3"}), ErrDuplicatePhone)

	// Another replica sharing the same Redis sees the contact
	other := NewLocalStore(NewRedisKV(client), keys, testSeed(), logger.NewNop())
	n, err := other.CountContacts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, store.DeleteAllContacts(ctx))
	assert.False(t, mr.Exists("test:campaign:contacts"))
	assert.False(t, mr.Exists("test:campaign:phones"))
	require.NoError(t, other.PutContact(ctx, domain.Contact{ID: "3", Name: "C", Phone: "123"}))

	mr.Close()
	_, err = store.GetContacts(ctx)
	assert.Error(t, err)
}

func newRedisReplica(t *testing.T, mr *miniredis.Miniredis) *LocalStore {
	t.Helper()
	client, err := redis.NewClient("redis://"+mr.Addr(), "test", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return NewLocalStore(NewRedisKV(client), RedisKeys(client.KeyBuilder), testSeed(), logger.NewNop())
}

func TestLocalStore_ConcurrentReplicasKeepEveryContact(t *testing.T) {
	mr := miniredis.RunT(t)
	replicas := []*LocalStore{newRedisReplica(t, mr), newRedisReplica(t, mr)}
	ctx := context.Background()

	const perReplica = 50
	var wg sync.WaitGroup
	errs := make(chan error, perReplica*len(replicas))
	for r, store := range replicas {
		for i := 0; i < perReplica; i++ {
			wg.Add(1)
			go func(store *LocalStore, r, i int) {
				defer wg.Done()
				errs <- store.PutContact(ctx, domain.Contact{
					ID:    fmt.Sprintf("%d-%d", r, i),
					Name:  fmt.Sprintf("Guest %d-%d", r, i),
					Phone: fmt.Sprintf("080%d%04d", r, i),
				})
			}(store, r, i)
		}
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	for _, store := range replicas {
		n, err := store.CountContacts(ctx)
		require.NoError(t, err)
		assert.Equal(t, perReplica*len(replicas), n)
	}
}

func TestLocalStore_ConcurrentReplicasClaimPhoneOnce(t *testing.T) {
	mr := miniredis.RunT(t)
	replicas := []*LocalStore{newRedisReplica(t, mr), newRedisReplica(t, mr)}
	ctx := context.Background()

	const attempts = 20
	var wg sync.WaitGroup
	errs := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- replicas[i%2].PutContact(ctx, domain.Contact{
				ID:    fmt.Sprint(i),
				Name:  "Same",
				Phone: "+234 801 2345",
			})
		}(i)
	}
	wg.Wait()
	close(errs)

	stored := 0
	for err := range errs {
		if err == nil {
			stored++
			continue
		}
		assert.ErrorIs(t, err, ErrDuplicatePhone)
	}
	assert.Equal(t, 1, stored)

	n, err := replicas[0].CountContacts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMemoryKV(t *testing.T) {
	kv := NewMemoryKV()
	ctx := context.Background()

	_, err := kv.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrKeyNotFound)

	require.NoError(t, kv.Set(ctx, "k", "v"))
	v, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", v)

	require.NoError(t, kv.Delete(ctx, "k"))
	_, err = kv.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrKeyNotFound)

	require.NoError(t, kv.SetMany(ctx, map[string]string{"a": "1", "b": "2"}))
	v, err = kv.Get(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, "2", v)

	list, err := kv.Range(ctx, "list")
	require.NoError(t, err)
	assert.Empty(t, list)

	require.NoError(t, kv.AppendUnique(ctx, "list", "index", "m1", "first"))
	require.NoError(t, kv.AppendUnique(ctx, "list", "index", "m2", "second"))
	assert.ErrorIs(t, kv.AppendUnique(ctx, "list", "index", "m1", "again"), ErrMemberClaimed)

	list, err = kv.Range(ctx, "list")
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, list)

	require.NoError(t, kv.Delete(ctx, "list", "index"))
	list, err = kv.Range(ctx, "list")
	require.NoError(t, err)
	assert.Empty(t, list)
	require.NoError(t, kv.AppendUnique(ctx, "list", "index", "m1", "reclaimed"))
}
