package repository

import (
	"context"
	"errors"
	"fmt"

	"vcf-drop/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const pgUniqueViolation = "23505"

// DB is satisfied by *pgxpool.Pool and *pgx.Conn
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresStore keeps records in the schema created by cmd/migrate over a
// direct connection
type PostgresStore struct {
	db   DB
	seed domain.Seed
}

// NewPostgresStore creates a store over db
func NewPostgresStore(db DB, seed domain.Seed) *PostgresStore {
	return &PostgresStore{db: db, seed: seed}
}

func (s *PostgresStore) GetContacts(ctx context.Context) ([]domain.Contact, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, name, phone, "timestamp", "isOverflow"
		FROM contacts
		ORDER BY seq
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query contacts: %w", err)
	}
	defer rows.Close()

	contacts := []domain.Contact{}
	for rows.Next() {
		var c domain.Contact
		if err := rows.Scan(&c.ID, &c.Name, &c.Phone, &c.Timestamp, &c.IsOverflow); err != nil {
			return nil, fmt.Errorf("failed to scan contact: %w", err)
		}
		contacts = append(contacts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate contacts: %w", err)
	}
	return contacts, nil
}

func (s *PostgresStore) CountContacts(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM contacts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count contacts: %w", err)
	}
	return n, nil
}

const selectSettings = `
	SELECT "targetCount", "totalCollected", "isCountdownActive",
	       "countdownStartTime", "isSystemLocked", "adminCredential"
	FROM settings
	WHERE id = 1
`

func scanSettings(row pgx.Row) (domain.Settings, error) {
	var st domain.Settings
	err := row.Scan(
		&st.TargetCount,
		&st.TotalCollected,
		&st.IsCountdownActive,
		&st.CountdownStartTime,
		&st.IsSystemLocked,
		&st.AdminCredential,
	)
	return st, err
}

func (s *PostgresStore) GetSettings(ctx context.Context) (domain.Settings, error) {
	st, err := scanSettings(s.db.QueryRow(ctx, selectSettings))
	if errors.Is(err, pgx.ErrNoRows) {
		return s.seed.Settings, nil
	}
	if err != nil {
		return domain.Settings{}, fmt.Errorf("failed to get settings: %w", err)
	}
	return st, nil
}

func (s *PostgresStore) GetGroups(ctx context.Context) ([]domain.GroupLink, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, name, url, emoji, "isActive"
		FROM group_links
		ORDER BY position
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query groups: %w", err)
	}
	defer rows.Close()

	groups := []domain.GroupLink{}
	for rows.Next() {
		var g domain.GroupLink
		if err := rows.Scan(&g.ID, &g.Name, &g.URL, &g.Emoji, &g.IsActive); err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate groups: %w", err)
	}
	return groups, nil
}

// PutContact inserts contact. The unique phone index maps to ErrDuplicatePhone.
func (s *PostgresStore) PutContact(ctx context.Context, c domain.Contact) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO contacts (id, name, phone, "timestamp", "isOverflow")
		VALUES ($1, $2, $3, $4, $5)
	`, c.ID, c.Name, c.Phone, c.Timestamp, c.IsOverflow)
	if isUniqueViolation(err) {
		return ErrDuplicatePhone
	}
	if err != nil {
		return fmt.Errorf("failed to insert contact: %w", err)
	}
	return nil
}

// PatchSettings locks the row, merges patch and writes every column back in
// one transaction
func (s *PostgresStore) PatchSettings(ctx context.Context, patch domain.SettingsPatch) (domain.Settings, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return domain.Settings{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	current, err := scanSettings(tx.QueryRow(ctx, selectSettings+" FOR UPDATE"))
	if errors.Is(err, pgx.ErrNoRows) {
		current = s.seed.Settings
	} else if err != nil {
		return domain.Settings{}, fmt.Errorf("failed to lock settings: %w", err)
	}

	merged := patch.Apply(current)
	_, err = tx.Exec(ctx, `
		INSERT INTO settings (id, "targetCount", "totalCollected", "isCountdownActive",
		                      "countdownStartTime", "isSystemLocked", "adminCredential")
		VALUES (1, $1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			"targetCount" = EXCLUDED."targetCount",
			"totalCollected" = EXCLUDED."totalCollected",
			"isCountdownActive" = EXCLUDED."isCountdownActive",
			"countdownStartTime" = EXCLUDED."countdownStartTime",
			"isSystemLocked" = EXCLUDED."isSystemLocked",
			"adminCredential" = EXCLUDED."adminCredential"
	`, merged.TargetCount, merged.TotalCollected, merged.IsCountdownActive,
		merged.CountdownStartTime, merged.IsSystemLocked, merged.AdminCredential)
	if err != nil {
		return domain.Settings{}, fmt.Errorf("failed to update settings: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Settings{}, fmt.Errorf("failed to commit settings: %w", err)
	}
	return merged, nil
}

// PutGroups replaces every group atomically
func (s *PostgresStore) PutGroups(ctx context.Context, groups []domain.GroupLink) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := insertGroups(ctx, tx, groups, true); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit groups: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteAllContacts(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM contacts`); err != nil {
		return fmt.Errorf("failed to delete contacts: %w", err)
	}
	return nil
}

// EnsureDefaults inserts the settings row and default group when absent
func (s *PostgresStore) EnsureDefaults(ctx context.Context) error {
	st := s.seed.Settings
	_, err := s.db.Exec(ctx, `
		INSERT INTO settings (id, "targetCount", "totalCollected", "isCountdownActive",
		                      "countdownStartTime", "isSystemLocked", "adminCredential")
		VALUES (1, $1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
	`, st.TargetCount, st.TotalCollected, st.IsCountdownActive,
		st.CountdownStartTime, st.IsSystemLocked, st.AdminCredential)
	if err != nil {
		return fmt.Errorf("failed to seed settings: %w", err)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var n int
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM group_links`).Scan(&n); err != nil {
		return fmt.Errorf("failed to check groups: %w", err)
	}
	if n == 0 {
		if err := insertGroups(ctx, tx, s.seed.Groups, false); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func insertGroups(ctx context.Context, tx pgx.Tx, groups []domain.GroupLink, replace bool) error {
	if replace {
		if _, err := tx.Exec(ctx, `DELETE FROM group_links`); err != nil {
			return fmt.Errorf("failed to clear groups: %w", err)
		}
	}

	batch := &pgx.Batch{}
	for i, g := range groups {
		batch.Queue(`
			INSERT INTO group_links (id, name, url, emoji, "isActive", position)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (id) DO NOTHING
		`, g.ID, g.Name, g.URL, g.Emoji, g.IsActive, i)
	}
	if batch.Len() == 0 {
		return nil
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to insert groups: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
