package database

// Table names shared by the direct SQL store and the hosted PostgREST store
const (
	TableContacts   = "contacts"
	TableSettings   = "settings"
	TableGroupLinks = "group_links"
)

// SettingsRowID is the primary key of the settings singleton
const SettingsRowID = 1

// CreateStatements builds the campaign schema. Column names are quoted so the
// hosted API returns the same camelCase keys the records use.
var CreateStatements = []string{
	`CREATE TABLE IF NOT EXISTS contacts (
		seq BIGINT GENERATED ALWAYS AS IDENTITY,
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		phone TEXT NOT NULL,
		"timestamp" BIGINT NOT NULL,
		"isOverflow" BOOLEAN NOT NULL DEFAULT false
	)`,

	// One contact per digit-normalized phone, across every writer
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_contacts_phone_digits
		ON contacts ((regexp_replace(phone, '\D', '', 'g')))`,

	`CREATE INDEX IF NOT EXISTS idx_contacts_seq ON contacts(seq)`,

	`CREATE TABLE IF NOT EXISTS settings (
		id INTEGER PRIMARY KEY DEFAULT 1 CHECK (id = 1),
		"targetCount" INTEGER NOT NULL CHECK ("targetCount" > 0),
		"totalCollected" INTEGER NOT NULL DEFAULT 0,
		"isCountdownActive" BOOLEAN NOT NULL DEFAULT false,
		"countdownStartTime" BIGINT,
		"isSystemLocked" BOOLEAN NOT NULL DEFAULT false,
		"adminCredential" TEXT NOT NULL DEFAULT ''
	)`,

	`CREATE TABLE IF NOT EXISTS group_links (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		url TEXT NOT NULL,
		emoji TEXT NOT NULL DEFAULT '',
		"isActive" BOOLEAN NOT NULL DEFAULT false,
		position INTEGER NOT NULL DEFAULT 0
	)`,
}

// DropStatements removes the campaign schema
var DropStatements = []string{
	`DROP TABLE IF EXISTS contacts CASCADE`,
	`DROP TABLE IF EXISTS settings CASCADE`,
	`DROP TABLE IF EXISTS group_links CASCADE`,
}
