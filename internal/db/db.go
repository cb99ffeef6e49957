package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

func init() {
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

// Connect opens the store for driver, verifies it and applies migrations.
func Connect(ctx context.Context, driver, dsn string) (*sqlx.DB, error) {
	db, err := Open(ctx, driver, dsn)
	if err != nil {
		return nil, err
	}
	if err := Migrate(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return db, nil
}

// Open opens and pings the store without touching the schema.
func Open(ctx context.Context, driver, dsn string) (*sqlx.DB, error) {
	switch driver {
	case DriverPostgres:
	case DriverSQLite:
		dsn = sqliteDSN(dsn)
	default:
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}

	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}
	if driver == DriverSQLite {
		// SQLite has a single writer; in-memory databases also live and
		// die with their connection.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
	}
	return db, nil
}

// Migrate creates the schema for the dialect of db. Statements are idempotent.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	migrations := postgresMigrations
	if db.DriverName() == DriverSQLite {
		migrations = sqliteMigrations
	}
	for _, m := range migrations {
		if _, err := db.ExecContext(ctx, m); err != nil {
			return err
		}
	}
	log.Info().Str("driver", db.DriverName()).Int("statements", len(migrations)).Msg("database migrations applied")
	return nil
}

func sqliteDSN(dsn string) string {
	var pragmas []string
	if !strings.Contains(dsn, "foreign_keys") {
		pragmas = append(pragmas, "_pragma=foreign_keys(1)")
	}
	if !strings.Contains(dsn, "busy_timeout") {
		pragmas = append(pragmas, "_pragma=busy_timeout(5000)")
	}
	if len(pragmas) == 0 {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + strings.Join(pragmas, "&")
}

var postgresMigrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
            id BIGSERIAL PRIMARY KEY,
            username TEXT NOT NULL UNIQUE,
            email TEXT NOT NULL UNIQUE,
            password_hash TEXT,
            external_id TEXT UNIQUE,
            display_name TEXT NOT NULL DEFAULT '',
            bio TEXT NOT NULL DEFAULT '',
            avatar_url TEXT,
            semester TEXT NOT NULL DEFAULT '',
            department TEXT NOT NULL DEFAULT '',
            profile_completed BOOLEAN NOT NULL DEFAULT FALSE,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
	`CREATE TABLE IF NOT EXISTS conversations (
            id BIGSERIAL PRIMARY KEY,
            participant1_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            participant2_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            last_message_id BIGINT,
            last_message_at TIMESTAMPTZ,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            UNIQUE(participant1_id, participant2_id),
            CHECK (participant1_id <> participant2_id),
            CHECK (participant1_id < participant2_id)
        );`,
	`CREATE TABLE IF NOT EXISTS messages (
            id BIGSERIAL PRIMARY KEY,
            conversation_id BIGINT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
            sender_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            content TEXT NOT NULL DEFAULT '',
            message_type TEXT NOT NULL DEFAULT 'text' CHECK (message_type IN ('text', 'image', 'video')),
            media_url TEXT,
            is_read BOOLEAN NOT NULL DEFAULT FALSE,
            unsent BOOLEAN NOT NULL DEFAULT FALSE,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
	`ALTER TABLE conversations DROP CONSTRAINT IF EXISTS conversations_last_message_fk;`,
	`ALTER TABLE conversations ADD CONSTRAINT conversations_last_message_fk
            FOREIGN KEY (last_message_id) REFERENCES messages(id) ON DELETE SET NULL;`,
	`CREATE INDEX IF NOT EXISTS idx_conversations_participant2 ON conversations(participant2_id);`,
	`CREATE INDEX IF NOT EXISTS idx_messages_conversation_created ON messages(conversation_id, created_at DESC, id DESC);`,
	`CREATE INDEX IF NOT EXISTS idx_messages_unread ON messages(conversation_id, sender_id) WHERE is_read = FALSE AND unsent = FALSE;`,
}

var sqliteMigrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            username TEXT NOT NULL UNIQUE,
            email TEXT NOT NULL UNIQUE,
            password_hash TEXT,
            external_id TEXT UNIQUE,
            display_name TEXT NOT NULL DEFAULT '',
            bio TEXT NOT NULL DEFAULT '',
            avatar_url TEXT,
            semester TEXT NOT NULL DEFAULT '',
            department TEXT NOT NULL DEFAULT '',
            profile_completed BOOLEAN NOT NULL DEFAULT FALSE,
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL
        );`,
	`CREATE TABLE IF NOT EXISTS conversations (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            participant1_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            participant2_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            last_message_id INTEGER REFERENCES messages(id) ON DELETE SET NULL,
            last_message_at DATETIME,
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL,
            UNIQUE(participant1_id, participant2_id),
            CHECK (participant1_id <> participant2_id),
            CHECK (participant1_id < participant2_id)
        );`,
	`CREATE TABLE IF NOT EXISTS messages (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            conversation_id INTEGER NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
            sender_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            content TEXT NOT NULL DEFAULT '',
            message_type TEXT NOT NULL DEFAULT 'text' CHECK (message_type IN ('text', 'image', 'video')),
            media_url TEXT,
            is_read BOOLEAN NOT NULL DEFAULT FALSE,
            unsent BOOLEAN NOT NULL DEFAULT FALSE,
            created_at DATETIME NOT NULL,
            updated_at DATETIME NOT NULL
        );`,
	`CREATE INDEX IF NOT EXISTS idx_conversations_participant2 ON conversations(participant2_id);`,
	`CREATE INDEX IF NOT EXISTS idx_messages_conversation_created ON messages(conversation_id, created_at DESC, id DESC);`,
	`CREATE INDEX IF NOT EXISTS idx_messages_unread ON messages(conversation_id, sender_id) WHERE is_read = FALSE AND unsent = FALSE;`,
}
