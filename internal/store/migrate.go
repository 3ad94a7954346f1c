package store

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// postgresSchema mirrors the SQLite schema in sqlite.go. Callback
// bodies are BYTEA, not JSONB: malformed deliveries must still be
// recordable for the audit trail.
const postgresSchema = `
CREATE TABLE IF NOT EXISTS communities (
	id BIGINT PRIMARY KEY,
	name TEXT NOT NULL,
	access_token TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS pages (
	id BIGINT PRIMARY KEY,
	name TEXT NOT NULL,
	access_token TEXT NOT NULL,
	community_id BIGINT NOT NULL,
	community_name TEXT NOT NULL,
	install_id BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS users (
	id BIGSERIAL PRIMARY KEY,
	username TEXT UNIQUE NOT NULL,
	workplace_id BIGINT UNIQUE,
	community_id BIGINT REFERENCES communities(id) ON DELETE SET NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS folders (
	id BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL,
	privacy TEXT NOT NULL DEFAULT 'public',
	owner_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS documents (
	id BIGSERIAL PRIMARY KEY,
	name TEXT NOT NULL,
	content BYTEA NOT NULL,
	privacy TEXT NOT NULL DEFAULT 'public',
	owner_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	folder_id BIGINT REFERENCES folders(id) ON DELETE CASCADE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS tasks (
	id BIGSERIAL PRIMARY KEY,
	title TEXT NOT NULL,
	completed BOOLEAN NOT NULL DEFAULT FALSE,
	priority TEXT,
	owner_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS callbacks (
	id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	path TEXT NOT NULL,
	headers JSONB NOT NULL,
	body BYTEA NOT NULL,
	received_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_users_workplace_id ON users(workplace_id);
CREATE INDEX IF NOT EXISTS idx_documents_folder_id ON documents(folder_id);
CREATE INDEX IF NOT EXISTS idx_callbacks_received_at ON callbacks(received_at);
`

// RunMigrations applies the schema to the PostgreSQL database.
func RunMigrations(databaseURL string) error {
	ctx := context.Background()
	conn, err := pgx.Connect(ctx, databaseURL)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)

	_, err = conn.Exec(ctx, postgresSchema)
	return err
}
