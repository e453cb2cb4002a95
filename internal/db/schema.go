package db

import (
	"database/sql"
	"fmt"
)

// schema is the full database schema.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id            INTEGER PRIMARY KEY,
    username      TEXT NOT NULL,
    password_hash TEXT NOT NULL,
    plan          TEXT NOT NULL DEFAULT 'free' CHECK (plan IN ('free', 'pro')),
    created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    deleted_at    DATETIME
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_users_username_active
    ON users(username) WHERE deleted_at IS NULL;

CREATE TABLE IF NOT EXISTS contacts (
    id             INTEGER PRIMARY KEY,
    user_id        INTEGER NOT NULL REFERENCES users(id),
    name           TEXT NOT NULL,
    email          TEXT,
    phone          TEXT,
    linked_user_id INTEGER REFERENCES users(id),
    invited_at     DATETIME,
    created_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    deleted_at     DATETIME
);

CREATE INDEX IF NOT EXISTS idx_contacts_user ON contacts(user_id);

CREATE TABLE IF NOT EXISTS transactions (
    id               INTEGER PRIMARY KEY,
    user_id          INTEGER NOT NULL REFERENCES users(id),
    contact_id       INTEGER REFERENCES contacts(id),
    category         TEXT NOT NULL CHECK (category IN ('funds', 'item')),
    type             TEXT NOT NULL CHECK (type IN ('given', 'received', 'returned', 'gift', 'expense', 'income')),
    amount           TEXT,
    currency         TEXT,
    item_name        TEXT,
    quantity         INTEGER,
    return_direction TEXT CHECK (return_direction IN ('to_me', 'to_contact')),
    parent_id        INTEGER REFERENCES transactions(id),
    description      TEXT,
    occurred_at      DATETIME NOT NULL,
    receipt          BLOB,
    receipt_mime     TEXT,
    created_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    deleted_at       DATETIME
);

CREATE INDEX IF NOT EXISTS idx_transactions_user ON transactions(user_id);
CREATE INDEX IF NOT EXISTS idx_transactions_contact ON transactions(contact_id);
CREATE INDEX IF NOT EXISTS idx_transactions_parent ON transactions(parent_id);

CREATE TABLE IF NOT EXISTS witnesses (
    id              INTEGER PRIMARY KEY,
    transaction_id  INTEGER NOT NULL REFERENCES transactions(id),
    user_id         INTEGER REFERENCES users(id),
    invite_name     TEXT,
    invite_email    TEXT,
    invite_phone    TEXT,
    invite_token    TEXT,
    status          TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'modified', 'acknowledged', 'declined')),
    invited_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    acknowledged_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_witnesses_transaction ON witnesses(transaction_id);
CREATE INDEX IF NOT EXISTS idx_witnesses_user ON witnesses(user_id);

CREATE TABLE IF NOT EXISTS history (
    id             INTEGER PRIMARY KEY,
    entity_type    TEXT NOT NULL CHECK (entity_type IN ('transaction', 'witness', 'contact')),
    entity_id      INTEGER NOT NULL,
    change_type    TEXT NOT NULL,
    previous_state TEXT,
    new_state      TEXT,
    acting_user_id INTEGER NOT NULL REFERENCES users(id),
    created_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_history_entity ON history(entity_type, entity_id);

CREATE TABLE IF NOT EXISTS settings (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS revoked_tokens (
    jti        TEXT PRIMARY KEY,
    expires_at DATETIME NOT NULL
);
`

// EnsureSchema creates all tables and indexes if they don't already exist.
func EnsureSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}
