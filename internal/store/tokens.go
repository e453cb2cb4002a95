package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// RevokeToken records a session token's JTI so logout survives the
// token's remaining lifetime. Revoking the same JTI twice is a no-op;
// revocations past their expiry are swept on the way through, since
// an expired token fails validation before the revocation list is
// ever consulted.
func RevokeToken(ctx context.Context, db *sql.DB, jti string, expiresAt time.Time) error {
	_, err := db.ExecContext(ctx,
		`INSERT OR IGNORE INTO revoked_tokens (jti, expires_at) VALUES (?, ?)`,
		jti, expiresAt,
	)
	if err != nil {
		return fmt.Errorf("revoking token: %w", err)
	}

	_, _ = db.ExecContext(ctx,
		`DELETE FROM revoked_tokens WHERE expires_at < ?`, time.Now().UTC(),
	)

	return nil
}

// IsTokenRevoked reports whether a session token's JTI is on the
// revocation list. Called by the auth middleware on every request.
func IsTokenRevoked(ctx context.Context, db *sql.DB, jti string) (bool, error) {
	var revoked bool
	err := db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM revoked_tokens WHERE jti = ?)`, jti,
	).Scan(&revoked)
	if err != nil {
		return false, fmt.Errorf("checking token revocation: %w", err)
	}
	return revoked, nil
}
