package store

import (
	"context"
	"testing"
	"time"

	"github.com/seyio/owemi/internal/db"
)

func TestRevokeToken(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	revoked, err := IsTokenRevoked(ctx, database, "jti-1")
	if err != nil {
		t.Fatalf("IsTokenRevoked: %v", err)
	}
	if revoked {
		t.Error("expected unknown jti to read as not revoked")
	}

	expiry := time.Now().UTC().Add(time.Hour)
	if err := RevokeToken(ctx, database, "jti-1", expiry); err != nil {
		t.Fatalf("RevokeToken: %v", err)
	}
	revoked, _ = IsTokenRevoked(ctx, database, "jti-1")
	if !revoked {
		t.Error("expected revoked jti to read as revoked")
	}

	// Revoking twice is a no-op.
	if err := RevokeToken(ctx, database, "jti-1", expiry); err != nil {
		t.Errorf("expected repeated revocation to succeed, got %v", err)
	}
}

func TestRevokeTokenSweepsExpired(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	// An entry already past its expiry goes away on the next revocation.
	stale := time.Now().UTC().Add(-time.Hour)
	if err := RevokeToken(ctx, database, "jti-old", stale); err != nil {
		t.Fatalf("RevokeToken: %v", err)
	}
	if err := RevokeToken(ctx, database, "jti-new", time.Now().UTC().Add(time.Hour)); err != nil {
		t.Fatalf("RevokeToken: %v", err)
	}

	revoked, err := IsTokenRevoked(ctx, database, "jti-old")
	if err != nil {
		t.Fatalf("IsTokenRevoked: %v", err)
	}
	if revoked {
		t.Error("expected expired revocation to be swept")
	}
}
