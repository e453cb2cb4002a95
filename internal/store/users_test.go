package store

import (
	"context"
	"testing"

	"github.com/seyio/owemi/internal/db"
	"github.com/seyio/owemi/internal/model"
)

func TestCreateAndGetUser(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	user, err := CreateUser(ctx, database, "ada", "hash", model.PlanFree)
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if user.Plan != model.PlanFree {
		t.Errorf("expected free plan, got %q", user.Plan)
	}

	byName, err := GetUserByUsername(ctx, database, "ada")
	if err != nil {
		t.Fatalf("GetUserByUsername: %v", err)
	}
	if byName == nil || byName.ID != user.ID {
		t.Error("expected lookup by username to find the user")
	}

	missing, _ := GetUserByUsername(ctx, database, "nobody")
	if missing != nil {
		t.Error("expected nil for unknown username")
	}
}

func TestDuplicateUsernameRejected(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	if _, err := CreateUser(ctx, database, "ada", "hash", model.PlanFree); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if _, err := CreateUser(ctx, database, "ada", "hash", model.PlanFree); err == nil {
		t.Error("expected duplicate username to fail")
	}
}

func TestSetUserPlan(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	user, _ := CreateUser(ctx, database, "ada", "hash", model.PlanFree)

	if err := SetUserPlan(ctx, database, user.ID, model.PlanPro); err != nil {
		t.Fatalf("SetUserPlan: %v", err)
	}
	reloaded, _ := GetUser(ctx, database, user.ID)
	if reloaded.Plan != model.PlanPro {
		t.Errorf("expected pro plan, got %q", reloaded.Plan)
	}

	if err := SetUserPlan(ctx, database, user.ID, "platinum"); !model.IsKind(err, model.KindValidation) {
		t.Errorf("expected validation error for unknown plan, got %v", err)
	}
}
