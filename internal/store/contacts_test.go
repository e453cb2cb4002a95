package store

import (
	"context"
	"testing"

	"github.com/seyio/owemi/internal/db"
	"github.com/seyio/owemi/internal/model"
)

func TestCreateAndGetContact(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	user := testUser(t, database, "ada", model.PlanFree)
	contact, err := CreateContact(ctx, database, user.ID, &model.Contact{
		Name:  "Bola",
		Email: "bola@example.com",
	})
	if err != nil {
		t.Fatalf("CreateContact: %v", err)
	}
	if contact.Name != "Bola" {
		t.Errorf("expected name 'Bola', got %q", contact.Name)
	}
	if contact.OnPlatform() {
		t.Error("expected unlinked contact to be off-platform")
	}

	count, _ := CountHistory(ctx, database, model.EntityContact, contact.ID)
	if count != 1 {
		t.Errorf("expected 1 history entry after create, got %d", count)
	}
}

func TestContactScopedToOwner(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	ada := testUser(t, database, "ada", model.PlanFree)
	eve := testUser(t, database, "eve", model.PlanFree)
	contact := testContact(t, database, ada.ID, "Bola")

	got, err := GetContact(ctx, database, eve.ID, contact.ID)
	if err != nil {
		t.Fatalf("GetContact: %v", err)
	}
	if got != nil {
		t.Error("expected foreign contact to be invisible")
	}
}

func TestUpdateContact(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	user := testUser(t, database, "ada", model.PlanFree)
	contact := testContact(t, database, user.ID, "Bola")

	updated, err := UpdateContact(ctx, database, user.ID, contact.ID, &model.Contact{
		Name:  "Bola A.",
		Phone: "+2348000000000",
	})
	if err != nil {
		t.Fatalf("UpdateContact: %v", err)
	}
	if updated.Name != "Bola A." {
		t.Errorf("expected renamed contact, got %q", updated.Name)
	}

	count, _ := CountHistory(ctx, database, model.EntityContact, contact.ID)
	if count != 2 {
		t.Errorf("expected 2 history entries, got %d", count)
	}
}

func TestDeleteContact(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	user := testUser(t, database, "ada", model.PlanFree)
	contact := testContact(t, database, user.ID, "Bola")

	if err := DeleteContact(ctx, database, user.ID, contact.ID); err != nil {
		t.Fatalf("DeleteContact: %v", err)
	}

	list, _ := ListContacts(ctx, database, user.ID)
	if len(list) != 0 {
		t.Errorf("expected 0 contacts after delete, got %d", len(list))
	}

	// Still fetchable by ID for the audit view.
	got, _ := GetContact(ctx, database, user.ID, contact.ID)
	if got == nil || got.DeletedAt == nil {
		t.Error("expected soft-deleted contact to stay readable")
	}

	// Deleting twice is not-found.
	if err := DeleteContact(ctx, database, user.ID, contact.ID); !model.IsKind(err, model.KindNotFound) {
		t.Errorf("expected not-found on double delete, got %v", err)
	}
}
