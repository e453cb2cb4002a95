package store

import (
	"context"
	"testing"

	"github.com/seyio/owemi/internal/db"
	"github.com/seyio/owemi/internal/model"
	"github.com/seyio/owemi/internal/quota"
)

func TestAddWitnessesAndList(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	qs := &quota.Store{DB: database, FreeMonthlyInvites: 5}

	owner := testUser(t, database, "ada", model.PlanFree)
	verifier := testUser(t, database, "bola", model.PlanFree)
	contact := testContact(t, database, owner.ID, "Bola")
	tx, _ := CreateTransaction(ctx, database, owner.ID, fundsGiven(contact.ID, "100"))

	invites := []model.WitnessInvite{{Name: "Chi", Email: "chi@example.com"}}
	witnesses, err := AddWitnesses(ctx, database, qs, owner.ID, tx.ID, []int64{verifier.ID}, invites)
	if err != nil {
		t.Fatalf("AddWitnesses: %v", err)
	}
	if len(witnesses) != 2 {
		t.Fatalf("expected 2 witnesses, got %d", len(witnesses))
	}
	for _, w := range witnesses {
		if w.Status != model.WitnessPending {
			t.Errorf("expected pending status, got %q", w.Status)
		}
	}

	// Registered witness resolves to the account name, invite to the
	// invite name; the off-platform invite carries a token.
	if witnesses[0].WitnessName != "bola" {
		t.Errorf("expected witness name 'bola', got %q", witnesses[0].WitnessName)
	}
	if witnesses[1].InviteToken == "" {
		t.Error("expected invite token for off-platform witness")
	}
}

func TestAddWitnessesReturnsOnlyNew(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	qs := &quota.Store{DB: database, FreeMonthlyInvites: 5}

	owner := testUser(t, database, "ada", model.PlanFree)
	verifier := testUser(t, database, "bola", model.PlanFree)
	contact := testContact(t, database, owner.ID, "Bola")
	tx, _ := CreateTransaction(ctx, database, owner.ID, fundsGiven(contact.ID, "100"))

	first, _ := AddWitnesses(ctx, database, qs, owner.ID, tx.ID, []int64{verifier.ID}, nil)
	AcknowledgeWitness(ctx, database, verifier.ID, first[0].ID, model.WitnessAcknowledged)

	// A later batch hands back its own rows, not the whole roster: the
	// caller notifies exactly what it gets, and the already-acknowledged
	// witness must not be re-invited.
	second, err := AddWitnesses(ctx, database, qs, owner.ID, tx.ID, nil,
		[]model.WitnessInvite{{Name: "Chi", Email: "chi@example.com"}})
	if err != nil {
		t.Fatalf("AddWitnesses: %v", err)
	}
	if len(second) != 1 {
		t.Fatalf("expected 1 witness from second batch, got %d", len(second))
	}
	if second[0].WitnessName != "Chi" || second[0].Status != model.WitnessPending {
		t.Errorf("unexpected witness from second batch: %q %q", second[0].WitnessName, second[0].Status)
	}

	all, _ := ListWitnesses(ctx, database, tx.ID)
	if len(all) != 2 {
		t.Errorf("expected 2 witnesses on the transaction, got %d", len(all))
	}
}

func TestClaimWitnessInvites(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	qs := &quota.Store{DB: database, FreeMonthlyInvites: 5}

	owner := testUser(t, database, "ada", model.PlanFree)
	contact := testContact(t, database, owner.ID, "Bola")
	tx, _ := CreateTransaction(ctx, database, owner.ID, fundsGiven(contact.ID, "100"))

	invited, _ := AddWitnesses(ctx, database, qs, owner.ID, tx.ID, nil,
		[]model.WitnessInvite{{Name: "Chi", Email: "chi@example.com"}})

	// Registering with the invited email takes the invite over.
	chi := testUser(t, database, "chi", model.PlanFree)
	claimed, err := ClaimWitnessInvites(ctx, database, chi.ID, "chi@example.com")
	if err != nil {
		t.Fatalf("ClaimWitnessInvites: %v", err)
	}
	if claimed != 1 {
		t.Fatalf("expected 1 claimed invite, got %d", claimed)
	}

	// The invite now sits in the new account's queue, token retired.
	requests, _ := ListPendingWitnessRequests(ctx, database, chi.ID)
	if len(requests) != 1 {
		t.Fatalf("expected 1 pending request after claim, got %d", len(requests))
	}
	if requests[0].InviteToken != "" {
		t.Error("expected invite token to be cleared on claim")
	}

	// And the claimed witness can deliver a verdict.
	acked, err := AcknowledgeWitness(ctx, database, chi.ID, invited[0].ID, model.WitnessAcknowledged)
	if err != nil {
		t.Fatalf("AcknowledgeWitness after claim: %v", err)
	}
	if acked.Status != model.WitnessAcknowledged {
		t.Errorf("expected acknowledged, got %q", acked.Status)
	}

	// The claim is audited.
	count, _ := CountHistory(ctx, database, model.EntityWitness, invited[0].ID)
	if count != 2 { // invite + claim
		t.Errorf("expected 2 witness history entries, got %d", count)
	}

	// A second registration with an unrelated email claims nothing.
	dayo := testUser(t, database, "dayo", model.PlanFree)
	if claimed, _ := ClaimWitnessInvites(ctx, database, dayo.ID, "dayo@example.com"); claimed != 0 {
		t.Errorf("expected 0 claims for unmatched email, got %d", claimed)
	}
}

func TestAddWitnessesSelfRejected(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	qs := &quota.Store{DB: database, FreeMonthlyInvites: 5}

	owner := testUser(t, database, "ada", model.PlanFree)
	contact := testContact(t, database, owner.ID, "Bola")
	tx, _ := CreateTransaction(ctx, database, owner.ID, fundsGiven(contact.ID, "100"))

	_, err := AddWitnesses(ctx, database, qs, owner.ID, tx.ID, []int64{owner.ID}, nil)
	if !model.IsKind(err, model.KindValidation) {
		t.Errorf("expected validation error for self-witnessing, got %v", err)
	}
}

func TestAddWitnessesQuotaAllOrNothing(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	qs := &quota.Store{DB: database, FreeMonthlyInvites: 1}

	owner := testUser(t, database, "ada", model.PlanFree)
	contact := testContact(t, database, owner.ID, "Bola")
	tx, _ := CreateTransaction(ctx, database, owner.ID, fundsGiven(contact.ID, "100"))

	invites := []model.WitnessInvite{
		{Name: "Chi", Email: "chi@example.com"},
		{Name: "Dayo", Email: "dayo@example.com"},
	}
	_, err := AddWitnesses(ctx, database, qs, owner.ID, tx.ID, nil, invites)
	if !model.IsKind(err, model.KindQuota) {
		t.Fatalf("expected quota error, got %v", err)
	}
	if de := model.AsError(err); de.Remaining != 1 {
		t.Errorf("expected remaining allowance 1, got %d", de.Remaining)
	}

	// A refused batch must not leave partial witnesses behind.
	witnesses, _ := ListWitnesses(ctx, database, tx.ID)
	if len(witnesses) != 0 {
		t.Errorf("expected no witnesses after quota refusal, got %d", len(witnesses))
	}
}

func TestAddWitnessesProUncapped(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	qs := &quota.Store{DB: database, FreeMonthlyInvites: 1}

	owner := testUser(t, database, "ada", model.PlanPro)
	contact := testContact(t, database, owner.ID, "Bola")
	tx, _ := CreateTransaction(ctx, database, owner.ID, fundsGiven(contact.ID, "100"))

	invites := []model.WitnessInvite{
		{Name: "Chi", Email: "chi@example.com"},
		{Name: "Dayo", Email: "dayo@example.com"},
		{Name: "Efe", Email: "efe@example.com"},
	}
	witnesses, err := AddWitnesses(ctx, database, qs, owner.ID, tx.ID, nil, invites)
	if err != nil {
		t.Fatalf("AddWitnesses: %v", err)
	}
	if len(witnesses) != 3 {
		t.Errorf("expected 3 witnesses for pro user, got %d", len(witnesses))
	}
}

func TestAcknowledgeWitness(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	qs := &quota.Store{DB: database, FreeMonthlyInvites: 5}

	owner := testUser(t, database, "ada", model.PlanFree)
	verifier := testUser(t, database, "bola", model.PlanFree)
	contact := testContact(t, database, owner.ID, "Bola")
	tx, _ := CreateTransaction(ctx, database, owner.ID, fundsGiven(contact.ID, "100"))

	witnesses, _ := AddWitnesses(ctx, database, qs, owner.ID, tx.ID, []int64{verifier.ID}, nil)
	witnessID := witnesses[0].ID

	// Only the invited account may act; the owner sees not-found.
	if _, err := AcknowledgeWitness(ctx, database, owner.ID, witnessID, model.WitnessAcknowledged); !model.IsKind(err, model.KindNotFound) {
		t.Errorf("expected not-found for non-invited user, got %v", err)
	}

	acked, err := AcknowledgeWitness(ctx, database, verifier.ID, witnessID, model.WitnessAcknowledged)
	if err != nil {
		t.Fatalf("AcknowledgeWitness: %v", err)
	}
	if acked.Status != model.WitnessAcknowledged {
		t.Errorf("expected acknowledged, got %q", acked.Status)
	}
	if acked.AcknowledgedAt == nil {
		t.Error("expected acknowledged_at to be set")
	}

	// A second attempt is a conflict and writes no duplicate history.
	before, _ := CountHistory(ctx, database, model.EntityTransaction, tx.ID)
	if _, err := AcknowledgeWitness(ctx, database, verifier.ID, witnessID, model.WitnessDeclined); !model.IsKind(err, model.KindConflict) {
		t.Errorf("expected conflict on second verdict, got %v", err)
	}
	after, _ := CountHistory(ctx, database, model.EntityTransaction, tx.ID)
	if before != after {
		t.Errorf("conflict must not append history: %d != %d", before, after)
	}
}

func TestMaterialEditDemotesAcknowledgedWitnesses(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	qs := &quota.Store{DB: database, FreeMonthlyInvites: 5}

	owner := testUser(t, database, "ada", model.PlanFree)
	verifier := testUser(t, database, "bola", model.PlanFree)
	contact := testContact(t, database, owner.ID, "Bola")
	tx, _ := CreateTransaction(ctx, database, owner.ID, fundsGiven(contact.ID, "100"))

	witnesses, _ := AddWitnesses(ctx, database, qs, owner.ID, tx.ID, []int64{verifier.ID}, nil)
	AcknowledgeWitness(ctx, database, verifier.ID, witnesses[0].ID, model.WitnessAcknowledged)

	// Changing the amount invalidates the verification.
	in := fundsGiven(contact.ID, "500")
	in.OccurredAt = tx.OccurredAt
	if _, err := UpdateTransaction(ctx, database, owner.ID, tx.ID, in); err != nil {
		t.Fatalf("UpdateTransaction: %v", err)
	}

	reloaded, _ := ListWitnesses(ctx, database, tx.ID)
	if reloaded[0].Status != model.WitnessModified {
		t.Errorf("expected modified status after material edit, got %q", reloaded[0].Status)
	}

	// The demotion is itself audited, per witness.
	count, _ := CountHistory(ctx, database, model.EntityWitness, witnesses[0].ID)
	if count != 2 { // invite + demotion
		t.Errorf("expected 2 witness history entries, got %d", count)
	}

	// The demoted witness can act again.
	acked, err := AcknowledgeWitness(ctx, database, verifier.ID, witnesses[0].ID, model.WitnessAcknowledged)
	if err != nil {
		t.Fatalf("AcknowledgeWitness after demotion: %v", err)
	}
	if acked.Status != model.WitnessAcknowledged {
		t.Errorf("expected re-acknowledgement to land, got %q", acked.Status)
	}
}

func TestImmaterialEditKeepsAcknowledgement(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	qs := &quota.Store{DB: database, FreeMonthlyInvites: 5}

	owner := testUser(t, database, "ada", model.PlanFree)
	verifier := testUser(t, database, "bola", model.PlanFree)
	contact := testContact(t, database, owner.ID, "Bola")
	tx, _ := CreateTransaction(ctx, database, owner.ID, fundsGiven(contact.ID, "100"))

	witnesses, _ := AddWitnesses(ctx, database, qs, owner.ID, tx.ID, []int64{verifier.ID}, nil)
	AcknowledgeWitness(ctx, database, verifier.ID, witnesses[0].ID, model.WitnessAcknowledged)

	// Only the description changes: the verified facts are intact.
	in := fundsGiven(contact.ID, "100")
	in.OccurredAt = tx.OccurredAt
	in.Description = "lunch money"
	if _, err := UpdateTransaction(ctx, database, owner.ID, tx.ID, in); err != nil {
		t.Fatalf("UpdateTransaction: %v", err)
	}

	reloaded, _ := ListWitnesses(ctx, database, tx.ID)
	if reloaded[0].Status != model.WitnessAcknowledged {
		t.Errorf("expected acknowledgement to survive an immaterial edit, got %q", reloaded[0].Status)
	}
}

func TestResendWitness(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	qs := &quota.Store{DB: database, FreeMonthlyInvites: 5}

	owner := testUser(t, database, "ada", model.PlanFree)
	contact := testContact(t, database, owner.ID, "Bola")
	tx, _ := CreateTransaction(ctx, database, owner.ID, fundsGiven(contact.ID, "100"))

	witnesses, _ := AddWitnesses(ctx, database, qs, owner.ID, tx.ID, nil,
		[]model.WitnessInvite{{Name: "Chi", Email: "chi@example.com"}})

	before, err := qs.RemainingWitnessInvites(ctx, owner.ID)
	if err != nil {
		t.Fatalf("RemainingWitnessInvites: %v", err)
	}

	resent, err := ResendWitness(ctx, database, owner.ID, witnesses[0].ID)
	if err != nil {
		t.Fatalf("ResendWitness: %v", err)
	}
	if resent.InvitedAt.Before(witnesses[0].InvitedAt) {
		t.Error("expected invited_at to move forward")
	}
	if resent.Status != model.WitnessPending {
		t.Errorf("resend must not change status, got %q", resent.Status)
	}

	// Resending reuses the original invite; the monthly allowance only
	// moves when a new witness is created.
	after, err := qs.RemainingWitnessInvites(ctx, owner.ID)
	if err != nil {
		t.Fatalf("RemainingWitnessInvites: %v", err)
	}
	if after != before {
		t.Errorf("resend must not consume quota: %d -> %d", before, after)
	}
}

func TestRemoveWitness(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	qs := &quota.Store{DB: database, FreeMonthlyInvites: 5}

	owner := testUser(t, database, "ada", model.PlanFree)
	verifier := testUser(t, database, "bola", model.PlanFree)
	contact := testContact(t, database, owner.ID, "Bola")
	tx, _ := CreateTransaction(ctx, database, owner.ID, fundsGiven(contact.ID, "100"))

	witnesses, _ := AddWitnesses(ctx, database, qs, owner.ID, tx.ID, []int64{verifier.ID}, nil)

	// An acknowledged witness is immovable.
	AcknowledgeWitness(ctx, database, verifier.ID, witnesses[0].ID, model.WitnessAcknowledged)
	if err := RemoveWitness(ctx, database, owner.ID, witnesses[0].ID); !model.IsKind(err, model.KindConflict) {
		t.Errorf("expected conflict removing acknowledged witness, got %v", err)
	}

	// A pending one goes away cleanly.
	more, _ := AddWitnesses(ctx, database, qs, owner.ID, tx.ID, nil,
		[]model.WitnessInvite{{Name: "Chi", Email: "chi@example.com"}})
	pendingID := more[len(more)-1].ID
	if err := RemoveWitness(ctx, database, owner.ID, pendingID); err != nil {
		t.Fatalf("RemoveWitness: %v", err)
	}

	remaining, _ := ListWitnesses(ctx, database, tx.ID)
	if len(remaining) != 1 {
		t.Errorf("expected 1 witness left, got %d", len(remaining))
	}
}

func TestListPendingWitnessRequests(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	qs := &quota.Store{DB: database, FreeMonthlyInvites: 5}

	owner := testUser(t, database, "ada", model.PlanFree)
	verifier := testUser(t, database, "bola", model.PlanFree)
	contact := testContact(t, database, owner.ID, "Bola")

	first, _ := CreateTransaction(ctx, database, owner.ID, fundsGiven(contact.ID, "100"))
	second, _ := CreateTransaction(ctx, database, owner.ID, fundsGiven(contact.ID, "200"))

	AddWitnesses(ctx, database, qs, owner.ID, first.ID, []int64{verifier.ID}, nil)
	w2, _ := AddWitnesses(ctx, database, qs, owner.ID, second.ID, []int64{verifier.ID}, nil)

	requests, err := ListPendingWitnessRequests(ctx, database, verifier.ID)
	if err != nil {
		t.Fatalf("ListPendingWitnessRequests: %v", err)
	}
	if len(requests) != 2 {
		t.Fatalf("expected 2 pending requests, got %d", len(requests))
	}

	// Acting on one drops it from the queue.
	AcknowledgeWitness(ctx, database, verifier.ID, w2[0].ID, model.WitnessDeclined)
	requests, _ = ListPendingWitnessRequests(ctx, database, verifier.ID)
	if len(requests) != 1 {
		t.Errorf("expected 1 pending request after decline, got %d", len(requests))
	}
}
