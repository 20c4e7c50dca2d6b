package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/familyhub/internal/model"
)

func TestPostgresInvitationRepo_AcceptTwice(t *testing.T) {
	db := setupIntegrationDB(t)
	ctx := context.Background()
	users := NewPostgresUserRepo(db)
	families := NewPostgresFamilyRepo(db)
	invitations := NewPostgresInvitationRepo(db)

	org := createTestUser(t, users, "org@example.com")
	guest := createTestUser(t, users, "guest@example.com")
	f := createTestFamily(t, families, org)
	inv := createTestInvitation(t, invitations, f.ID, org.ID, guest.Email)

	now := time.Now().UTC()
	member := &model.FamilyMember{ID: uuid.New().String(), FamilyID: f.ID, UserID: guest.ID, Role: model.RoleChild, JoinedAt: now}
	if err := invitations.Accept(ctx, inv.ID, member, now); err != nil {
		t.Fatalf("Accept failed: %v", err)
	}

	member.ID = uuid.New().String()
	err := invitations.Accept(ctx, inv.ID, member, now)
	if !errors.Is(err, ErrInvitationNotPending) {
		t.Fatalf("second Accept err = %v, want ErrInvitationNotPending", err)
	}
}

func TestPostgresInvitationRepo_DuplicatePendingIgnoringCase(t *testing.T) {
	db := setupIntegrationDB(t)
	ctx := context.Background()
	users := NewPostgresUserRepo(db)
	families := NewPostgresFamilyRepo(db)
	invitations := NewPostgresInvitationRepo(db)

	org := createTestUser(t, users, "org@example.com")
	f := createTestFamily(t, families, org)
	first := createTestInvitation(t, invitations, f.ID, org.ID, "kid@example.com")

	now := time.Now().UTC()
	err := invitations.Create(ctx, &model.Invitation{
		ID: uuid.New().String(), FamilyID: f.ID, Email: "Kid@Example.com", Role: model.RoleParent,
		Token: uuid.New().String(), Status: model.InvitationPending, InvitedBy: org.ID,
		ExpiresAt: now.Add(time.Hour), CreatedAt: now,
	})
	if !errors.Is(err, ErrPendingInvitationExists) {
		t.Fatalf("err = %v, want ErrPendingInvitationExists", err)
	}

	got, err := invitations.FindPending(ctx, f.ID, "KID@example.com")
	if err != nil {
		t.Fatalf("FindPending failed: %v", err)
	}
	if got == nil || got.ID != first.ID {
		t.Errorf("FindPending = %+v, want %s", got, first.ID)
	}
}

func TestPostgresInvitationRepo_Switch_DeletesEmptyFamily(t *testing.T) {
	db := setupIntegrationDB(t)
	ctx := context.Background()
	users := NewPostgresUserRepo(db)
	families := NewPostgresFamilyRepo(db)
	members := NewPostgresMemberRepo(db)
	invitations := NewPostgresInvitationRepo(db)

	orgA := createTestUser(t, users, "a@example.com")
	orgB := createTestUser(t, users, "b@example.com")
	famA := createTestFamily(t, families, orgA)
	famB := createTestFamily(t, families, orgB)
	inv := createTestInvitation(t, invitations, famB.ID, orgB.ID, orgA.Email)

	now := time.Now().UTC()
	deleted, err := invitations.Switch(ctx, inv.ID, famA.ID, &model.FamilyMember{
		ID: uuid.New().String(), FamilyID: famB.ID, UserID: orgA.ID, Role: model.RoleChild, JoinedAt: now,
	}, now)
	if err != nil {
		t.Fatalf("Switch failed: %v", err)
	}
	if !deleted {
		t.Error("old family with no remaining members should be deleted")
	}

	m, err := members.FindByUserID(ctx, orgA.ID)
	if err != nil {
		t.Fatalf("FindByUserID failed: %v", err)
	}
	if m == nil || m.FamilyID != famB.ID {
		t.Fatalf("membership = %+v, want family %s", m, famB.ID)
	}

	old, err := families.FindByID(ctx, famA.ID)
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if old != nil {
		t.Error("old family should have been deleted")
	}
}

// TestPostgresInvitationRepo_ExpirePending は期限切れのpending招待のみがexpiredになることを検証する。
func TestPostgresInvitationRepo_ExpirePending(t *testing.T) {
	db := setupIntegrationDB(t)
	ctx := context.Background()
	users := NewPostgresUserRepo(db)
	families := NewPostgresFamilyRepo(db)
	invitations := NewPostgresInvitationRepo(db)

	org := createTestUser(t, users, "org@example.com")
	f := createTestFamily(t, families, org)

	now := time.Now().UTC()
	overdue := createTestInvitationExpiring(t, invitations, f.ID, org.ID, "overdue@example.com", now.Add(-time.Minute))
	valid := createTestInvitationExpiring(t, invitations, f.ID, org.ID, "valid@example.com", now.Add(time.Hour))
	declined := createTestInvitationExpiring(t, invitations, f.ID, org.ID, "declined@example.com", now.Add(-time.Minute))
	if err := invitations.UpdateStatus(ctx, declined.ID, model.InvitationDeclined, now); err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}

	n, err := invitations.ExpirePending(ctx, now)
	if err != nil {
		t.Fatalf("ExpirePending failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expired = %d, want 1", n)
	}

	for _, tt := range []struct {
		inv  *model.Invitation
		want model.InvitationStatus
	}{
		{overdue, model.InvitationExpired},
		{valid, model.InvitationPending},
		{declined, model.InvitationDeclined},
	} {
		got, err := invitations.FindByID(ctx, tt.inv.ID)
		if err != nil {
			t.Fatalf("FindByID failed: %v", err)
		}
		if got == nil || got.Status != tt.want {
			t.Errorf("%s status = %+v, want %s", tt.inv.Email, got, tt.want)
		}
	}

	// 2回目は対象なし
	again, err := invitations.ExpirePending(ctx, now)
	if err != nil {
		t.Fatalf("ExpirePending failed: %v", err)
	}
	if again != 0 {
		t.Errorf("second run expired = %d, want 0", again)
	}
}
