package store

import (
	"context"
	"errors"
	"testing"

	"github.com/dukerupert/choreledger/internal/model"
)

func TestFamilyMemberCreateAndGet(t *testing.T) {
	_, s := setupTestDB(t)
	ctx := context.Background()

	m, err := s.Members.Create(ctx, "Alice", model.RoleChild)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if m.Name != "Alice" {
		t.Errorf("name = %q, want %q", m.Name, "Alice")
	}
	if m.Role != model.RoleChild {
		t.Errorf("role = %q, want %q", m.Role, model.RoleChild)
	}
	if !m.Active {
		t.Error("expected active")
	}
	if !m.IsChild() {
		t.Error("expected IsChild")
	}

	got, err := s.Members.GetByID(ctx, m.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil || got.ID != m.ID {
		t.Fatalf("got %+v, want id %d", got, m.ID)
	}
}

func TestFamilyMemberNotFound(t *testing.T) {
	_, s := setupTestDB(t)

	got, err := s.Members.GetByID(context.Background(), 999)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != nil {
		t.Error("expected nil for non-existent member")
	}
}

func TestFamilyMemberDuplicateActiveName(t *testing.T) {
	_, s := setupTestDB(t)
	ctx := context.Background()

	if _, err := s.Members.Create(ctx, "Alice", model.RoleChild); err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err := s.Members.Create(ctx, "Alice", model.RoleParent)
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("err = %v, want ErrDuplicate", err)
	}

	exists, err := s.Members.NameExists(ctx, "Alice", 0)
	if err != nil {
		t.Fatalf("name exists: %v", err)
	}
	if !exists {
		t.Error("expected name to exist")
	}
}

func TestFamilyMemberDeactivate(t *testing.T) {
	_, s := setupTestDB(t)
	ctx := context.Background()

	m := mustChild(t, s, "Alice")

	ok, err := s.Members.Deactivate(ctx, m.ID)
	if err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if !ok {
		t.Fatal("expected deactivate to report a change")
	}
	ok, _ = s.Members.Deactivate(ctx, m.ID)
	if ok {
		t.Error("second deactivate should report no change")
	}

	got, _ := s.Members.GetByID(ctx, m.ID)
	if got.Active || got.IsChild() {
		t.Error("deactivated member should not count as a child")
	}

	members, _ := s.Members.List(ctx)
	if len(members) != 0 {
		t.Errorf("expected 0 active members, got %d", len(members))
	}

	// The name is free again once the old member is inactive.
	if _, err := s.Members.Create(ctx, "Alice", model.RoleChild); err != nil {
		t.Errorf("recreate after deactivate: %v", err)
	}
}
