package users

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"qms/callboard-service/internal/models"
	"qms/callboard-service/internal/store"
	"qms/callboard-service/internal/store/filestore"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

func newTestDirectory(t *testing.T) (*Directory, *filestore.Store) {
	t.Helper()
	docs, err := filestore.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	now := func() time.Time { return time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC) }
	return NewDirectory(docs, BcryptVerifier{Cost: bcrypt.MinCost}, Options{Now: now}, zerolog.Nop()), docs
}

func TestCreateAndFindByCredentials(t *testing.T) {
	ctx := context.Background()
	dir, docs := newTestDirectory(t)

	user, err := dir.Create(ctx, "alice", "s3cret", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if user.Role != models.RoleStaff {
		t.Fatalf("expected default role staff, got %q", user.Role)
	}
	if _, err := uuid.Parse(user.ID); err != nil {
		t.Fatalf("expected uuid id, got %q", user.ID)
	}

	var stored []models.User
	if err := docs.Load(ctx, store.UsersDocument, &stored); err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(stored) != 1 || stored[0].PasswordHash == "" || stored[0].PasswordHash == "s3cret" || stored[0].Password != "" {
		t.Fatalf("password not hashed at rest: %+v", stored)
	}

	found, ok, err := dir.FindByCredentials(ctx, "alice", "s3cret")
	if err != nil || !ok {
		t.Fatalf("expected login to succeed: ok=%v err=%v", ok, err)
	}
	if found.Username != "alice" || found.PasswordHash != "" {
		t.Fatalf("unexpected user: %+v", found)
	}

	if _, ok, _ := dir.FindByCredentials(ctx, "alice", "wrong"); ok {
		t.Fatalf("expected wrong password to fail")
	}
	if _, ok, _ := dir.FindByCredentials(ctx, "nobody", "s3cret"); ok {
		t.Fatalf("expected unknown user to fail")
	}
	if _, ok, _ := dir.FindByCredentials(ctx, "alice", ""); ok {
		t.Fatalf("expected empty password to fail")
	}
}

func TestCreateValidation(t *testing.T) {
	ctx := context.Background()
	dir, _ := newTestDirectory(t)

	if _, err := dir.Create(ctx, "alice", "pw", models.RoleAdmin); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := dir.Create(ctx, " alice ", "other", ""); !errors.Is(err, ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
	if _, err := dir.Create(ctx, "", "pw", ""); !errors.Is(err, ErrInvalidUser) {
		t.Fatalf("expected ErrInvalidUser, got %v", err)
	}
	if _, err := dir.Create(ctx, "bob", "", ""); !errors.Is(err, ErrInvalidUser) {
		t.Fatalf("expected ErrInvalidUser, got %v", err)
	}
	if _, err := dir.Create(ctx, "bob", "pw", "superuser"); !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}

	all, err := dir.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 1 || all[0].Role != models.RoleAdmin {
		t.Fatalf("unexpected users: %+v", all)
	}
}

func TestUpdatePasswordAndDelete(t *testing.T) {
	ctx := context.Background()
	dir, _ := newTestDirectory(t)

	if err := dir.UpdatePassword(ctx, "ghost", "pw"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if err := dir.Delete(ctx, "ghost"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}

	if _, err := dir.Create(ctx, "alice", "old", ""); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := dir.Create(ctx, "bob", "pw", ""); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := dir.UpdatePassword(ctx, "alice", "new"); err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, ok, _ := dir.FindByCredentials(ctx, "alice", "old"); ok {
		t.Fatalf("old password still accepted")
	}
	if _, ok, _ := dir.FindByCredentials(ctx, "alice", "new"); !ok {
		t.Fatalf("new password rejected")
	}

	if err := dir.Delete(ctx, "alice"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	all, _ := dir.List(ctx)
	if len(all) != 1 || all[0].Username != "bob" {
		t.Fatalf("unexpected users after delete: %+v", all)
	}
}

func TestLegacyPlaintextPasswordIsUpgraded(t *testing.T) {
	ctx := context.Background()
	dir, docs := newTestDirectory(t)

	legacy := []models.User{{Username: "carol", Password: "letmein"}}
	if err := docs.Save(ctx, store.UsersDocument, legacy); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if _, ok, _ := dir.FindByCredentials(ctx, "carol", "nope"); ok {
		t.Fatalf("wrong legacy password accepted")
	}
	user, ok, err := dir.FindByCredentials(ctx, "carol", "letmein")
	if err != nil || !ok {
		t.Fatalf("legacy login failed: ok=%v err=%v", ok, err)
	}
	if user.Role != models.RoleStaff {
		t.Fatalf("expected staff role, got %q", user.Role)
	}

	var stored []models.User
	if err := docs.Load(ctx, store.UsersDocument, &stored); err != nil {
		t.Fatalf("load: %v", err)
	}
	if stored[0].Password != "" || !strings.HasPrefix(stored[0].PasswordHash, "$2") || stored[0].ID == "" {
		t.Fatalf("legacy record not upgraded: %+v", stored[0])
	}
	if _, ok, _ := dir.FindByCredentials(ctx, "carol", "letmein"); !ok {
		t.Fatalf("login after upgrade failed")
	}
}

func TestBcryptVerifier(t *testing.T) {
	v := BcryptVerifier{Cost: bcrypt.MinCost}
	hash, err := v.Hash("pw")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !v.Verify(hash, "pw") || v.Verify(hash, "other") || v.Verify("", "pw") {
		t.Fatalf("unexpected verify results")
	}
}
