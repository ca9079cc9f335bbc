package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"nodeuser-server-go/internal/domain/user/model"
)

// runStoreSuite exercises the Store contract against a backend. Each backend
// test file feeds it a fresh, empty store.
func runStoreSuite(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("InsertAndFind", func(t *testing.T) { testInsertAndFind(t, newStore(t)) })
	t.Run("InsertConflict", func(t *testing.T) { testInsertConflict(t, newStore(t)) })
	t.Run("Sessions", func(t *testing.T) { testSessions(t, newStore(t)) })
	t.Run("SessionSetSemantics", func(t *testing.T) { testSessionSetSemantics(t, newStore(t)) })
	t.Run("RemoveByFingerprint", func(t *testing.T) { testRemoveByFingerprint(t, newStore(t)) })
	t.Run("RemoveByToken", func(t *testing.T) { testRemoveByToken(t, newStore(t)) })
	t.Run("Update", func(t *testing.T) { testUpdate(t, newStore(t)) })
	t.Run("Delete", func(t *testing.T) { testDelete(t, newStore(t)) })
	t.Run("ResetCodeAndLastLogin", func(t *testing.T) { testResetCodeAndLastLogin(t, newStore(t)) })
	t.Run("List", func(t *testing.T) { testList(t, newStore(t)) })
}

func seedUser(id, username, email string) model.User {
	return model.User{
		ID:           id,
		Username:     username,
		Email:        email,
		PasswordHash: "$2a$04$fakefakefakefakefakefake",
		Level:        model.LevelUser,
		Friends:      []string{},
		RegisteredAt: time.Now().UTC().Truncate(time.Second),
	}
}

func testInsertAndFind(t *testing.T, s Store) {
	ctx := context.Background()
	defer s.Close(ctx)

	user := seedUser("u1", "alice", "alice@example.com")
	if err := s.Insert(ctx, user); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	byID, err := s.FindByID(ctx, "u1")
	if err != nil {
		t.Fatalf("find by id failed: %v", err)
	}
	if byID.Username != "alice" || byID.Email != "alice@example.com" {
		t.Errorf("unexpected record: %+v", byID)
	}
	if byID.PasswordHash == "" {
		t.Error("store must retain the password hash")
	}

	if _, err := s.FindByUsername(ctx, "alice"); err != nil {
		t.Errorf("find by username failed: %v", err)
	}
	if _, err := s.FindByEmail(ctx, "alice@example.com"); err != nil {
		t.Errorf("find by email failed: %v", err)
	}

	if _, err := s.FindByID(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.FindByUsername(ctx, "nobody"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.FindByEmail(ctx, "nobody@example.com"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func testInsertConflict(t *testing.T, s Store) {
	ctx := context.Background()
	defer s.Close(ctx)

	if err := s.Insert(ctx, seedUser("u1", "alice", "alice@example.com")); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	err := s.Insert(ctx, seedUser("u2", "alice", "other@example.com"))
	if !errors.Is(err, ErrConflict) {
		t.Errorf("duplicate username: expected ErrConflict, got %v", err)
	}
	err = s.Insert(ctx, seedUser("u3", "other", "alice@example.com"))
	if !errors.Is(err, ErrConflict) {
		t.Errorf("duplicate email: expected ErrConflict, got %v", err)
	}
}

func testSessions(t *testing.T, s Store) {
	ctx := context.Background()
	defer s.Close(ctx)

	if err := s.Insert(ctx, seedUser("u1", "alice", "alice@example.com")); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	sess := model.Session{Token: "tok-1", IP: "10.0.0.1", Browser: "firefox"}
	if err := s.AddSession(ctx, "u1", sess); err != nil {
		t.Fatalf("add session failed: %v", err)
	}

	user, err := s.FindBySession(ctx, "tok-1", "10.0.0.1", "firefox")
	if err != nil {
		t.Fatalf("find by session failed: %v", err)
	}
	if user.ID != "u1" {
		t.Errorf("expected u1, got %s", user.ID)
	}

	// A token matches only with its exact fingerprint.
	if _, err := s.FindBySession(ctx, "tok-1", "10.9.9.9", "firefox"); !errors.Is(err, ErrNotFound) {
		t.Errorf("wrong ip: expected ErrNotFound, got %v", err)
	}
	if _, err := s.FindBySession(ctx, "tok-1", "10.0.0.1", "chrome"); !errors.Is(err, ErrNotFound) {
		t.Errorf("wrong browser: expected ErrNotFound, got %v", err)
	}
	if _, err := s.FindBySession(ctx, "tok-2", "10.0.0.1", "firefox"); !errors.Is(err, ErrNotFound) {
		t.Errorf("wrong token: expected ErrNotFound, got %v", err)
	}

	if err := s.AddSession(ctx, "missing", sess); !errors.Is(err, ErrNotFound) {
		t.Errorf("add session for missing user: expected ErrNotFound, got %v", err)
	}
}

func testSessionSetSemantics(t *testing.T, s Store) {
	ctx := context.Background()
	defer s.Close(ctx)

	if err := s.Insert(ctx, seedUser("u1", "alice", "alice@example.com")); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	sess := model.Session{Token: "tok-1", IP: "10.0.0.1", Browser: "firefox"}
	for i := 0; i < 3; i++ {
		if err := s.AddSession(ctx, "u1", sess); err != nil {
			t.Fatalf("add session %d failed: %v", i, err)
		}
	}

	user, err := s.FindByID(ctx, "u1")
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if len(user.Sessions) != 1 {
		t.Errorf("expected one session after repeated adds, got %d", len(user.Sessions))
	}
}

func testRemoveByFingerprint(t *testing.T, s Store) {
	ctx := context.Background()
	defer s.Close(ctx)

	if err := s.Insert(ctx, seedUser("u1", "alice", "alice@example.com")); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	sessions := []model.Session{
		{Token: "tok-1", IP: "10.0.0.1", Browser: "firefox"},
		{Token: "tok-2", IP: "10.0.0.1", Browser: "firefox"},
		{Token: "tok-3", IP: "192.168.1.5", Browser: "chrome"},
	}
	for _, sess := range sessions {
		if err := s.AddSession(ctx, "u1", sess); err != nil {
			t.Fatalf("add session failed: %v", err)
		}
	}

	if err := s.RemoveSessionsByFingerprint(ctx, "u1", "10.0.0.1", "firefox"); err != nil {
		t.Fatalf("remove by fingerprint failed: %v", err)
	}

	user, err := s.FindByID(ctx, "u1")
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if len(user.Sessions) != 1 || user.Sessions[0].Token != "tok-3" {
		t.Errorf("expected only tok-3 to survive, got %+v", user.Sessions)
	}

	// No matches and unknown users are not errors.
	if err := s.RemoveSessionsByFingerprint(ctx, "u1", "1.2.3.4", "opera"); err != nil {
		t.Errorf("no-match removal errored: %v", err)
	}
	if err := s.RemoveSessionsByFingerprint(ctx, "missing", "1.2.3.4", "opera"); err != nil {
		t.Errorf("unknown user removal errored: %v", err)
	}
}

func testRemoveByToken(t *testing.T, s Store) {
	ctx := context.Background()
	defer s.Close(ctx)

	if err := s.Insert(ctx, seedUser("u1", "alice", "alice@example.com")); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if err := s.AddSession(ctx, "u1", model.Session{Token: "tok-1", IP: "10.0.0.1", Browser: "firefox"}); err != nil {
		t.Fatalf("add session failed: %v", err)
	}
	if err := s.AddSession(ctx, "u1", model.Session{Token: "tok-2", IP: "192.168.1.5", Browser: "chrome"}); err != nil {
		t.Fatalf("add session failed: %v", err)
	}

	removed, err := s.RemoveSessionByToken(ctx, "tok-1")
	if err != nil {
		t.Fatalf("remove by token failed: %v", err)
	}
	if !removed {
		t.Fatal("expected removal to be reported")
	}

	user, err := s.FindByID(ctx, "u1")
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if len(user.Sessions) != 1 || user.Sessions[0].Token != "tok-2" {
		t.Errorf("expected only tok-2 to survive, got %+v", user.Sessions)
	}

	removed, err = s.RemoveSessionByToken(ctx, "tok-1")
	if err != nil {
		t.Fatalf("second removal errored: %v", err)
	}
	if removed {
		t.Error("expected second removal to report nothing removed")
	}
}

func testUpdate(t *testing.T, s Store) {
	ctx := context.Background()
	defer s.Close(ctx)

	if err := s.Insert(ctx, seedUser("u1", "alice", "alice@example.com")); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if err := s.Insert(ctx, seedUser("u2", "bob", "bob@example.com")); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	updated := seedUser("u1", "alice2", "alice2@example.com")
	updated.Level = model.LevelAdmin
	updated.Friends = []string{"bob"}
	updated.PasswordHash = "" // empty hash means keep the stored one
	if err := s.Update(ctx, updated); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	got, err := s.FindByID(ctx, "u1")
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if got.Username != "alice2" || got.Email != "alice2@example.com" {
		t.Errorf("unexpected record after update: %+v", got)
	}
	if got.Level != model.LevelAdmin {
		t.Errorf("expected admin level, got %s", got.Level)
	}
	if len(got.Friends) != 1 || got.Friends[0] != "bob" {
		t.Errorf("expected friends [bob], got %v", got.Friends)
	}
	if got.PasswordHash == "" {
		t.Error("update with empty hash must keep the stored hash")
	}

	conflict := seedUser("u1", "bob", "alice2@example.com")
	if err := s.Update(ctx, conflict); !errors.Is(err, ErrConflict) {
		t.Errorf("expected ErrConflict on taken username, got %v", err)
	}
	if err := s.Update(ctx, seedUser("missing", "x", "x@example.com")); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown user, got %v", err)
	}
}

func testDelete(t *testing.T, s Store) {
	ctx := context.Background()
	defer s.Close(ctx)

	if err := s.Insert(ctx, seedUser("u1", "alice", "alice@example.com")); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if err := s.AddSession(ctx, "u1", model.Session{Token: "tok-1", IP: "10.0.0.1", Browser: "firefox"}); err != nil {
		t.Fatalf("add session failed: %v", err)
	}

	if err := s.Delete(ctx, "u1"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := s.FindByID(ctx, "u1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected deleted user to be gone, got %v", err)
	}
	if _, err := s.FindBySession(ctx, "tok-1", "10.0.0.1", "firefox"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected session to die with the user, got %v", err)
	}
	if err := s.Delete(ctx, "u1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on double delete, got %v", err)
	}
}

func testResetCodeAndLastLogin(t *testing.T, s Store) {
	ctx := context.Background()
	defer s.Close(ctx)

	if err := s.Insert(ctx, seedUser("u1", "alice", "alice@example.com")); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	if err := s.SetResetCode(ctx, "u1", "code-123"); err != nil {
		t.Fatalf("set reset code failed: %v", err)
	}
	now := time.Now().UTC().Truncate(time.Second)
	if err := s.SetLastLogin(ctx, "u1", now); err != nil {
		t.Fatalf("set last login failed: %v", err)
	}

	user, err := s.FindByID(ctx, "u1")
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if user.ResetCode != "code-123" {
		t.Errorf("expected reset code to be stored, got %q", user.ResetCode)
	}
	if user.LastLoginAt == nil || !user.LastLoginAt.Equal(now) {
		t.Errorf("expected last login %v, got %v", now, user.LastLoginAt)
	}

	if err := s.SetResetCode(ctx, "missing", "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := s.SetLastLogin(ctx, "missing", now); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func testList(t *testing.T, s Store) {
	ctx := context.Background()
	defer s.Close(ctx)

	users, err := s.List(ctx)
	if err != nil {
		t.Fatalf("list on empty store failed: %v", err)
	}
	if len(users) != 0 {
		t.Fatalf("expected empty list, got %d", len(users))
	}

	if err := s.Insert(ctx, seedUser("u1", "alice", "alice@example.com")); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if err := s.Insert(ctx, seedUser("u2", "bob", "bob@example.com")); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	users, err = s.List(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(users) != 2 {
		t.Errorf("expected 2 users, got %d", len(users))
	}
}
