package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/sakif/formgate/internal/apperror"
	"github.com/sakif/formgate/internal/model"
)

// newTestDB returns a fresh in-memory database, closed when the test ends.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func strPtr(s string) *string { return &s }

// =========================================================================
// USER TESTS
// =========================================================================

func TestInsertAndGet(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	user := &model.User{ID: "alice", Username: "alice", Password: strPtr("secret")}
	if err := db.Insert(ctx, user); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	got, err := db.Get(ctx, "alice")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Username != "alice" {
		t.Errorf("Username = %q, want %q", got.Username, "alice")
	}
	if got.Email != "" {
		t.Errorf("Email = %q, want empty", got.Email)
	}
	if got.Password == nil || *got.Password != "secret" {
		t.Errorf("Password = %v, want %q", got.Password, "secret")
	}
}

func TestInsert_Duplicate(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if err := db.Insert(ctx, &model.User{ID: "bob", Username: "bob", Password: strPtr("one")}); err != nil {
		t.Fatalf("first Insert() error = %v", err)
	}

	err := db.Insert(ctx, &model.User{ID: "bob", Username: "bob", Password: strPtr("two")})
	if !errors.Is(err, apperror.ErrConflict) {
		t.Fatalf("second Insert() error = %v, want ErrConflict", err)
	}

	// The original record must be untouched.
	got, err := db.Get(ctx, "bob")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if *got.Password != "one" {
		t.Errorf("Password = %q, want %q", *got.Password, "one")
	}
}

func TestGet_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.Get(context.Background(), "nonexistent-id")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestCreate_FederatedUserHasNullPassword(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if _, err := db.Create(ctx, "g123", "A", "a@b.com"); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := db.Get(ctx, "g123")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Password != nil {
		t.Errorf("Password = %q, want nil", *got.Password)
	}
	if got.Email != "a@b.com" {
		t.Errorf("Email = %q, want %q", got.Email, "a@b.com")
	}
}

func TestCreate_LastWriteWins(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	db.Create(ctx, "g1", "first", "")
	db.Create(ctx, "g1", "second", "")

	users, err := db.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(users) != 1 {
		t.Fatalf("len(users) = %d, want 1", len(users))
	}
	if users["g1"].Username != "second" {
		t.Errorf("Username = %q, want %q", users["g1"].Username, "second")
	}
}

func TestSaveReplacesUsers(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	db.Insert(ctx, &model.User{ID: "old", Username: "old"})

	err := db.Save(ctx, map[string]model.User{
		"x": {Username: "x", Password: strPtr("p")},
		"y": {Username: "y", Email: "y@example.com"},
	})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	users, err := db.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if _, ok := users["old"]; ok {
		t.Error("Save() kept a user that was not in the new mapping")
	}
	if len(users) != 2 {
		t.Errorf("len(users) = %d, want 2", len(users))
	}
	if users["y"].Password != nil {
		t.Error("user y should have no password")
	}
}

func TestLoad_EmptyDatabase(t *testing.T) {
	db := newTestDB(t)

	users, err := db.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if users == nil || len(users) != 0 {
		t.Errorf("Load() = %v, want empty non-nil map", users)
	}

	forms, err := db.Forms().Load(context.Background())
	if err != nil {
		t.Fatalf("Forms().Load() error = %v", err)
	}
	if forms == nil || len(forms) != 0 {
		t.Errorf("Forms().Load() = %v, want empty non-nil slice", forms)
	}
}

// =========================================================================
// FORM TESTS
// =========================================================================

func TestAppendKeepsOrder(t *testing.T) {
	forms := newTestDB(t).Forms()
	ctx := context.Background()

	want := []model.FormSubmission{
		{Name: "a", Type: "bug", Message: "one", Timestamp: "2024-05-01 09:00:00"},
		{Name: "b", Type: "idea", Message: "two", Timestamp: "2024-05-01 09:00:01"},
		{Name: "a", Type: "bug", Message: "one", Timestamp: "2024-05-01 09:00:00"},
	}
	for _, f := range want {
		if err := forms.Append(ctx, f); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	got, err := forms.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("forms[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestFormSaveThenAppend(t *testing.T) {
	forms := newTestDB(t).Forms()
	ctx := context.Background()

	forms.Append(ctx, model.FormSubmission{Name: "dropped"})
	if err := forms.Save(ctx, []model.FormSubmission{{Name: "first"}, {Name: "second"}}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	forms.Append(ctx, model.FormSubmission{Name: "third"})

	got, _ := forms.Load(ctx)
	names := make([]string, len(got))
	for i, f := range got {
		names[i] = f.Name
	}
	want := []string{"first", "second", "third"}
	if len(names) != len(want) {
		t.Fatalf("names = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("names = %v, want %v", names, want)
			break
		}
	}
}

func TestFileDatabasePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "formgate.db")
	ctx := context.Background()

	db, err := New(path)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	db.Insert(ctx, &model.User{ID: "persist", Username: "persist", Password: strPtr("pw")})
	db.Close()

	reopened, err := New(path)
	if err != nil {
		t.Fatalf("reopening: %v", err)
	}
	defer reopened.Close()

	if _, err := reopened.Get(ctx, "persist"); err != nil {
		t.Errorf("Get() after reopen error = %v", err)
	}
}
