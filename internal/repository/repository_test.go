package repository

import (
	"context"
	"database/sql"
	"testing"

	"github.com/amirk1998/daybook/internal/database"
	"github.com/amirk1998/daybook/internal/models"
	"github.com/amirk1998/daybook/pkg/errors"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory failed: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func newUserRepo(db *sql.DB) *UserRepository {
	return NewUserRepository(db, database.NewTransactionManager(db))
}

func createUser(t *testing.T, db *sql.DB, username string) *models.User {
	t.Helper()
	user := &models.User{Username: username, Email: username + "@x.com", PasswordHash: "hash"}
	if err := newUserRepo(db).Create(context.Background(), user, nil); err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return user
}

func TestUserRepository_DuplicateAndLookup(t *testing.T) {
	db := setupTestDB(t)
	repo := newUserRepo(db)
	ctx := context.Background()

	alice := createUser(t, db, "alice")

	dup := &models.User{Username: "alice", Email: "other@x.com", PasswordHash: "h"}
	if err := repo.Create(ctx, dup, models.DefaultCategories); !errors.Is(err, errors.ErrUserAlreadyExists) {
		t.Errorf("expected ErrUserAlreadyExists, got %v", err)
	}
	if dup.ID != 0 {
		t.Errorf("failed create must not leave an id, got %d", dup.ID)
	}

	got, err := repo.GetByEmail(ctx, "ALICE@x.com")
	if err != nil {
		t.Fatalf("GetByEmail failed: %v", err)
	}
	if got.ID != alice.ID || got.ProfileIcon != "default" || got.FontFamily != "Inter" {
		t.Errorf("unexpected user %+v", got)
	}
	if got.HasDiaryPin() {
		t.Errorf("new user should have no diary pin")
	}

	if err := repo.SetDiaryPin(ctx, alice.ID, "pinhash"); err != nil {
		t.Fatalf("SetDiaryPin failed: %v", err)
	}
	got, _ = repo.GetByID(ctx, alice.ID)
	if !got.HasDiaryPin() {
		t.Errorf("expected diary pin to be set")
	}

	if _, err := repo.GetByUsername(ctx, "nobody"); !errors.Is(err, errors.ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}

func TestUserRepository_FailedLogins(t *testing.T) {
	db := setupTestDB(t)
	repo := newUserRepo(db)
	ctx := context.Background()
	alice := createUser(t, db, "alice")

	for want := 1; want <= 3; want++ {
		got, err := repo.IncrementFailedLogins(ctx, alice.ID)
		if err != nil {
			t.Fatalf("IncrementFailedLogins failed: %v", err)
		}
		if got != want {
			t.Errorf("attempts = %d, want %d", got, want)
		}
	}

	if err := repo.UpdateLastLogin(ctx, alice.ID); err != nil {
		t.Fatalf("UpdateLastLogin failed: %v", err)
	}
	got, _ := repo.GetByID(ctx, alice.ID)
	if got.FailedLoginAttempts != 0 || got.LastLogin == nil {
		t.Errorf("successful login should reset attempts, got %+v", got)
	}
}

func TestNoteRepository_OwnershipAndOrdering(t *testing.T) {
	db := setupTestDB(t)
	repo := NewNoteRepository(db)
	ctx := context.Background()
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")

	first := &models.Note{UserID: alice.ID, Title: "first", NoteType: "text", Color: "default"}
	second := &models.Note{UserID: alice.ID, Title: "second", NoteType: "text", Color: "default", Tags: []string{"work"}}
	pinned := &models.Note{UserID: alice.ID, Title: "pinned", NoteType: "text", Color: "default", IsPinned: true}
	for _, n := range []*models.Note{first, second, pinned} {
		if err := repo.Create(ctx, n); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	notes, err := repo.List(ctx, models.NoteListFilters{UserID: alice.ID})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(notes) != 3 || notes[0].ID != pinned.ID {
		t.Fatalf("expected pinned note first, got %d notes", len(notes))
	}

	tagged, _ := repo.List(ctx, models.NoteListFilters{UserID: alice.ID, Tag: "work"})
	if len(tagged) != 1 || tagged[0].ID != second.ID {
		t.Errorf("tag filter returned %d notes", len(tagged))
	}
	if len(tagged) == 1 && (len(tagged[0].Tags) != 1 || tagged[0].Tags[0] != "work") {
		t.Errorf("tags = %v", tagged[0].Tags)
	}

	empty, _ := repo.List(ctx, models.NoteListFilters{UserID: bob.ID})
	if empty == nil || len(empty) != 0 {
		t.Errorf("expected an empty, non-nil list for bob, got %v", empty)
	}

	if _, err := repo.GetByID(ctx, bob.ID, first.ID); !errors.Is(err, errors.ErrRecordNotFound) {
		t.Errorf("expected not found across users, got %v", err)
	}
	if err := repo.Delete(ctx, bob.ID, first.ID); !errors.Is(err, errors.ErrRecordNotFound) {
		t.Errorf("expected not found deleting another user's note, got %v", err)
	}
	if _, err := repo.GetByID(ctx, alice.ID, first.ID); err != nil {
		t.Errorf("note must survive a foreign delete: %v", err)
	}
}

func TestNoteRepository_Pagination(t *testing.T) {
	db := setupTestDB(t)
	repo := NewNoteRepository(db)
	ctx := context.Background()
	alice := createUser(t, db, "alice")

	for i := 0; i < 5; i++ {
		repo.Create(ctx, &models.Note{UserID: alice.ID, Title: "n", NoteType: "text", Color: "default"})
	}

	seen := map[int]bool{}
	for page := 1; page <= 3; page++ {
		notes, err := repo.List(ctx, models.NoteListFilters{
			UserID:     alice.ID,
			Pagination: models.Pagination{Page: page, Limit: 2},
		})
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		for _, n := range notes {
			if seen[n.ID] {
				t.Errorf("note %d returned twice", n.ID)
			}
			seen[n.ID] = true
		}
	}
	if len(seen) != 5 {
		t.Errorf("expected 5 distinct notes across pages, got %d", len(seen))
	}
}

func TestTodoRepository_Reorder(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTodoRepository(db, database.NewTransactionManager(db))
	ctx := context.Background()
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")

	ids := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		pos, err := repo.NextPosition(ctx, alice.ID)
		if err != nil {
			t.Fatalf("NextPosition failed: %v", err)
		}
		if pos != i {
			t.Errorf("NextPosition = %d, want %d", pos, i)
		}
		todo := &models.Todo{UserID: alice.ID, Title: "t", Priority: "medium", Status: "pending", Position: pos}
		if err := repo.Create(ctx, todo); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		ids = append(ids, todo.ID)
	}

	order := []int{ids[2], ids[0], ids[1]}
	if err := repo.Reorder(ctx, alice.ID, order); err != nil {
		t.Fatalf("Reorder failed: %v", err)
	}
	todos, _ := repo.List(ctx, models.TodoListFilters{UserID: alice.ID})
	for i, todo := range todos {
		if todo.ID != order[i] || todo.Position != i {
			t.Errorf("position %d: got todo %d at %d", i, todo.ID, todo.Position)
		}
	}

	foreign := &models.Todo{UserID: bob.ID, Title: "b", Priority: "low", Status: "pending"}
	repo.Create(ctx, foreign)

	err := repo.Reorder(ctx, alice.ID, []int{ids[0], ids[1], foreign.ID})
	if !errors.Is(err, errors.ErrRecordNotFound) {
		t.Fatalf("expected not found for a foreign id, got %v", err)
	}
	todos, _ = repo.List(ctx, models.TodoListFilters{UserID: alice.ID})
	for i, todo := range todos {
		if todo.ID != order[i] {
			t.Errorf("reorder must roll back: position %d holds %d", i, todo.ID)
		}
	}
}

func TestCategoryRepository_CountsAndUniqueness(t *testing.T) {
	db := setupTestDB(t)
	tm := database.NewTransactionManager(db)
	repo := NewCategoryRepository(db)
	ctx := context.Background()

	alice := &models.User{Username: "alice", Email: "alice@x.com", PasswordHash: "h"}
	if err := newUserRepo(db).Create(ctx, alice, models.DefaultCategories); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	categories, _ := repo.List(ctx, models.CategoryListFilters{UserID: alice.ID})
	if len(categories) != len(models.DefaultCategories) {
		t.Fatalf("expected %d seeded categories, got %d", len(models.DefaultCategories), len(categories))
	}
	if categories[0].Name != "Ideas" {
		t.Errorf("expected name ordering, first is %q", categories[0].Name)
	}

	dup := &models.Category{UserID: alice.ID, Name: "Work", Color: "#000000", Icon: "x"}
	err := repo.Create(ctx, dup)
	if status, _ := errors.StatusOf(err); status != 409 {
		t.Errorf("expected 409 for duplicate name, got %d (%v)", status, err)
	}

	work := categories[len(categories)-1]
	NewNoteRepository(db).Create(ctx, &models.Note{UserID: alice.ID, CategoryID: &work.ID, Title: "n", NoteType: "text", Color: "default"})
	NewTodoRepository(db, tm).Create(ctx, &models.Todo{UserID: alice.ID, CategoryID: &work.ID, Title: "t", Priority: "low", Status: "pending"})

	got, err := repo.GetByID(ctx, alice.ID, work.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.NoteCount != 1 || got.TodoCount != 1 {
		t.Errorf("counts = %d notes, %d todos", got.NoteCount, got.TodoCount)
	}
}

func TestCategoryRepository_DeleteSkipsReferencedCategory(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCategoryRepository(db)
	notes := NewNoteRepository(db)
	ctx := context.Background()

	alice := createUser(t, db, "alice")
	books := &models.Category{UserID: alice.ID, Name: "Books", Color: "#123456", Icon: "book"}
	if err := repo.Create(ctx, books); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	note := &models.Note{UserID: alice.ID, CategoryID: &books.ID, Title: "n", NoteType: "text", Color: "default"}
	if err := notes.Create(ctx, note); err != nil {
		t.Fatalf("create note: %v", err)
	}

	if err := repo.Delete(ctx, alice.ID, books.ID); !errors.Is(err, errors.ErrRecordNotFound) {
		t.Fatalf("Delete of referenced category returned %v, want ErrRecordNotFound", err)
	}
	if _, err := repo.GetByID(ctx, alice.ID, books.ID); err != nil {
		t.Fatalf("referenced category should survive: %v", err)
	}

	if err := notes.Delete(ctx, alice.ID, note.ID); err != nil {
		t.Fatalf("delete note: %v", err)
	}
	if err := repo.Delete(ctx, alice.ID, books.ID); err != nil {
		t.Fatalf("Delete after clearing references failed: %v", err)
	}
}
