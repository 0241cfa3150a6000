package database

import (
	"database/sql"
	"fmt"
)

// schema is applied in order; every statement is idempotent.
// category_id and related_id are weak references: no foreign key, so
// category deletion is guarded in the service layer instead.
var schema = []struct {
	name string
	ddl  string
}{
	{"users", `
    CREATE TABLE IF NOT EXISTS users (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        username TEXT UNIQUE NOT NULL,
        email TEXT UNIQUE NOT NULL,
        password_hash TEXT NOT NULL,
        full_name TEXT NOT NULL DEFAULT '',
        profile_icon TEXT NOT NULL DEFAULT 'default',
        font_family TEXT NOT NULL DEFAULT 'Inter',
        diary_pin TEXT,
        created_at DATETIME NOT NULL,
        updated_at DATETIME NOT NULL,
        last_login DATETIME,
        is_active BOOLEAN NOT NULL DEFAULT 1,
        failed_login_attempts INTEGER NOT NULL DEFAULT 0,
        locked_until DATETIME
    );`},
	{"categories", `
    CREATE TABLE IF NOT EXISTS categories (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        user_id INTEGER NOT NULL,
        name TEXT NOT NULL,
        color TEXT NOT NULL,
        icon TEXT NOT NULL,
        created_at DATETIME NOT NULL,
        UNIQUE (user_id, name),
        FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
    );`},
	{"notes", `
    CREATE TABLE IF NOT EXISTS notes (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        user_id INTEGER NOT NULL,
        category_id INTEGER,
        title TEXT NOT NULL,
        content TEXT NOT NULL DEFAULT '',
        note_type TEXT NOT NULL,
        color TEXT NOT NULL,
        is_pinned BOOLEAN NOT NULL DEFAULT 0,
        tags TEXT NOT NULL DEFAULT '[]',
        created_at DATETIME NOT NULL,
        updated_at DATETIME NOT NULL,
        FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
    );
    CREATE INDEX IF NOT EXISTS idx_notes_user ON notes(user_id, is_pinned, updated_at);
    CREATE INDEX IF NOT EXISTS idx_notes_category ON notes(category_id);`},
	{"todos", `
    CREATE TABLE IF NOT EXISTS todos (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        user_id INTEGER NOT NULL,
        category_id INTEGER,
        title TEXT NOT NULL,
        description TEXT NOT NULL DEFAULT '',
        priority TEXT NOT NULL,
        status TEXT NOT NULL,
        completed_at DATETIME,
        due_date TEXT,
        reminder_datetime DATETIME,
        position INTEGER NOT NULL DEFAULT 0,
        created_at DATETIME NOT NULL,
        updated_at DATETIME NOT NULL,
        FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
    );
    CREATE INDEX IF NOT EXISTS idx_todos_user ON todos(user_id, position);
    CREATE INDEX IF NOT EXISTS idx_todos_category ON todos(category_id);`},
	{"diary_entries", `
    CREATE TABLE IF NOT EXISTS diary_entries (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        user_id INTEGER NOT NULL,
        title TEXT NOT NULL DEFAULT '',
        content_encrypted TEXT NOT NULL,
        mood TEXT,
        entry_date TEXT NOT NULL,
        created_at DATETIME NOT NULL,
        updated_at DATETIME NOT NULL,
        FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
    );
    CREATE INDEX IF NOT EXISTS idx_diary_user_date ON diary_entries(user_id, entry_date);`},
	{"images", `
    CREATE TABLE IF NOT EXISTS images (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        user_id INTEGER NOT NULL,
        original_name TEXT NOT NULL,
        stored_name TEXT UNIQUE NOT NULL,
        file_path TEXT NOT NULL,
        file_size INTEGER NOT NULL,
        mime_type TEXT NOT NULL,
        image_type TEXT NOT NULL,
        related_id INTEGER,
        created_at DATETIME NOT NULL,
        FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
    );
    CREATE INDEX IF NOT EXISTS idx_images_user ON images(user_id, image_type);`},
}

// Migrate runs database migrations
func Migrate(db *sql.DB) error {
	for _, step := range schema {
		if _, err := db.Exec(step.ddl); err != nil {
			return fmt.Errorf("failed to create %s table: %w", step.name, err)
		}
	}
	return nil
}
