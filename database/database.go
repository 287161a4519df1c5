package database

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3" // Import the SQLite3 driver
)

// InitDB opens (creating if necessary) the SQLite database that backs the
// thread index and ensures the schema exists.
func InitDB(dbPath string) (*sql.DB, error) {
	// Ensure the directory for the database file exists.
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// The busy timeout serializes the scanner and the event handler when
	// both write at the same time instead of surfacing SQLITE_BUSY.
	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Ping the database to verify the connection.
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := createThreadsTable(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create threads table: %w", err)
	}

	if err := createUserPreferencesTable(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create user_preferences table: %w", err)
	}

	log.Println("Successfully connected to the database at", dbPath)
	return db, nil
}

// createThreadsTable creates the 'threads' table if it doesn't exist. The
// primary key on thread_id gives insert-if-absent semantics under
// concurrent writers.
func createThreadsTable(db *sql.DB) error {
	query := `
    CREATE TABLE IF NOT EXISTS threads (
        thread_id INTEGER PRIMARY KEY,
        forum_id INTEGER NOT NULL,
        guild_id INTEGER NOT NULL
    );`
	if _, err := db.Exec(query); err != nil {
		return err
	}

	_, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_threads_forum ON threads (forum_id)`)
	return err
}

// createUserPreferencesTable creates the 'user_preferences' table if it
// doesn't exist. selected_pools is a JSON array of forum ids, or ["all"]
// for the default pool.
func createUserPreferencesTable(db *sql.DB) error {
	query := `
    CREATE TABLE IF NOT EXISTS user_preferences (
        user_id INTEGER PRIMARY KEY,
        guild_id INTEGER NOT NULL,
        selected_pools TEXT NOT NULL
    );`
	_, err := db.Exec(query)
	return err
}
