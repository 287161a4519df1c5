package database

import (
	"database/sql"
	"fmt"

	"github.com/Echoer009/Odysseia-Gacha/models"

	sq "github.com/Masterminds/squirrel"
)

// Store is the durable thread index shared by the scanner, the
// thread-create handler and the draw panel.
type Store struct {
	db *sql.DB
}

// NewStore wraps an initialized database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open is a convenience for InitDB + NewStore.
func Open(dbPath string) (*Store, error) {
	db, err := InitDB(dbPath)
	if err != nil {
		return nil, err
	}
	return NewStore(db), nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// UpsertMany inserts the records whose thread_id is not yet present and
// silently skips the rest. It returns the number of rows actually inserted.
func (s *Store) UpsertMany(records []models.ThreadRecord) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin upsert transaction: %w", err)
	}
	defer tx.Rollback()

	var added int64
	for _, rec := range records {
		res, err := sq.Insert("threads").
			Options("OR IGNORE").
			Columns("thread_id", "forum_id", "guild_id").
			Values(rec.ThreadID, rec.ForumID, rec.GuildID).
			RunWith(tx).
			Exec()
		if err != nil {
			return 0, fmt.Errorf("insert thread %d: %w", rec.ThreadID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("rows affected for thread %d: %w", rec.ThreadID, err)
		}
		added += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit upsert transaction: %w", err)
	}
	return added, nil
}

// MaxThreadID returns the highest indexed thread id for a forum, which is
// the scan watermark. The second return is false when the forum has no records yet,
// which gates incremental scanning until a full scan seeds it.
func (s *Store) MaxThreadID(forumID int64) (int64, bool, error) {
	var max sql.NullInt64
	err := sq.Select("MAX(thread_id)").
		From("threads").
		Where(sq.Eq{"forum_id": forumID}).
		RunWith(s.db).
		QueryRow().
		Scan(&max)
	if err != nil {
		return 0, false, fmt.Errorf("query watermark for forum %d: %w", forumID, err)
	}
	if !max.Valid {
		return 0, false, nil
	}
	return max.Int64, true, nil
}

// ThreadIDs returns every indexed thread id for a guild, optionally limited
// to a set of forums. Used by the draw panel at selection time.
func (s *Store) ThreadIDs(guildID int64, forumIDs []int64) ([]int64, error) {
	query := sq.Select("thread_id").
		From("threads").
		Where(sq.Eq{"guild_id": guildID})
	if len(forumIDs) > 0 {
		query = query.Where(sq.Eq{"forum_id": forumIDs})
	}

	rows, err := query.RunWith(s.db).Query()
	if err != nil {
		return nil, fmt.Errorf("query thread ids for guild %d: %w", guildID, err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan thread id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate thread ids: %w", err)
	}
	return ids, nil
}

// Delete removes one record. Called when a thread has proven permanently
// inaccessible (404 or forbidden on fetch), so the index self-heals.
func (s *Store) Delete(threadID int64) error {
	_, err := sq.Delete("threads").
		Where(sq.Eq{"thread_id": threadID}).
		RunWith(s.db).
		Exec()
	if err != nil {
		return fmt.Errorf("delete thread %d: %w", threadID, err)
	}
	return nil
}
