package database

import (
	"path/filepath"
	"testing"

	"github.com/Echoer009/Odysseia-Gacha/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "threads.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestUpsertManyIsIdempotent(t *testing.T) {
	store := openTestStore(t)

	records := []models.ThreadRecord{
		{ThreadID: 1001, ForumID: 10, GuildID: 1},
		{ThreadID: 1002, ForumID: 10, GuildID: 1},
	}

	added, err := store.UpsertMany(records)
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if added != 2 {
		t.Fatalf("expected 2 inserted, got %d", added)
	}

	// The same records again, plus one new one: only the new one counts.
	records = append(records, models.ThreadRecord{ThreadID: 1003, ForumID: 10, GuildID: 1})
	added, err = store.UpsertMany(records)
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if added != 1 {
		t.Fatalf("expected 1 inserted on re-upsert, got %d", added)
	}

	ids, err := store.ThreadIDs(1, nil)
	if err != nil {
		t.Fatalf("thread ids: %v", err)
	}
	if len(ids) != 3 {
		t.Fatalf("expected 3 records, got %d", len(ids))
	}
}

func TestUpsertManyEmptyBatch(t *testing.T) {
	store := openTestStore(t)

	added, err := store.UpsertMany(nil)
	if err != nil {
		t.Fatalf("empty upsert: %v", err)
	}
	if added != 0 {
		t.Fatalf("expected 0 inserted, got %d", added)
	}
}

func TestMaxThreadIDWatermark(t *testing.T) {
	store := openTestStore(t)

	// Unseeded forum: no watermark.
	_, seeded, err := store.MaxThreadID(10)
	if err != nil {
		t.Fatalf("watermark query: %v", err)
	}
	if seeded {
		t.Fatal("expected unseeded forum to report no watermark")
	}

	_, err = store.UpsertMany([]models.ThreadRecord{
		{ThreadID: 999, ForumID: 10, GuildID: 1},
		{ThreadID: 1002, ForumID: 10, GuildID: 1},
		{ThreadID: 5000, ForumID: 20, GuildID: 1}, // other forum
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	max, seeded, err := store.MaxThreadID(10)
	if err != nil {
		t.Fatalf("watermark query: %v", err)
	}
	if !seeded {
		t.Fatal("expected forum to be seeded")
	}
	if max != 1002 {
		t.Fatalf("expected watermark 1002, got %d", max)
	}
}

func TestThreadIDsFiltersByForum(t *testing.T) {
	store := openTestStore(t)

	_, err := store.UpsertMany([]models.ThreadRecord{
		{ThreadID: 1, ForumID: 10, GuildID: 1},
		{ThreadID: 2, ForumID: 20, GuildID: 1},
		{ThreadID: 3, ForumID: 30, GuildID: 1},
		{ThreadID: 4, ForumID: 10, GuildID: 2}, // other guild
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	ids, err := store.ThreadIDs(1, []int64{10, 20})
	if err != nil {
		t.Fatalf("thread ids: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 ids, got %v", ids)
	}
	for _, id := range ids {
		if id != 1 && id != 2 {
			t.Fatalf("unexpected id %d in result %v", id, ids)
		}
	}
}

func TestDeleteRepairsIndex(t *testing.T) {
	store := openTestStore(t)

	if _, err := store.UpsertMany([]models.ThreadRecord{{ThreadID: 42, ForumID: 10, GuildID: 1}}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := store.Delete(42); err != nil {
		t.Fatalf("delete: %v", err)
	}

	ids, err := store.ThreadIDs(1, nil)
	if err != nil {
		t.Fatalf("thread ids: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("expected empty index after delete, got %v", ids)
	}

	// Deleting a missing record is a no-op, not an error.
	if err := store.Delete(42); err != nil {
		t.Fatalf("delete of missing record: %v", err)
	}
}
