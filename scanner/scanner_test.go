package scanner

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/Echoer009/Odysseia-Gacha/config"
	"github.com/Echoer009/Odysseia-Gacha/models"

	"github.com/bwmarrin/discordgo"
	"github.com/spf13/viper"
)

type fakeIndex struct {
	records map[int64]models.ThreadRecord
	upserts int
}

func newFakeIndex(seed ...models.ThreadRecord) *fakeIndex {
	idx := &fakeIndex{records: make(map[int64]models.ThreadRecord)}
	for _, rec := range seed {
		idx.records[rec.ThreadID] = rec
	}
	return idx
}

func (f *fakeIndex) UpsertMany(records []models.ThreadRecord) (int64, error) {
	f.upserts++
	var added int64
	for _, rec := range records {
		if _, ok := f.records[rec.ThreadID]; ok {
			continue
		}
		f.records[rec.ThreadID] = rec
		added++
	}
	return added, nil
}

func (f *fakeIndex) MaxThreadID(forumID int64) (int64, bool, error) {
	var max int64
	seeded := false
	for _, rec := range f.records {
		if rec.ForumID != forumID {
			continue
		}
		seeded = true
		if rec.ThreadID > max {
			max = rec.ThreadID
		}
	}
	return max, seeded, nil
}

type mockLister struct {
	active        map[string][]*discordgo.Channel // keyed by guild id
	archived      map[string][][]*discordgo.Channel // keyed by forum id, paged
	archivedErr   map[string]error
	archivedCalls map[string]int
}

func (m *mockLister) GuildThreadsActive(guildID string, options ...discordgo.RequestOption) (*discordgo.ThreadsList, error) {
	return &discordgo.ThreadsList{Threads: m.active[guildID]}, nil
}

func (m *mockLister) ThreadsArchived(channelID string, before *time.Time, limit int, options ...discordgo.RequestOption) (*discordgo.ThreadsList, error) {
	if err := m.archivedErr[channelID]; err != nil {
		return nil, err
	}
	if m.archivedCalls == nil {
		m.archivedCalls = make(map[string]int)
	}
	page := m.archivedCalls[channelID]
	m.archivedCalls[channelID]++

	pages := m.archived[channelID]
	if page >= len(pages) {
		return &discordgo.ThreadsList{}, nil
	}
	return &discordgo.ThreadsList{
		Threads: pages[page],
		HasMore: page < len(pages)-1,
	}, nil
}

func thread(id, parentID string) *discordgo.Channel {
	archived := time.Now()
	return &discordgo.Channel{
		ID:             id,
		ParentID:       parentID,
		Type:           discordgo.ChannelTypeGuildPublicThread,
		ThreadMetadata: &discordgo.ThreadMetadata{ArchiveTimestamp: archived},
	}
}

func setGuilds(t *testing.T, guilds map[string]any) {
	t.Helper()
	viper.Set("guilds", guilds)
	if err := config.Refresh(); err != nil {
		t.Fatalf("refresh settings: %v", err)
	}
	t.Cleanup(func() {
		viper.Set("guilds", map[string]any{})
		config.Refresh()
	})
}

func TestIncrementalScanWatermarkAndDedup(t *testing.T) {
	setGuilds(t, map[string]any{
		"1": map[string]any{"forum_channels": []string{"10"}},
	})

	// Watermark 1000. Active lists {1001, 1002}; archived lists {1002, 999}.
	// Expected: exactly {1001, 1002} added.
	index := newFakeIndex(models.ThreadRecord{ThreadID: 1000, ForumID: 10, GuildID: 1})
	session := &mockLister{
		active: map[string][]*discordgo.Channel{
			"1": {thread("1001", "10"), thread("1002", "10")},
		},
		archived: map[string][][]*discordgo.Channel{
			"10": {{thread("1002", "10"), thread("999", "10")}},
		},
	}

	added := New(session, index).IncrementalScan(context.Background())
	if added != 2 {
		t.Fatalf("expected 2 added, got %d", added)
	}
	for _, id := range []int64{1000, 1001, 1002} {
		if _, ok := index.records[id]; !ok {
			t.Fatalf("expected thread %d in index", id)
		}
	}
	if _, ok := index.records[999]; ok {
		t.Fatal("thread 999 is below the watermark and must not be indexed")
	}
}

func TestIncrementalScanSkipsUnseededForum(t *testing.T) {
	setGuilds(t, map[string]any{
		"1": map[string]any{"forum_channels": []string{"10"}},
	})

	index := newFakeIndex()
	session := &mockLister{
		active: map[string][]*discordgo.Channel{
			"1": {thread("1001", "10"), thread("1002", "10")},
		},
	}

	added := New(session, index).IncrementalScan(context.Background())
	if added != 0 {
		t.Fatalf("expected 0 added for unseeded forum, got %d", added)
	}
	if index.upserts != 0 {
		t.Fatalf("expected no upsert calls for unseeded forum, got %d", index.upserts)
	}
}

func TestFullScanSeedsEverything(t *testing.T) {
	setGuilds(t, map[string]any{
		"1": map[string]any{"forum_channels": []string{"10"}},
	})

	index := newFakeIndex()
	session := &mockLister{
		active: map[string][]*discordgo.Channel{
			"1": {thread("1001", "10"), thread("3001", "99")}, // second belongs to another forum
		},
		archived: map[string][][]*discordgo.Channel{
			"10": {
				{thread("500", "10")},
				{thread("400", "10")},
			},
		},
	}

	added, err := New(session, index).FullScan(context.Background(), "1")
	if err != nil {
		t.Fatalf("full scan: %v", err)
	}
	if added != 3 {
		t.Fatalf("expected 3 added, got %d", added)
	}
	if _, ok := index.records[3001]; ok {
		t.Fatal("thread from an unmonitored forum must not be indexed")
	}

	// Re-running a full scan is idempotent.
	session.archivedCalls = nil
	added, err = New(session, index).FullScan(context.Background(), "1")
	if err != nil {
		t.Fatalf("second full scan: %v", err)
	}
	if added != 0 {
		t.Fatalf("expected 0 added on re-run, got %d", added)
	}
}

// bareThread builds an archived listing entry without thread metadata, as
// the platform occasionally returns.
func bareThread(id, parentID string) *discordgo.Channel {
	return &discordgo.Channel{
		ID:       id,
		ParentID: parentID,
		Type:     discordgo.ChannelTypeGuildPublicThread,
	}
}

func TestScanStopsWhenArchiveCursorStalls(t *testing.T) {
	setGuilds(t, map[string]any{
		"1": map[string]any{"forum_channels": []string{"10"}},
	})

	index := newFakeIndex()
	// The first archived page claims more results but carries no archive
	// timestamps, so the pagination cursor cannot advance.
	session := &mockLister{
		archived: map[string][][]*discordgo.Channel{
			"10": {
				{bareThread("600", "10")},
				{thread("601", "10")},
			},
		},
	}

	added, err := New(session, index).FullScan(context.Background(), "1")
	if err != nil {
		t.Fatalf("full scan: %v", err)
	}
	if added != 1 {
		t.Fatalf("expected only the stalled page indexed, got %d", added)
	}
	if got := session.archivedCalls["10"]; got != 1 {
		t.Fatalf("expected pagination to stop after the stalled page, got %d fetches", got)
	}
	if _, ok := index.records[600]; !ok {
		t.Fatal("expected the stalled page's thread to be indexed")
	}
}

func TestScanContainsPerForumFailures(t *testing.T) {
	setGuilds(t, map[string]any{
		"1": map[string]any{"forum_channels": []string{"10", "20"}},
	})

	index := newFakeIndex(
		models.ThreadRecord{ThreadID: 100, ForumID: 10, GuildID: 1},
		models.ThreadRecord{ThreadID: 101, ForumID: 20, GuildID: 1},
	)
	// Forum 10 denies the archived listing; forum 20 works.
	session := &mockLister{
		active: map[string][]*discordgo.Channel{
			"1": {thread("201", "20")},
		},
		archivedErr: map[string]error{
			"10": &discordgo.RESTError{Response: &http.Response{StatusCode: http.StatusForbidden}},
		},
		archived: map[string][][]*discordgo.Channel{
			"20": {{thread("202", "20")}},
		},
	}

	added := New(session, index).IncrementalScan(context.Background())
	if added != 2 {
		t.Fatalf("expected forum 20 to contribute 2 threads despite forum 10 failing, got %d", added)
	}
}
