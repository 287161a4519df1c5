package scanner

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/Echoer009/Odysseia-Gacha/config"
	"github.com/Echoer009/Odysseia-Gacha/models"
	"github.com/Echoer009/Odysseia-Gacha/utils"

	"github.com/bwmarrin/discordgo"
)

// ThreadLister is the slice of the Discord session the scanner needs.
// *discordgo.Session satisfies it.
type ThreadLister interface {
	GuildThreadsActive(guildID string, options ...discordgo.RequestOption) (*discordgo.ThreadsList, error)
	ThreadsArchived(channelID string, before *time.Time, limit int, options ...discordgo.RequestOption) (*discordgo.ThreadsList, error)
}

// Index is the thread store surface the scanner writes through.
type Index interface {
	UpsertMany(records []models.ThreadRecord) (int64, error)
	MaxThreadID(forumID int64) (int64, bool, error)
}

// Scanner reconciles the remote thread listings of the monitored forums
// against the local index.
type Scanner struct {
	Session ThreadLister
	Index   Index
}

// New creates a scanner over the given session and index.
func New(session ThreadLister, index Index) *Scanner {
	return &Scanner{Session: session, Index: index}
}

// FullScan indexes every active and archived thread of every monitored
// forum in the guild, regardless of watermark. Used for bootstrap and
// recovery; safe to re-run.
func (sc *Scanner) FullScan(ctx context.Context, guildID string) (int64, error) {
	settings, ok := config.Current().Guild(guildID)
	if !ok || len(settings.ForumChannels) == 0 {
		return 0, fmt.Errorf("no monitored forums configured for guild %s", guildID)
	}

	var total int64
	for _, forumID := range settings.ForumChannels {
		if ctx.Err() != nil {
			return total, ctx.Err()
		}
		added, err := sc.scanForum(guildID, forumID, 0)
		if err != nil {
			// One forum's failure never aborts the scan of the others.
			utils.Warn("Scanner", "FullScan", fmt.Sprintf("forum %s: %v", forumID, err))
			continue
		}
		total += added
	}
	return total, nil
}

// IncrementalScan walks every configured guild and forum, keeping only
// threads newer than the per-forum watermark. A forum with no indexed
// threads is skipped entirely: a full scan is its prerequisite, so that
// "never scanned" is not mistaken for "nothing new".
func (sc *Scanner) IncrementalScan(ctx context.Context) int64 {
	var total int64
	for guildID, settings := range config.Current().Guilds {
		for _, forumID := range settings.ForumChannels {
			if ctx.Err() != nil {
				return total
			}

			fid, err := strconv.ParseInt(forumID, 10, 64)
			if err != nil {
				utils.Warn("Scanner", "IncrementalScan", fmt.Sprintf("invalid forum id %q: %v", forumID, err))
				continue
			}

			watermark, seeded, err := sc.Index.MaxThreadID(fid)
			if err != nil {
				utils.Error("Scanner", "IncrementalScan", fmt.Sprintf("watermark for forum %s: %v", forumID, err))
				continue
			}
			if !seeded {
				utils.Info("Scanner", "IncrementalScan", fmt.Sprintf("forum %s is unseeded, waiting for a full scan", forumID))
				continue
			}

			added, err := sc.scanForum(guildID, forumID, watermark)
			if err != nil {
				utils.Warn("Scanner", "IncrementalScan", fmt.Sprintf("forum %s: %v", forumID, err))
				continue
			}
			total += added
		}
	}
	if total > 0 {
		utils.Info("Scanner", "IncrementalScan", fmt.Sprintf("added %d new threads", total))
	}
	return total
}

// scanForum fetches the forum's active and archived listings, deduplicates
// across the two (a thread can appear in both), filters by watermark and
// upserts the remainder. watermark 0 means "take everything".
func (sc *Scanner) scanForum(guildID, forumID string, watermark int64) (int64, error) {
	threads, err := sc.collectThreads(guildID, forumID)
	if err != nil {
		return 0, err
	}

	gid, err := strconv.ParseInt(guildID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid guild id %q: %w", guildID, err)
	}
	fid, err := strconv.ParseInt(forumID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid forum id %q: %w", forumID, err)
	}

	var records []models.ThreadRecord
	for _, t := range threads {
		// Snowflakes are approximately time-ordered, so the numeric id
		// comparison stands in for "created after the last scan".
		tid, err := strconv.ParseInt(t.ID, 10, 64)
		if err != nil {
			utils.Warn("Scanner", "scanForum", fmt.Sprintf("unparseable thread id %q in forum %s", t.ID, forumID))
			continue
		}
		if tid <= watermark {
			continue
		}
		records = append(records, models.ThreadRecord{ThreadID: tid, ForumID: fid, GuildID: gid})
	}

	added, err := sc.Index.UpsertMany(records)
	if err != nil {
		return 0, fmt.Errorf("upsert %d threads: %w", len(records), err)
	}
	return added, nil
}

// collectThreads unions the active and archived listings of one forum,
// deduplicated by thread id.
func (sc *Scanner) collectThreads(guildID, forumID string) ([]*discordgo.Channel, error) {
	seen := make(map[string]bool)
	var threads []*discordgo.Channel

	// 1. Active threads are only listed per guild; filter by parent.
	active, err := sc.Session.GuildThreadsActive(guildID)
	if err != nil {
		return nil, fmt.Errorf("list active threads: %w", err)
	}
	for _, t := range active.Threads {
		if t.ParentID != forumID || seen[t.ID] {
			continue
		}
		seen[t.ID] = true
		threads = append(threads, t)
	}

	// 2. Archived threads paginate on the archive timestamp.
	var before *time.Time
	for {
		archived, err := sc.Session.ThreadsArchived(forumID, before, 100)
		if err != nil {
			return nil, fmt.Errorf("list archived threads: %w", err)
		}
		if len(archived.Threads) == 0 {
			break
		}

		moved := false
		for _, t := range archived.Threads {
			if !seen[t.ID] {
				seen[t.ID] = true
				threads = append(threads, t)
			}
			if t.ThreadMetadata != nil {
				ts := t.ThreadMetadata.ArchiveTimestamp
				before = &ts
				moved = true
			}
		}

		// A page with no archive timestamps cannot advance the cursor;
		// stop instead of refetching the same page forever.
		if !archived.HasMore || !moved {
			break
		}
	}

	return threads, nil
}
