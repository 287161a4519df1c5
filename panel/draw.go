package panel

import (
	"errors"
	"fmt"
	"math/rand"
	"strconv"

	"github.com/Echoer009/Odysseia-Gacha/config"
	"github.com/Echoer009/Odysseia-Gacha/delivery"
	"github.com/Echoer009/Odysseia-Gacha/utils"

	"github.com/bwmarrin/discordgo"
)

// ErrNoPools means there is nothing to draw from: the guild has no monitored
// forums and the user's preference names none either.
var ErrNoPools = errors.New("no draw pools configured")

// ErrEmptyPool means the selected pools exist but hold no indexed threads.
var ErrEmptyPool = errors.New("draw pool is empty")

// errNotAThread marks an indexed id that resolved to a non-thread channel;
// such records are repaired out of the pool like a 404.
var errNotAThread = errors.New("indexed id is not a thread")

// ThreadFetcher is the slice of the Discord session a draw needs.
type ThreadFetcher interface {
	Channel(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelMessage(channelID, messageID string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Index is the thread store surface a draw reads: the pool, the user's pool
// preference, and the repair hook for threads that turn out to be
// permanently gone.
type Index interface {
	ThreadIDs(guildID int64, forumIDs []int64) ([]int64, error)
	UserPools(userID, guildID int64) ([]int64, error)
	Delete(threadID int64) error
}

// Draw samples up to count random indexed threads from the user's selected
// pools (falling back to all of the guild's monitored forums) and renders
// them as embeds. Threads that no longer exist (404) or are no longer
// visible (403) are removed from the index and skipped, so the pool
// self-heals as it is played.
func Draw(session ThreadFetcher, index Index, guildID, userID string, count int) ([]*discordgo.MessageEmbed, error) {
	gid, err := strconv.ParseInt(guildID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid guild id %q: %w", guildID, err)
	}
	uid, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid user id %q: %w", userID, err)
	}

	forumIDs, err := index.UserPools(uid, gid)
	if err != nil {
		return nil, fmt.Errorf("load pool preference: %w", err)
	}
	if len(forumIDs) == 0 {
		// No preference (or the default pool): every monitored forum.
		settings, _ := config.Current().Guild(guildID)
		for _, f := range settings.ForumChannels {
			fid, err := strconv.ParseInt(f, 10, 64)
			if err != nil {
				continue
			}
			forumIDs = append(forumIDs, fid)
		}
	}
	if len(forumIDs) == 0 {
		return nil, ErrNoPools
	}

	pool, err := index.ThreadIDs(gid, forumIDs)
	if err != nil {
		return nil, fmt.Errorf("load draw pool: %w", err)
	}
	if len(pool) == 0 {
		return nil, ErrEmptyPool
	}

	if count > len(pool) {
		count = len(pool)
	}
	perm := rand.Perm(len(pool))

	var embeds []*discordgo.MessageEmbed
	for _, idx := range perm[:count] {
		threadID := pool[idx]
		embed, err := drawOne(session, strconv.FormatInt(threadID, 10), count, len(embeds)+1)
		if err != nil {
			if utils.IsNotFound(err) || utils.IsForbidden(err) || errors.Is(err, errNotAThread) {
				// Permanently inaccessible: repair the index.
				if derr := index.Delete(threadID); derr != nil {
					utils.Error("Panel", "Draw", fmt.Sprintf("repairing thread %d: %v", threadID, derr))
				} else {
					utils.Info("Panel", "Draw", fmt.Sprintf("removed vanished thread %d from the pool", threadID))
				}
				continue
			}
			utils.Warn("Panel", "Draw", fmt.Sprintf("thread %d: %v", threadID, err))
			continue
		}
		embeds = append(embeds, embed)
	}
	return embeds, nil
}

func drawOne(session ThreadFetcher, threadID string, total, position int) (*discordgo.MessageEmbed, error) {
	thread, err := session.Channel(threadID)
	if err != nil {
		return nil, err
	}
	if !thread.IsThread() {
		return nil, errNotAThread
	}

	// The starter message shares the thread id; tolerate it being gone.
	starter, err := session.ChannelMessage(thread.ID, thread.ID)
	if err != nil {
		if utils.IsForbidden(err) {
			return nil, err
		}
		starter = nil
	}

	var tagNames []string
	var forumName string
	if forum, err := session.Channel(thread.ParentID); err == nil {
		forumName = forum.Name
		tagNames = delivery.ResolveTagNames(forum, thread.AppliedTags)
	} else if len(thread.AppliedTags) > 0 {
		tagNames = delivery.ResolveTagNames(nil, thread.AppliedTags)
	}

	title := "✨ 你的天选之帖"
	if total > 1 {
		title = fmt.Sprintf("✨ (%d/%d)", position, total)
	}

	embed := delivery.BuildEmbed(thread, starter, tagNames, title)
	if forumName != "" {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: "来自论坛: " + forumName}
	}
	return embed, nil
}
