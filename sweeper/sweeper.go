package sweeper

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/Echoer009/Odysseia-Gacha/delivery"
	"github.com/Echoer009/Odysseia-Gacha/utils"

	"github.com/bwmarrin/discordgo"
)

const pageSize = 100

// HistoryAPI is the slice of the Discord session the sweeper needs.
// *discordgo.Session satisfies it.
type HistoryAPI interface {
	ChannelMessages(channelID string, limit int, beforeID, afterID, aroundID string, options ...discordgo.RequestOption) ([]*discordgo.Message, error)
	ChannelMessageDelete(channelID, messageID string, options ...discordgo.RequestOption) error
}

// Sweeper removes stale notification artifacts from a delivery channel so
// old announcements do not pile up under the panel.
type Sweeper struct {
	Session   HistoryAPI
	BotUserID string

	// Horizon is the retention window; messages older than it are
	// candidates for deletion.
	Horizon time.Duration
	// Pause is inserted between deletions to stay under the rate limit.
	Pause time.Duration
}

// Sweep walks the channel's history oldest-first and deletes every
// bot-authored message older than the horizon that is either a delivery
// notification or an empty orphaned send. It stops at the first message
// inside the horizon; message ids are snowflakes, so id order is time
// order. A permission failure aborts the sweep until the next run.
func (sw *Sweeper) Sweep(ctx context.Context, channelID string) (int, error) {
	cutoff := time.Now().Add(-sw.Horizon)
	deleted := 0
	afterID := "0"

	for {
		if ctx.Err() != nil {
			return deleted, ctx.Err()
		}

		page, err := sw.Session.ChannelMessages(channelID, pageSize, "", afterID, "")
		if err != nil {
			if utils.IsForbidden(err) {
				utils.Warn("Sweeper", "Sweep", fmt.Sprintf("forbidden reading channel %s, aborting sweep", channelID))
				return deleted, err
			}
			return deleted, fmt.Errorf("read history of channel %s: %w", channelID, err)
		}
		if len(page) == 0 {
			return deleted, nil
		}

		// The API does not promise an order for "after" pagination; sort
		// ascending so the horizon early-exit stays safe.
		sort.Slice(page, func(i, j int) bool { return snowflakeLess(page[i].ID, page[j].ID) })

		for _, msg := range page {
			if ctx.Err() != nil {
				return deleted, ctx.Err()
			}

			created, err := discordgo.SnowflakeTimestamp(msg.ID)
			if err != nil {
				continue
			}
			if !created.Before(cutoff) {
				// Oldest-first: everything after this one is newer.
				return deleted, nil
			}
			if !sw.stale(msg) {
				continue
			}

			if err := sw.Session.ChannelMessageDelete(channelID, msg.ID); err != nil {
				if utils.IsForbidden(err) {
					utils.Warn("Sweeper", "Sweep", fmt.Sprintf("forbidden deleting in channel %s, aborting sweep", channelID))
					return deleted, err
				}
				if !utils.IsNotFound(err) {
					utils.Warn("Sweeper", "Sweep", fmt.Sprintf("delete message %s: %v", msg.ID, err))
				}
				continue
			}
			deleted++

			if sw.Pause > 0 {
				select {
				case <-time.After(sw.Pause):
				case <-ctx.Done():
					return deleted, ctx.Err()
				}
			}
		}

		afterID = page[len(page)-1].ID
		if len(page) < pageSize {
			return deleted, nil
		}
	}
}

// stale reports whether a message is one of ours and worth deleting: a
// delivery notification, or an orphaned empty send.
func (sw *Sweeper) stale(msg *discordgo.Message) bool {
	if msg.Author == nil || msg.Author.ID != sw.BotUserID {
		return false
	}
	for _, embed := range msg.Embeds {
		if embed.Title == delivery.MarkerTitle {
			return true
		}
	}
	return msg.Content == "" && len(msg.Attachments) == 0 && len(msg.Embeds) == 0
}

func snowflakeLess(a, b string) bool {
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}
