package models

// ThreadRecord is one indexed forum thread. IDs are Discord snowflakes
// stored numerically so MAX(thread_id) can serve as a scan watermark.
type ThreadRecord struct {
	ThreadID int64 `db:"thread_id"` // Unique
	ForumID  int64 `db:"forum_id"`
	GuildID  int64 `db:"guild_id"`
}

// GuildSettings holds the per-guild monitoring configuration from
// config/guilds.json. Readers always go through config.Current(); admin
// commands mutate through config.Update().
type GuildSettings struct {
	ForumChannels   []string `json:"forum_channels" mapstructure:"forum_channels"`
	DeliveryChannel string   `json:"delivery_channel" mapstructure:"delivery_channel"`
	ExcludedForums  []string `json:"excluded_forums" mapstructure:"excluded_forums"`
}

// Monitors reports whether forumID is in the monitored forum set.
func (g GuildSettings) Monitors(forumID string) bool {
	for _, id := range g.ForumChannels {
		if id == forumID {
			return true
		}
	}
	return false
}

// Excludes reports whether forumID is excluded from delivery. Excluded
// forums are still indexed.
func (g GuildSettings) Excludes(forumID string) bool {
	for _, id := range g.ExcludedForums {
		if id == forumID {
			return true
		}
	}
	return false
}
