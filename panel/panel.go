package panel

import (
	"context"
	"fmt"
	"sync"

	"github.com/Echoer009/Odysseia-Gacha/utils"

	"github.com/bwmarrin/discordgo"
)

// MarkerTitle structurally identifies a panel message in channel history.
// The stored message reference is the primary identity; the marker scan is
// the self-healing fallback for references lost across restarts.
const MarkerTitle = "🎉 类脑抽抽乐 🎉"

// Component custom ids, referenced by the interaction dispatcher.
const (
	DrawOneID    = "draw_one_button"
	DrawFiveID   = "draw_five_button"
	SettingsID   = "settings_button"
	PoolSelectID = "pool_select_db"
)

const historyWindow = 100

// ChannelAPI is the slice of the Discord session the manager needs.
// *discordgo.Session satisfies it.
type ChannelAPI interface {
	ChannelMessages(channelID string, limit int, beforeID, afterID, aroundID string, options ...discordgo.RequestOption) ([]*discordgo.Message, error)
	ChannelMessageDelete(channelID, messageID string, options ...discordgo.RequestOption) error
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Manager keeps at most one live panel message per channel. Rebuild is
// re-entrant and idempotent: zero existing panels means it just posts one,
// and a stale reference to an already-deleted panel is not an error.
type Manager struct {
	Session   ChannelAPI
	BotUserID string

	mu    sync.Mutex
	known map[string]string // channelID -> last posted panel message id
}

// NewManager creates a panel manager for the given bot user.
func NewManager(session ChannelAPI, botUserID string) *Manager {
	return &Manager{
		Session:   session,
		BotUserID: botUserID,
		known:     make(map[string]string),
	}
}

// Rebuild removes every existing panel in the channel and posts a fresh
// one, so the panel stays the newest message after a delivery burst.
func (m *Manager) Rebuild(ctx context.Context, channelID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Stored reference first.
	if msgID, ok := m.known[channelID]; ok {
		if err := m.deleteTolerant(channelID, msgID); err != nil {
			return err
		}
		delete(m.known, channelID)
	}

	// Fallback: sweep the recent window for marker-titled panels that the
	// stored reference missed (restart, race with a concurrent rebuild).
	messages, err := m.Session.ChannelMessages(channelID, historyWindow, "", "", "")
	if err != nil {
		return fmt.Errorf("scan channel %s history: %w", channelID, err)
	}
	for _, msg := range messages {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !m.isPanel(msg) {
			continue
		}
		if err := m.deleteTolerant(channelID, msg.ID); err != nil {
			return err
		}
	}

	posted, err := m.Session.ChannelMessageSendComplex(channelID, panelMessage())
	if err != nil {
		return fmt.Errorf("post panel to channel %s: %w", channelID, err)
	}
	if posted != nil {
		m.known[channelID] = posted.ID
	}
	utils.Info("Panel", "Rebuild", fmt.Sprintf("panel refreshed in channel %s", channelID))
	return nil
}

// deleteTolerant deletes a message, treating "already gone" as success.
func (m *Manager) deleteTolerant(channelID, messageID string) error {
	err := m.Session.ChannelMessageDelete(channelID, messageID)
	if err == nil || utils.IsNotFound(err) {
		return nil
	}
	return fmt.Errorf("delete panel message %s: %w", messageID, err)
}

func (m *Manager) isPanel(msg *discordgo.Message) bool {
	if msg.Author == nil || msg.Author.ID != m.BotUserID {
		return false
	}
	for _, embed := range msg.Embeds {
		if embed.Title == MarkerTitle {
			return true
		}
	}
	return false
}

func panelMessage() *discordgo.MessageSend {
	embed := &discordgo.MessageEmbed{
		Title: MarkerTitle,
		Description: "欢迎来到类脑抽卡机！准备好迎接命运的安排了吗？!\n\n" +
			"**玩法介绍:**\n" +
			"- **抽一张 ✨**: 试试手气，看看今天的天选之卡是什么！\n" +
			"- **抽五张 🎇**: 大力出奇迹！一次性抽取五张，总有一张您喜欢！\n" +
			"- **设置卡池 🔧**: 定制您的专属卡池，只抽你最感兴趣的内容！\n",
		Color: 0xf1c40f, // gold
	}

	return &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{embed},
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{
				Components: []discordgo.MessageComponent{
					discordgo.Button{
						Label:    "抽一张",
						Style:    discordgo.PrimaryButton,
						CustomID: DrawOneID,
						Emoji:    &discordgo.ComponentEmoji{Name: "✨"},
					},
					discordgo.Button{
						Label:    "抽五张",
						Style:    discordgo.SuccessButton,
						CustomID: DrawFiveID,
						Emoji:    &discordgo.ComponentEmoji{Name: "🎇"},
					},
					discordgo.Button{
						Label:    "设置卡池",
						Style:    discordgo.SecondaryButton,
						CustomID: SettingsID,
						Emoji:    &discordgo.ComponentEmoji{Name: "🔧"},
					},
				},
			},
		},
	}
}
