package delivery

import (
	"context"
	"fmt"
	"time"

	"github.com/Echoer009/Odysseia-Gacha/config"
	"github.com/Echoer009/Odysseia-Gacha/utils"

	"github.com/bwmarrin/discordgo"
)

// Messenger is the slice of the Discord session the pipeline needs.
// *discordgo.Session satisfies it.
type Messenger interface {
	Channel(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelMessage(channelID, messageID string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Config bounds the retry behaviour of a delivery.
type Config struct {
	// InitialDelay absorbs the propagation lag between "thread created"
	// and the starter message becoming readable.
	InitialDelay time.Duration
	// RetryDelay spaces failed attempts.
	RetryDelay time.Duration
	// MaxAttempts bounds the attempt loop.
	MaxAttempts int
	// PanelDelay spaces the panel rebuild from the notification send.
	PanelDelay time.Duration
}

// Pipeline delivers a newly created thread to its guild's delivery channel
// with bounded retries. One Pipeline instance serves all threads; each Run
// is an independent background task with no shared mutable state.
type Pipeline struct {
	Session Messenger
	Config  Config

	// OnDelivered is invoked after a successful send (panel rebuild).
	// Optional.
	OnDelivered func(ctx context.Context, channelID string)
}

// Run executes the delivery state machine for one thread. It blocks for the
// whole retry schedule, so callers spawn it as a background task. The index
// upsert has already happened in the event handler; an ineligible thread
// terminates here with no further side effects.
func (p *Pipeline) Run(ctx context.Context, thread *discordgo.Channel) {
	settings, ok := config.Current().Guild(thread.GuildID)
	if !ok || !settings.Monitors(thread.ParentID) {
		return
	}
	// Exclusion wins over monitoring: the thread stays indexed but is
	// never announced.
	if settings.Excludes(thread.ParentID) {
		return
	}
	if settings.DeliveryChannel == "" {
		return
	}

	if !sleep(ctx, p.Config.InitialDelay) {
		return
	}

	for attempt := 1; attempt <= p.Config.MaxAttempts; attempt++ {
		delivered, fatal := p.attempt(thread, settings.DeliveryChannel, attempt)
		if delivered {
			if p.OnDelivered != nil {
				if !sleep(ctx, p.Config.PanelDelay) {
					return
				}
				p.OnDelivered(ctx, settings.DeliveryChannel)
			}
			return
		}
		if fatal {
			return
		}
		if attempt < p.Config.MaxAttempts && !sleep(ctx, p.Config.RetryDelay) {
			return
		}
	}

	utils.Error("Delivery", "Exhausted",
		fmt.Sprintf("giving up on thread %s (forum %s) after %d attempts", thread.ID, thread.ParentID, p.Config.MaxAttempts))
}

// attempt runs one Fetch → Build → Send → Verify cycle. It returns
// delivered=true on a verified send, and fatal=true when retrying cannot
// help (permission denial).
func (p *Pipeline) attempt(thread *discordgo.Channel, channelID string, attempt int) (delivered, fatal bool) {
	// Fetch. The starter message shares the thread's id. A 404 just means
	// the content has not propagated yet; deliver without the preview.
	starter, err := p.Session.ChannelMessage(thread.ID, thread.ID)
	if err != nil {
		switch {
		case utils.IsForbidden(err):
			utils.Warn("Delivery", "Fetch",
				fmt.Sprintf("forbidden reading thread %s, aborting (attempt %d)", thread.ID, attempt))
			return false, true
		case utils.IsNotFound(err):
			starter = nil
		default:
			utils.Warn("Delivery", "Fetch",
				fmt.Sprintf("thread %s attempt %d: %v", thread.ID, attempt, err))
			return false, false
		}
	}

	// Build. Always from scratch: tag names and attachments may have
	// arrived since the previous attempt.
	var tagNames []string
	if len(thread.AppliedTags) > 0 {
		forum, err := p.Session.Channel(thread.ParentID)
		if err != nil {
			forum = nil // tags degrade to raw ids
		}
		tagNames = ResolveTagNames(forum, thread.AppliedTags)
	}
	embed := BuildEmbed(thread, starter, tagNames, MarkerTitle)

	// Send.
	msg, err := p.Session.ChannelMessageSendEmbed(channelID, embed)
	if err != nil {
		if utils.IsForbidden(err) {
			utils.Warn("Delivery", "Send",
				fmt.Sprintf("forbidden sending to channel %s, aborting (thread %s, attempt %d)", channelID, thread.ID, attempt))
			return false, true
		}
		utils.Warn("Delivery", "Send",
			fmt.Sprintf("thread %s attempt %d: %v", thread.ID, attempt, err))
		return false, false
	}

	// Verify. An empty echo means the platform did not actually accept the
	// message; treat it like a transient send failure.
	if msg == nil || len(msg.Embeds) == 0 {
		utils.Warn("Delivery", "Verify",
			fmt.Sprintf("empty send echo for thread %s (attempt %d)", thread.ID, attempt))
		return false, false
	}

	utils.Info("Delivery", "Sent",
		fmt.Sprintf("thread %s delivered to channel %s (attempt %d)", thread.ID, channelID, attempt))
	return true, false
}

// sleep waits for d unless the context is cancelled first. Returns false on
// cancellation.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
