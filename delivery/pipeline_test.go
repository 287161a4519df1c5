package delivery

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Echoer009/Odysseia-Gacha/config"

	"github.com/bwmarrin/discordgo"
	"github.com/spf13/viper"
)

type mockMessenger struct {
	mu sync.Mutex

	forum    *discordgo.Channel
	starter  *discordgo.Message
	fetchErr error

	sendErr    error
	failSends  int // fail this many sends before succeeding
	emptyEchos int // return empty echoes for this many sends

	fetchCalls int
	sendCalls  int
	sent       []*discordgo.MessageEmbed
}

func (m *mockMessenger) Channel(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error) {
	if m.forum != nil {
		return m.forum, nil
	}
	return &discordgo.Channel{ID: channelID}, nil
}

func (m *mockMessenger) ChannelMessage(channelID, messageID string, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetchCalls++
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	return m.starter, nil
}

func (m *mockMessenger) ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendCalls++
	m.sent = append(m.sent, embed)
	if m.sendErr != nil {
		return nil, m.sendErr
	}
	if m.failSends > 0 {
		m.failSends--
		return nil, &discordgo.RESTError{Response: &http.Response{StatusCode: http.StatusInternalServerError}}
	}
	if m.emptyEchos > 0 {
		m.emptyEchos--
		return &discordgo.Message{}, nil
	}
	return &discordgo.Message{Embeds: []*discordgo.MessageEmbed{embed}}, nil
}

func restError(status int) error {
	return &discordgo.RESTError{Response: &http.Response{StatusCode: status}}
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

func fastConfig(attempts int) Config {
	return Config{
		InitialDelay: time.Millisecond,
		RetryDelay:   time.Millisecond,
		MaxAttempts:  attempts,
		PanelDelay:   time.Millisecond,
	}
}

func testThread() *discordgo.Channel {
	return &discordgo.Channel{
		ID:       "111",
		ParentID: "10",
		GuildID:  "1",
		Name:     "测试帖",
		Type:     discordgo.ChannelTypeGuildPublicThread,
	}
}

func monitoredGuild(t *testing.T) {
	setGuilds(t, map[string]any{
		"1": map[string]any{
			"forum_channels":   []string{"10"},
			"delivery_channel": "555",
		},
	})
}

func TestPipelineRetryBoundAndFreshArtifacts(t *testing.T) {
	monitoredGuild(t)

	session := &mockMessenger{sendErr: restError(http.StatusInternalServerError)}
	p := &Pipeline{Session: session, Config: fastConfig(5)}

	p.Run(context.Background(), testThread())

	if session.sendCalls != 5 {
		t.Fatalf("expected exactly 5 send attempts, got %d", session.sendCalls)
	}
	// The artifact is rebuilt per attempt, so the fetch runs every time too.
	if session.fetchCalls != 5 {
		t.Fatalf("expected 5 fetches (one per attempt), got %d", session.fetchCalls)
	}
}

func TestPipelineForbiddenFetchShortCircuits(t *testing.T) {
	monitoredGuild(t)

	session := &mockMessenger{fetchErr: restError(http.StatusForbidden)}
	p := &Pipeline{Session: session, Config: fastConfig(5)}

	p.Run(context.Background(), testThread())

	if session.fetchCalls != 1 {
		t.Fatalf("expected a single fetch before aborting, got %d", session.fetchCalls)
	}
	if session.sendCalls != 0 {
		t.Fatalf("expected no sends after forbidden fetch, got %d", session.sendCalls)
	}
}

func TestPipelineForbiddenSendShortCircuits(t *testing.T) {
	monitoredGuild(t)

	session := &mockMessenger{sendErr: restError(http.StatusForbidden)}
	p := &Pipeline{Session: session, Config: fastConfig(5)}

	p.Run(context.Background(), testThread())

	if session.sendCalls != 1 {
		t.Fatalf("expected a single send before aborting, got %d", session.sendCalls)
	}
}

func TestPipelineEmptyEchoIsRetried(t *testing.T) {
	monitoredGuild(t)

	delivered := make(chan string, 1)
	session := &mockMessenger{emptyEchos: 1}
	p := &Pipeline{
		Session: session,
		Config:  fastConfig(5),
		OnDelivered: func(ctx context.Context, channelID string) {
			delivered <- channelID
		},
	}

	p.Run(context.Background(), testThread())

	if session.sendCalls != 2 {
		t.Fatalf("expected the empty echo to cost one extra attempt, got %d sends", session.sendCalls)
	}
	select {
	case ch := <-delivered:
		if ch != "555" {
			t.Fatalf("panel rebuild scheduled for wrong channel %s", ch)
		}
	default:
		t.Fatal("expected OnDelivered after the verified send")
	}
}

func TestPipelineRecoversAfterTransientSendFailures(t *testing.T) {
	monitoredGuild(t)

	delivered := make(chan string, 2)
	session := &mockMessenger{failSends: 2}
	p := &Pipeline{
		Session: session,
		Config:  fastConfig(5),
		OnDelivered: func(ctx context.Context, channelID string) {
			delivered <- channelID
		},
	}

	p.Run(context.Background(), testThread())

	// Two transient failures, then the verified send; no further attempts.
	if session.sendCalls != 3 {
		t.Fatalf("expected 3 sends (2 transient failures + 1 success), got %d", session.sendCalls)
	}
	if len(delivered) != 1 {
		t.Fatalf("expected exactly one panel rebuild, got %d", len(delivered))
	}
	if ch := <-delivered; ch != "555" {
		t.Fatalf("panel rebuild scheduled for wrong channel %s", ch)
	}
}

func TestPipelineNotFoundStarterDeliversWithoutPreview(t *testing.T) {
	monitoredGuild(t)

	session := &mockMessenger{fetchErr: restError(http.StatusNotFound)}
	p := &Pipeline{Session: session, Config: fastConfig(3)}

	p.Run(context.Background(), testThread())

	if session.sendCalls != 1 {
		t.Fatalf("expected delivery despite missing starter, got %d sends", session.sendCalls)
	}
	embed := session.sent[0]
	if strings.Contains(embed.Description, "内容速览") {
		t.Fatalf("expected no body preview without a starter message, got %q", embed.Description)
	}
	if !strings.Contains(embed.Description, "测试帖") {
		t.Fatalf("expected thread title in description, got %q", embed.Description)
	}
}

func TestPipelineExclusionWinsOverMonitoring(t *testing.T) {
	setGuilds(t, map[string]any{
		"1": map[string]any{
			"forum_channels":   []string{"10"},
			"excluded_forums":  []string{"10"},
			"delivery_channel": "555",
		},
	})

	session := &mockMessenger{}
	p := &Pipeline{Session: session, Config: fastConfig(5)}

	p.Run(context.Background(), testThread())

	if session.fetchCalls != 0 || session.sendCalls != 0 {
		t.Fatalf("excluded forum must produce no platform calls, got %d fetches / %d sends",
			session.fetchCalls, session.sendCalls)
	}
}

func TestPipelineIgnoresUnmonitoredForum(t *testing.T) {
	setGuilds(t, map[string]any{
		"1": map[string]any{
			"forum_channels":   []string{"20"},
			"delivery_channel": "555",
		},
	})

	session := &mockMessenger{}
	p := &Pipeline{Session: session, Config: fastConfig(5)}

	p.Run(context.Background(), testThread())

	if session.fetchCalls != 0 || session.sendCalls != 0 {
		t.Fatal("thread from an unmonitored forum must not be delivered")
	}
}

func TestPipelineStopsOnCancelledContext(t *testing.T) {
	monitoredGuild(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	session := &mockMessenger{}
	p := &Pipeline{Session: session, Config: Config{
		InitialDelay: time.Hour, // would block without cancellation
		RetryDelay:   time.Hour,
		MaxAttempts:  5,
	}}

	done := make(chan struct{})
	go func() {
		p.Run(ctx, testThread())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("pipeline did not stop on cancelled context")
	}
	if session.sendCalls != 0 {
		t.Fatalf("expected no sends after cancellation, got %d", session.sendCalls)
	}
}

func TestBuildEmbedTruncatesPreview(t *testing.T) {
	long := strings.Repeat("很", 500)
	thread := testThread()
	starter := &discordgo.Message{
		Content: long,
		Author:  &discordgo.User{Username: "作者甲"},
	}

	embed := BuildEmbed(thread, starter, []string{"原创"}, MarkerTitle)

	if !strings.Contains(embed.Description, "...") {
		t.Fatal("expected truncated preview to end with ellipsis")
	}
	// 400 runes of preview plus the header and section labels.
	if n := len([]rune(embed.Description)); n > 500 {
		t.Fatalf("description too long: %d runes", n)
	}
	if embed.Title != MarkerTitle {
		t.Fatalf("unexpected title %q", embed.Title)
	}
	if len(embed.Fields) != 2 {
		t.Fatalf("expected jump link and tag fields, got %d", len(embed.Fields))
	}
}
