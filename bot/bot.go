package bot

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/Echoer009/Odysseia-Gacha/config"
	"github.com/Echoer009/Odysseia-Gacha/database"
	"github.com/Echoer009/Odysseia-Gacha/delivery"
	"github.com/Echoer009/Odysseia-Gacha/panel"
	"github.com/Echoer009/Odysseia-Gacha/scanner"
	"github.com/Echoer009/Odysseia-Gacha/sweeper"
	"github.com/Echoer009/Odysseia-Gacha/utils"

	"github.com/bwmarrin/discordgo"
	"github.com/spf13/viper"
)

// Command defines the interface for a slash command.
type Command interface {
	Definition() *discordgo.ApplicationCommand
}

// Bot encapsulates the bot's state and its background components.
type Bot struct {
	Session  *discordgo.Session
	Store    *database.Store
	Tasks    *TaskSet
	Commands map[string]Command

	Scanner  *scanner.Scanner
	Pipeline *delivery.Pipeline
	Panels   *panel.Manager
	Sweeper  *sweeper.Sweeper
}

// NewBot creates and initializes a new Bot instance.
func NewBot() (*Bot, error) {
	config.LoadConfig()
	if err := config.Refresh(); err != nil {
		return nil, fmt.Errorf("error loading guild settings: %w", err)
	}

	token := viper.GetString("BOT_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("no bot token provided")
	}

	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("error creating Discord session: %w", err)
	}

	dg.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages | discordgo.IntentMessageContent

	store, err := database.Open(viper.GetString("database.path"))
	if err != nil {
		return nil, fmt.Errorf("error opening thread index: %w", err)
	}

	return &Bot{
		Session:  dg,
		Store:    store,
		Tasks:    NewTaskSet(),
		Commands: make(map[string]Command),
	}, nil
}

// RegisterCommands registers the provided commands.
func (b *Bot) RegisterCommands(commands []Command) {
	for _, cmd := range commands {
		b.Commands[cmd.Definition().Name] = cmd
	}
}

// Start opens the bot's session, wires the background components and
// registers slash commands.
func (b *Bot) Start(registerHandlers func(*Bot)) error {
	registerHandlers(b)

	if err := b.Session.Open(); err != nil {
		return fmt.Errorf("error opening connection: %w", err)
	}

	utils.InitLogger(b.Session)

	botID := b.Session.State.User.ID
	b.Scanner = scanner.New(b.Session, b.Store)
	b.Panels = panel.NewManager(b.Session, botID)
	b.Sweeper = &sweeper.Sweeper{
		Session:   b.Session,
		BotUserID: botID,
		Horizon:   viper.GetDuration("sweep.horizon"),
		Pause:     viper.GetDuration("sweep.pause"),
	}
	b.Pipeline = &delivery.Pipeline{
		Session: b.Session,
		Config: delivery.Config{
			InitialDelay: viper.GetDuration("delivery.initial_delay"),
			RetryDelay:   viper.GetDuration("delivery.retry_delay"),
			MaxAttempts:  viper.GetInt("delivery.max_attempts"),
			PanelDelay:   viper.GetDuration("delivery.panel_delay"),
		},
		OnDelivered: func(ctx context.Context, channelID string) {
			if err := b.Panels.Rebuild(ctx, channelID); err != nil {
				log.Printf("Panel rebuild after delivery failed: %v", err)
			}
		},
	}

	// Register slash commands
	for _, cmd := range b.Commands {
		if _, err := b.Session.ApplicationCommandCreate(botID, "", cmd.Definition()); err != nil {
			log.Printf("Cannot create '%v' command: %v", cmd.Definition().Name, err)
		}
	}

	startScheduler(b)

	fmt.Println("Bot is now running. Press CTRL-C to exit.")
	return nil
}

// Stop gracefully shuts the bot down: scheduler first, then the in-flight
// pipelines, then the session and the store.
func (b *Bot) Stop() {
	stopScheduler()
	b.Tasks.Stop()
	if b.Session != nil {
		b.Session.Close()
	}
	if b.Store != nil {
		b.Store.Close()
	}
	fmt.Println("Bot stopped gracefully.")
}

// Run is the main entry point for the bot application.
func Run(registerHandlers func(*Bot), commands []Command) {
	bot, err := NewBot()
	if err != nil {
		log.Fatalf("Error initializing bot: %v", err)
	}

	bot.RegisterCommands(commands)

	if err := bot.Start(registerHandlers); err != nil {
		log.Fatalf("Error starting bot: %v", err)
	}

	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	<-sc

	bot.Stop()
}
