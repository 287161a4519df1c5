package bot

import (
	"fmt"
	"log"

	"github.com/Echoer009/Odysseia-Gacha/config"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

var c *cron.Cron

// startScheduler starts the cron jobs: the incremental forum scan on the
// configured interval and the hourly retention sweep.
func startScheduler(b *Bot) {
	log.Println("Initializing scheduler...")
	c = cron.New()

	scanSpec := fmt.Sprintf("@every %s", config.ScanInterval())
	_, err := c.AddFunc(scanSpec, func() {
		log.Println("Running incremental scan...")
		b.Scanner.IncrementalScan(b.Tasks.Context())
	})
	if err != nil {
		log.Fatalf("Could not set up incremental scan job: %v", err)
	}

	_, err = c.AddFunc("@hourly", func() {
		for guildID, settings := range config.Current().Guilds {
			if settings.DeliveryChannel == "" {
				continue
			}
			deleted, err := b.Sweeper.Sweep(b.Tasks.Context(), settings.DeliveryChannel)
			if err != nil {
				log.Printf("Sweep of guild %s delivery channel failed: %v", guildID, err)
				continue
			}
			if deleted > 0 {
				log.Printf("Sweep removed %d stale notifications from guild %s", deleted, guildID)
			}
		}
	})
	if err != nil {
		log.Fatalf("Could not set up retention sweep job: %v", err)
	}

	c.Start()
	log.Printf("Scheduler started (scan %s, sweep @hourly).", scanSpec)

	// Perform an initial incremental pass on startup based on config.
	if viper.GetBool("bot.ScanAtStartup") {
		go func() {
			log.Println("Performing initial incremental scan on startup...")
			b.Scanner.IncrementalScan(b.Tasks.Context())
		}()
	}
}

// stopScheduler stops the cron jobs.
func stopScheduler() {
	if c != nil {
		c.Stop()
		log.Println("Scheduler stopped.")
	}
}
