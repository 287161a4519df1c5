package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// guildViper holds the per-guild monitoring settings (guilds_file). It is a
// separate instance so watching and re-reading that file cannot replace the
// merged base configuration: a viper instance re-reads only its own config
// file on change, and the guilds file is rewritten by every admin command.
var guildViper *viper.Viper

// LoadConfig loads configuration from multiple sources:
// 1. .env file (environment variables, chiefly BOT_TOKEN)
// 2. config.yaml (base configuration)
// 3. config/guilds.json (per-guild monitoring settings, own viper instance)
// Environment variables override file settings with the same key.
func LoadConfig() {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found, skipping.")
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Printf("Base config file (config.yaml) not found, using environment variables and defaults.")
		} else {
			panic(fmt.Errorf("fatal error reading base config file: %w", err))
		}
	} else {
		// Pick up external edits to the base config without a restart. Auth
		// and logger settings are read live, so no snapshot refresh here.
		viper.OnConfigChange(func(e fsnotify.Event) {
			log.Printf("Base config file changed (%s), reloaded", e.Name)
		})
		viper.WatchConfig()
	}

	// The guild settings file is rewritten by the admin commands, so a
	// missing file just means "not configured yet".
	guildViper = viper.New()
	guildViper.SetConfigFile(viper.GetString("guilds_file"))
	guildViper.SetConfigType("json")
	if err := guildViper.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			log.Printf("Guild settings file (%s) not found, skipping.", viper.GetString("guilds_file"))
		} else {
			panic(fmt.Errorf("fatal error reading guild settings file: %w", err))
		}
	}
	guildViper.OnConfigChange(func(e fsnotify.Event) {
		log.Printf("Guild settings file changed (%s), refreshing settings snapshot", e.Name)
		if err := Refresh(); err != nil {
			log.Printf("Could not refresh settings snapshot: %v", err)
		}
	})
	guildViper.WatchConfig()
}

func setDefaults() {
	viper.SetDefault("database.path", "data/threads.db")
	viper.SetDefault("guilds_file", "config/guilds.json")

	viper.SetDefault("scan.interval", 2*time.Hour)

	viper.SetDefault("delivery.initial_delay", 15*time.Second)
	viper.SetDefault("delivery.retry_delay", 60*time.Second)
	viper.SetDefault("delivery.max_attempts", 5)
	viper.SetDefault("delivery.panel_delay", 2*time.Second)

	viper.SetDefault("sweep.horizon", 24*time.Hour)
	viper.SetDefault("sweep.pause", time.Second)
}

// ScanInterval returns the incremental scan interval.
func ScanInterval() time.Duration {
	return viper.GetDuration("scan.interval")
}
