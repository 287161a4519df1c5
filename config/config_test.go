package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Echoer009/Odysseia-Gacha/models"

	"github.com/spf13/viper"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// A change to the guilds file must refresh the settings snapshot without
// disturbing any key loaded from config.yaml. The guilds file is rewritten
// by every admin command, so losing base keys there would lock the admin
// roles and the operator log channel out until restart.
func TestGuildFileChangeKeepsBaseConfig(t *testing.T) {
	dir := t.TempDir()
	oldWd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir %s: %v", dir, err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(oldWd); err != nil {
			t.Fatalf("chdir back to %s: %v", oldWd, err)
		}
	})

	writeFile(t, filepath.Join(dir, "config.yaml"),
		"bot:\n"+
			"    adminChannelId: \"999\"\n"+
			"commands:\n"+
			"    auth:\n"+
			"        admins_roles:\n"+
			"            - \"42\"\n")
	writeFile(t, filepath.Join(dir, "config", "guilds.json"),
		`{"guilds": {"1": {"forum_channels": ["10"]}}}`)

	viper.Reset()
	t.Cleanup(func() {
		viper.Reset()
		guildViper = nil
		current.Store(&Snapshot{Guilds: map[string]models.GuildSettings{}})
	})

	LoadConfig()
	if err := Refresh(); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	if gs, ok := Current().Guild("1"); !ok || !gs.Monitors("10") {
		t.Fatalf("initial guild settings not loaded: %+v ok=%v", gs, ok)
	}
	if got := viper.GetStringSlice("commands.auth.admins_roles"); len(got) != 1 || got[0] != "42" {
		t.Fatalf("admin roles not loaded from config.yaml: %v", got)
	}

	// An admin command rewrites the guilds file; the watcher must pick the
	// change up without touching the base configuration.
	writeFile(t, filepath.Join(dir, "config", "guilds.json"),
		`{"guilds": {"1": {"forum_channels": ["10"], "delivery_channel": "555"}}}`)

	deadline := time.Now().Add(5 * time.Second)
	for {
		if gs, _ := Current().Guild("1"); gs.DeliveryChannel == "555" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("snapshot never picked up the guilds file change")
		}
		time.Sleep(10 * time.Millisecond)
	}

	if got := viper.GetStringSlice("commands.auth.admins_roles"); len(got) != 1 || got[0] != "42" {
		t.Fatalf("admin roles lost after guilds file change: %v", got)
	}
	if got := viper.GetString("bot.adminChannelId"); got != "999" {
		t.Fatalf("admin channel id lost after guilds file change: %q", got)
	}
}
