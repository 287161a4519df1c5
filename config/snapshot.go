package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/Echoer009/Odysseia-Gacha/models"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Snapshot is an immutable view of the per-guild monitoring settings.
// Components read it freely; it is replaced wholesale on every mutation, so
// a reader never observes a half-updated settings map.
type Snapshot struct {
	Guilds map[string]models.GuildSettings
}

// Guild returns the settings for a guild, if any are configured.
func (s *Snapshot) Guild(guildID string) (models.GuildSettings, bool) {
	if s == nil {
		return models.GuildSettings{}, false
	}
	gs, ok := s.Guilds[guildID]
	return gs, ok
}

var (
	current  atomic.Pointer[Snapshot]
	updateMu sync.Mutex
)

func init() {
	current.Store(&Snapshot{Guilds: map[string]models.GuildSettings{}})
}

// Current returns the active settings snapshot. Never nil.
func Current() *Snapshot {
	return current.Load()
}

// guildSource is the viper instance the snapshot is decoded from: the
// dedicated guilds-file instance once LoadConfig has run, the global one
// before that (tests seed it directly).
func guildSource() *viper.Viper {
	if guildViper != nil {
		return guildViper
	}
	return viper.GetViper()
}

// Refresh rebuilds the snapshot from whatever the guild settings source
// currently holds under the "guilds" key. On a decode failure the previous
// snapshot stays in place.
func Refresh() error {
	raw := guildSource().GetStringMap("guilds")
	guilds := make(map[string]models.GuildSettings, len(raw))
	for guildID, value := range raw {
		var gs models.GuildSettings
		if err := mapstructure.Decode(value, &gs); err != nil {
			return fmt.Errorf("decode settings for guild %s: %w", guildID, err)
		}
		guilds[guildID] = gs
	}
	current.Store(&Snapshot{Guilds: guilds})
	return nil
}

// Update applies mutate to a copy of the current guild settings, persists
// the result to the guilds file, and swaps the snapshot. Mutations are
// serialized; readers keep seeing the old snapshot until the write lands.
func Update(mutate func(guilds map[string]models.GuildSettings)) error {
	updateMu.Lock()
	defer updateMu.Unlock()

	old := Current()
	guilds := make(map[string]models.GuildSettings, len(old.Guilds))
	for id, gs := range old.Guilds {
		guilds[id] = gs
	}
	mutate(guilds)

	if err := persist(guilds); err != nil {
		return err
	}
	current.Store(&Snapshot{Guilds: guilds})
	return nil
}

func persist(guilds map[string]models.GuildSettings) error {
	path := viper.GetString("guilds_file")
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create settings directory: %w", err)
	}

	data, err := json.MarshalIndent(map[string]any{"guilds": guilds}, "", "    ")
	if err != nil {
		return fmt.Errorf("marshal guild settings: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write guild settings file: %w", err)
	}
	return nil
}
