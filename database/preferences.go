package database

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	sq "github.com/Masterminds/squirrel"
)

// poolAll marks the default preference: draw from every monitored forum.
const poolAll = "all"

// ErrCorruptPreference reports that a stored pool preference could not be
// decoded. The user has to set it again through the panel.
var ErrCorruptPreference = errors.New("stored pool preference is corrupt")

// SetUserPools saves a user's draw pool preference for a guild. An empty
// forumIDs slice means "all pools". The preference survives the forums it
// names being removed from monitoring; drawing just finds nothing there.
func (s *Store) SetUserPools(userID, guildID int64, forumIDs []int64) error {
	pools := []string{poolAll}
	if len(forumIDs) > 0 {
		pools = make([]string, len(forumIDs))
		for i, id := range forumIDs {
			pools[i] = strconv.FormatInt(id, 10)
		}
	}
	data, err := json.Marshal(pools)
	if err != nil {
		return fmt.Errorf("marshal pool preference: %w", err)
	}

	_, err = sq.Insert("user_preferences").
		Options("OR REPLACE").
		Columns("user_id", "guild_id", "selected_pools").
		Values(userID, guildID, string(data)).
		RunWith(s.db).
		Exec()
	if err != nil {
		return fmt.Errorf("save pool preference for user %d: %w", userID, err)
	}
	return nil
}

// UserPools returns the forums a user's draws are restricted to. A nil
// slice means no restriction: either no preference is stored or the user
// picked the default pool.
func (s *Store) UserPools(userID, guildID int64) ([]int64, error) {
	var raw string
	err := sq.Select("selected_pools").
		From("user_preferences").
		Where(sq.Eq{"user_id": userID, "guild_id": guildID}).
		RunWith(s.db).
		QueryRow().
		Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query pool preference for user %d: %w", userID, err)
	}

	var pools []string
	if err := json.Unmarshal([]byte(raw), &pools); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptPreference, err)
	}

	var forumIDs []int64
	for _, p := range pools {
		if p == poolAll {
			return nil, nil
		}
		id, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: pool %q", ErrCorruptPreference, p)
		}
		forumIDs = append(forumIDs, id)
	}
	return forumIDs, nil
}
