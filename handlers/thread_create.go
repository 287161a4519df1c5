package handlers

import (
	"context"
	"log"
	"strconv"

	"github.com/Echoer009/Odysseia-Gacha/bot"
	"github.com/Echoer009/Odysseia-Gacha/models"

	"github.com/bwmarrin/discordgo"
)

// ThreadCreateHandler handles the THREAD_CREATE event: a synchronous index
// upsert, then a fire-and-forget delivery pipeline. The handler itself
// returns immediately so the gateway loop is never blocked on the retry
// schedule.
func ThreadCreateHandler(b *bot.Bot) func(s *discordgo.Session, t *discordgo.ThreadCreate) {
	return func(s *discordgo.Session, t *discordgo.ThreadCreate) {
		// THREAD_CREATE also fires when the bot is added to an existing
		// thread; only genuinely new threads matter here.
		if !t.NewlyCreated {
			return
		}

		record, ok := toRecord(t.Channel)
		if !ok {
			return
		}

		// Index first, delivery second: even a thread that is never
		// announced (excluded, unmonitored) must land in the index, and a
		// storage failure must not take the delivery down with it.
		if _, err := b.Store.UpsertMany([]models.ThreadRecord{record}); err != nil {
			log.Printf("Error indexing new thread %s: %v", t.ID, err)
		}

		if b.Pipeline == nil {
			return
		}
		thread := t.Channel
		b.Tasks.Go(func(ctx context.Context) {
			b.Pipeline.Run(ctx, thread)
		})
	}
}

func toRecord(t *discordgo.Channel) (models.ThreadRecord, bool) {
	tid, err := strconv.ParseInt(t.ID, 10, 64)
	if err != nil {
		return models.ThreadRecord{}, false
	}
	fid, err := strconv.ParseInt(t.ParentID, 10, 64)
	if err != nil {
		return models.ThreadRecord{}, false
	}
	gid, err := strconv.ParseInt(t.GuildID, 10, 64)
	if err != nil {
		return models.ThreadRecord{}, false
	}
	return models.ThreadRecord{ThreadID: tid, ForumID: fid, GuildID: gid}, true
}
