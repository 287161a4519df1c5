package handlers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/Echoer009/Odysseia-Gacha/bot"
	"github.com/Echoer009/Odysseia-Gacha/config"
	"github.com/Echoer009/Odysseia-Gacha/database"
	"github.com/Echoer009/Odysseia-Gacha/panel"

	"github.com/bwmarrin/discordgo"
)

// InteractionCreate routes slash commands and panel component interactions.
func InteractionCreate(b *bot.Bot) func(s *discordgo.Session, i *discordgo.InteractionCreate) {
	return func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		switch i.Type {
		case discordgo.InteractionApplicationCommand:
			CommandDispatcher(b, s, i)
		case discordgo.InteractionMessageComponent:
			handleComponent(b, s, i)
		}
	}
}

func handleComponent(b *bot.Bot, s *discordgo.Session, i *discordgo.InteractionCreate) {
	switch i.MessageComponentData().CustomID {
	case panel.DrawOneID:
		handleDraw(b, s, i, 1)
	case panel.DrawFiveID:
		handleDraw(b, s, i, 5)
	case panel.SettingsID:
		handlePoolSettings(s, i)
	case panel.PoolSelectID:
		handlePoolSave(b, s, i)
	}
}

// handleDraw answers a draw button with an ephemeral set of randomly picked
// threads from the user's selected pools.
func handleDraw(b *bot.Bot, s *discordgo.Session, i *discordgo.InteractionCreate, count int) {
	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Flags: discordgo.MessageFlagsEphemeral,
		},
	}); err != nil {
		log.Printf("Error deferring draw interaction: %v", err)
		return
	}

	guildID := i.GuildID
	userID := interactionUserID(i)
	b.Tasks.Go(func(ctx context.Context) {
		embeds, err := panel.Draw(s, b.Store, guildID, userID, count)
		switch {
		case errors.Is(err, database.ErrCorruptPreference):
			followupText(s, i, "⚠️ 你的卡池设置似乎已损坏，请使用 `设置卡池` 功能重新设置。")
			return
		case errors.Is(err, panel.ErrNoPools):
			followupText(s, i, "🤔 无法抽卡：管理员尚未配置任何监控论坛，或者您选择的卡池为空。")
			return
		case errors.Is(err, panel.ErrEmptyPool):
			followupText(s, i, "🏜️ 所选卡池中空空如也，像你的钱包一样。等待管理员同步帖子或发布新帖吧！")
			return
		case err != nil:
			log.Printf("Draw failed for guild %s: %v", guildID, err)
			followupText(s, i, "🤯 糟糕！抽卡途中似乎遇到了一个意料之外的错误，请稍后再试或联系管理员。")
			return
		}
		if len(embeds) == 0 {
			followupText(s, i, "👻 很抱歉，抽中的帖子似乎都已消失在时空中...")
			return
		}
		if _, err := s.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{
			Embeds: embeds,
			Flags:  discordgo.MessageFlagsEphemeral,
		}); err != nil {
			log.Printf("Error sending draw result: %v", err)
		}
	})
}

// handlePoolSettings answers the settings button with an ephemeral
// multi-select of the guild's monitored forums.
func handlePoolSettings(s *discordgo.Session, i *discordgo.InteractionCreate) {
	options := poolOptions(s, i.GuildID)

	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content:    "请从下面选择你的专属抽卡范围：",
			Components: panel.PoolSelectComponents(options, nil, false),
			Flags:      discordgo.MessageFlagsEphemeral,
		},
	}); err != nil {
		log.Printf("Error sending pool settings view: %v", err)
	}
}

// handlePoolSave persists the selected pools and freezes the select menu
// with a confirmation.
func handlePoolSave(b *bot.Bot, s *discordgo.Session, i *discordgo.InteractionCreate) {
	values := i.MessageComponentData().Values

	uid, err := strconv.ParseInt(interactionUserID(i), 10, 64)
	if err != nil {
		log.Printf("Error parsing user id for pool save: %v", err)
		return
	}
	gid, err := strconv.ParseInt(i.GuildID, 10, 64)
	if err != nil {
		log.Printf("Error parsing guild id for pool save: %v", err)
		return
	}

	var forumIDs []int64
	all := false
	for _, v := range values {
		if v == panel.PoolAllValue {
			all = true
			break
		}
		fid, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			continue
		}
		forumIDs = append(forumIDs, fid)
	}
	if all {
		forumIDs = nil
	}

	if err := b.Store.SetUserPools(uid, gid, forumIDs); err != nil {
		log.Printf("Error saving pool preference for user %d: %v", uid, err)
		respondEphemeral(s, i, "⚠️ 保存卡池设置失败，请稍后再试。")
		return
	}

	var labels []string
	chosen := make(map[string]bool, len(values))
	if all {
		labels = []string{"默认卡池 (所有卡池)"}
		chosen[panel.PoolAllValue] = true
	} else {
		for _, v := range values {
			chosen[v] = true
			name := forumName(s, v)
			if name == "" {
				name = v
			}
			labels = append(labels, "`"+name+"`")
		}
	}

	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: &discordgo.InteractionResponseData{
			Content:    fmt.Sprintf("您的专属卡池已保存为: **%s**,**现在是我的回合,Dolo!**", strings.Join(labels, ", ")),
			Components: panel.PoolSelectComponents(poolOptions(s, i.GuildID), chosen, true),
		},
	}); err != nil {
		log.Printf("Error confirming pool save: %v", err)
	}
}

// poolOptions lists the guild's monitored forums as selectable pools,
// skipping channels that can no longer be resolved.
func poolOptions(s *discordgo.Session, guildID string) []panel.PoolOption {
	settings, _ := config.Current().Guild(guildID)

	var options []panel.PoolOption
	for _, forumID := range settings.ForumChannels {
		name := forumName(s, forumID)
		if name == "" {
			continue
		}
		options = append(options, panel.PoolOption{ID: forumID, Name: name})
	}
	return options
}

func forumName(s *discordgo.Session, channelID string) string {
	if ch, err := s.State.Channel(channelID); err == nil {
		return ch.Name
	}
	ch, err := s.Channel(channelID)
	if err != nil {
		return ""
	}
	return ch.Name
}

func interactionUserID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

func followupText(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	if _, err := s.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{
		Content: content,
		Flags:   discordgo.MessageFlagsEphemeral,
	}); err != nil {
		log.Printf("Error sending followup: %v", err)
	}
}
