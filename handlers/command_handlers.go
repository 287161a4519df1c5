package handlers

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/Echoer009/Odysseia-Gacha/bot"
	"github.com/Echoer009/Odysseia-Gacha/config"
	"github.com/Echoer009/Odysseia-Gacha/models"
	"github.com/Echoer009/Odysseia-Gacha/utils"

	"github.com/bwmarrin/discordgo"
)

// CommandDispatcher routes slash commands to their handlers.
func CommandDispatcher(b *bot.Bot, s *discordgo.Session, i *discordgo.InteractionCreate) {
	switch i.ApplicationCommandData().Name {
	case "sync":
		HandleSync(b, s, i)
	case "panel":
		HandlePanel(b, s, i)
	case "config":
		HandleConfig(b, s, i)
	}
}

func requireAdmin(s *discordgo.Session, i *discordgo.InteractionCreate) bool {
	auth, err := utils.NewAuth()
	if err != nil {
		log.Printf("Error loading auth configuration: %v", err)
		respondEphemeral(s, i, "❌ **配置错误**：无法加载权限配置。")
		return false
	}
	if !auth.CheckAdmin(i) {
		respondEphemeral(s, i, "🚫 **权限不足**：只有拥有特定管理员身份组的用户才能执行此操作。")
		return false
	}
	return true
}

// HandleSync runs a manual full scan for the invoking guild. Used for
// bootstrap (seeding the watermarks) and for recovery; safe to re-run.
func HandleSync(b *bot.Bot, s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !requireAdmin(s, i) {
		return
	}

	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	}); err != nil {
		log.Printf("Error deferring sync interaction: %v", err)
		return
	}

	guildID := i.GuildID
	b.Tasks.Go(func(ctx context.Context) {
		added, err := b.Scanner.FullScan(ctx, guildID)
		if err != nil {
			log.Printf("Full scan for guild %s failed: %v", guildID, err)
			followupText(s, i, fmt.Sprintf("⚠️ 全量同步未能完成：%v", err))
			return
		}
		followupText(s, i, fmt.Sprintf("✅ **全量同步完成！** 本次新增了 **%d** 个帖子到总卡池中。", added))
	})
}

// HandlePanel (re)creates the draw panel in the channel the command was
// invoked from.
func HandlePanel(b *bot.Bot, s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !requireAdmin(s, i) {
		return
	}

	channelID := i.ChannelID
	if err := b.Panels.Rebuild(b.Tasks.Context(), channelID); err != nil {
		log.Printf("Panel rebuild in channel %s failed: %v", channelID, err)
		respondEphemeral(s, i, "⚠️ 面板创建失败，请检查机器人在此频道的权限。")
		return
	}
	respondEphemeral(s, i, "✅ 面板已刷新。")
}

// HandleConfig covers the admin configuration subcommands.
func HandleConfig(b *bot.Bot, s *discordgo.Session, i *discordgo.InteractionCreate) {
	if !requireAdmin(s, i) {
		return
	}

	options := i.ApplicationCommandData().Options
	if len(options) == 0 {
		return
	}
	sub := options[0]

	switch sub.Name {
	case "set-delivery":
		handleSetDelivery(s, i, sub)
	case "add-forum":
		handleAddForum(s, i, sub)
	case "remove-forum":
		handleRemoveForum(s, i, sub)
	case "exclude-forum":
		handleExcludeForum(s, i, sub)
	case "show":
		handleShowConfig(s, i)
	}
}

func channelOption(sub *discordgo.ApplicationCommandInteractionDataOption) string {
	for _, opt := range sub.Options {
		if opt.Name == "channel" {
			return opt.ChannelValue(nil).ID
		}
	}
	return ""
}

func handleSetDelivery(s *discordgo.Session, i *discordgo.InteractionCreate, sub *discordgo.ApplicationCommandInteractionDataOption) {
	channelID := channelOption(sub)
	if channelID == "" {
		respondEphemeral(s, i, "❌ 请选择一个文本频道。")
		return
	}

	err := config.Update(func(guilds map[string]models.GuildSettings) {
		gs := guilds[i.GuildID]
		gs.DeliveryChannel = channelID
		guilds[i.GuildID] = gs
	})
	if err != nil {
		log.Printf("Error saving delivery channel for guild %s: %v", i.GuildID, err)
		respondEphemeral(s, i, "⚠️ 保存配置失败。")
		return
	}
	respondEphemeral(s, i, fmt.Sprintf("✅ 速递频道已成功设置为 <#%s>。", channelID))
}

func handleAddForum(s *discordgo.Session, i *discordgo.InteractionCreate, sub *discordgo.ApplicationCommandInteractionDataOption) {
	channelID := channelOption(sub)
	if channelID == "" {
		respondEphemeral(s, i, "❌ 请选择一个论坛频道。")
		return
	}

	added := false
	err := config.Update(func(guilds map[string]models.GuildSettings) {
		gs := guilds[i.GuildID]
		if !gs.Monitors(channelID) {
			gs.ForumChannels = append(gs.ForumChannels, channelID)
			added = true
		}
		guilds[i.GuildID] = gs
	})
	if err != nil {
		log.Printf("Error adding forum for guild %s: %v", i.GuildID, err)
		respondEphemeral(s, i, "⚠️ 保存配置失败。")
		return
	}
	if !added {
		respondEphemeral(s, i, fmt.Sprintf("ℹ️ <#%s> 已在监控列表中。", channelID))
		return
	}
	respondEphemeral(s, i, fmt.Sprintf("✅ 已添加监控论坛 <#%s>。首次添加后请执行 /sync 进行全量同步。", channelID))
}

func handleRemoveForum(s *discordgo.Session, i *discordgo.InteractionCreate, sub *discordgo.ApplicationCommandInteractionDataOption) {
	channelID := channelOption(sub)
	if channelID == "" {
		respondEphemeral(s, i, "❌ 请选择一个论坛频道。")
		return
	}

	removed := false
	err := config.Update(func(guilds map[string]models.GuildSettings) {
		gs := guilds[i.GuildID]
		kept := gs.ForumChannels[:0]
		for _, id := range gs.ForumChannels {
			if id == channelID {
				removed = true
				continue
			}
			kept = append(kept, id)
		}
		gs.ForumChannels = kept
		guilds[i.GuildID] = gs
	})
	if err != nil {
		log.Printf("Error removing forum for guild %s: %v", i.GuildID, err)
		respondEphemeral(s, i, "⚠️ 保存配置失败。")
		return
	}
	if !removed {
		respondEphemeral(s, i, fmt.Sprintf("ℹ️ <#%s> 不在监控列表中。", channelID))
		return
	}
	respondEphemeral(s, i, fmt.Sprintf("✅ 已移除监控论坛 <#%s>。", channelID))
}

// handleExcludeForum toggles a forum's exclusion flag. An excluded forum is
// still indexed by the scanner but never announced.
func handleExcludeForum(s *discordgo.Session, i *discordgo.InteractionCreate, sub *discordgo.ApplicationCommandInteractionDataOption) {
	channelID := channelOption(sub)
	if channelID == "" {
		respondEphemeral(s, i, "❌ 请选择一个论坛频道。")
		return
	}

	nowExcluded := false
	err := config.Update(func(guilds map[string]models.GuildSettings) {
		gs := guilds[i.GuildID]
		if gs.Excludes(channelID) {
			kept := gs.ExcludedForums[:0]
			for _, id := range gs.ExcludedForums {
				if id != channelID {
					kept = append(kept, id)
				}
			}
			gs.ExcludedForums = kept
		} else {
			gs.ExcludedForums = append(gs.ExcludedForums, channelID)
			nowExcluded = true
		}
		guilds[i.GuildID] = gs
	})
	if err != nil {
		log.Printf("Error toggling exclusion for guild %s: %v", i.GuildID, err)
		respondEphemeral(s, i, "⚠️ 保存配置失败。")
		return
	}
	if nowExcluded {
		respondEphemeral(s, i, fmt.Sprintf("✅ <#%s> 已排除：仍会入库，但不再推送速递。", channelID))
	} else {
		respondEphemeral(s, i, fmt.Sprintf("✅ 已取消 <#%s> 的排除。", channelID))
	}
}

func handleShowConfig(s *discordgo.Session, i *discordgo.InteractionCreate) {
	settings, ok := config.Current().Guild(i.GuildID)
	if !ok {
		respondEphemeral(s, i, "ℹ️ 当前服务器没有任何配置。")
		return
	}

	delivery := "尚未设置"
	if settings.DeliveryChannel != "" {
		delivery = fmt.Sprintf("<#%s>", settings.DeliveryChannel)
	}

	forums := "尚未添加任何论坛"
	if len(settings.ForumChannels) > 0 {
		mentions := make([]string, len(settings.ForumChannels))
		for idx, id := range settings.ForumChannels {
			mentions[idx] = fmt.Sprintf("<#%s>", id)
		}
		forums = strings.Join(mentions, "\n")
	}

	embed := &discordgo.MessageEmbed{
		Title: "⚙️ 论坛监控配置",
		Color: 0xe67e22, // orange
		Fields: []*discordgo.MessageEmbedField{
			{Name: "🚚 速递频道", Value: delivery},
			{Name: "📡 监控中的论坛", Value: forums},
		},
	}
	if len(settings.ExcludedForums) > 0 {
		mentions := make([]string, len(settings.ExcludedForums))
		for idx, id := range settings.ExcludedForums {
			mentions[idx] = fmt.Sprintf("<#%s>", id)
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name: "🔇 已排除的论坛", Value: strings.Join(mentions, "\n"),
		})
	}

	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
			Flags:  discordgo.MessageFlagsEphemeral,
		},
	}); err != nil {
		log.Printf("Error responding to config show: %v", err)
	}
}

func respondEphemeral(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	}); err != nil {
		log.Printf("Error responding to interaction: %v", err)
	}
}
