package delivery

import (
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
)

// MarkerTitle identifies a delivery notification structurally. The retention
// sweeper matches on it when cleaning old notifications out of the channel.
const MarkerTitle = "✨ 新卡速递"

const previewLimit = 400

// BuildEmbed renders a thread into a notification embed. It is rebuilt from
// scratch on every attempt so a late-arriving edit or attachment is picked
// up; nothing here is cached.
//
// starter may be nil when the originating message has not propagated yet
// (or was deleted); the embed is then built without the body preview.
func BuildEmbed(thread *discordgo.Channel, starter *discordgo.Message, tagNames []string, title string) *discordgo.MessageEmbed {
	author := "未知"
	if starter != nil && starter.Author != nil {
		author = starter.Author.Username
	}
	header := fmt.Sprintf("**%s** | **👤 作者:** %s", thread.Name, author)

	description := header
	if starter != nil && starter.Content != "" {
		preview := starter.Content
		if runes := []rune(preview); len(runes) > previewLimit {
			preview = string(runes[:previewLimit]) + "..."
		}
		description = fmt.Sprintf("%s\n\n**📝 内容速览:**\n%s", header, preview)
	}

	embed := &discordgo.MessageEmbed{
		Title:       title,
		Description: description,
		Color:       0x3498db, // blue
		Fields: []*discordgo.MessageEmbedField{
			{
				Name:  "🚪 传送门",
				Value: fmt.Sprintf("[点击查看原帖](https://discord.com/channels/%s/%s)", thread.GuildID, thread.ID),
			},
		},
	}

	if starter != nil {
		for _, attachment := range starter.Attachments {
			if strings.HasPrefix(attachment.ContentType, "image/") {
				embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: attachment.URL}
				break
			}
		}
	}

	if len(tagNames) > 0 {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  "🏷️ 标签",
			Value: strings.Join(tagNames, ", "),
		})
	}

	return embed
}

// ResolveTagNames maps a thread's applied tag ids to their display names
// using the parent forum's tag definitions. Unknown ids are kept as-is so a
// stale forum snapshot still yields a usable tag list.
func ResolveTagNames(forum *discordgo.Channel, appliedTags []string) []string {
	if len(appliedTags) == 0 {
		return nil
	}

	byID := make(map[string]string)
	if forum != nil {
		for _, tag := range forum.AvailableTags {
			byID[tag.ID] = tag.Name
		}
	}

	names := make([]string, 0, len(appliedTags))
	for _, id := range appliedTags {
		if name, ok := byID[id]; ok {
			names = append(names, name)
		} else {
			names = append(names, id)
		}
	}
	return names
}
