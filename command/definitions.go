package command

import "github.com/bwmarrin/discordgo"

// SyncCommand defines the structure for the /sync command.
type SyncCommand struct{}

// Definition returns the application command definition.
func (c *SyncCommand) Definition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        "sync",
		Description: "【重要】首次配置或需要时，将所有帖子全量同步到数据库",
	}
}

// PanelCommand defines the structure for the /panel command.
type PanelCommand struct{}

// Definition returns the application command definition.
func (c *PanelCommand) Definition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        "panel",
		Description: "在当前频道建立（或刷新）随机抽取面板",
	}
}

// ConfigCommand defines the structure for the /config command group.
type ConfigCommand struct{}

// Definition returns the application command definition.
func (c *ConfigCommand) Definition() *discordgo.ApplicationCommand {
	forumTypes := []discordgo.ChannelType{discordgo.ChannelTypeGuildForum}
	textTypes := []discordgo.ChannelType{discordgo.ChannelTypeGuildText}

	return &discordgo.ApplicationCommand{
		Name:        "config",
		Description: "配置论坛监控与速递功能",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Name:        "set-delivery",
				Description: "设置一个频道，用于接收新帖速递通知",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Options: []*discordgo.ApplicationCommandOption{
					{
						Name:         "channel",
						Description:  "选择一个文本频道作为速递频道",
						Type:         discordgo.ApplicationCommandOptionChannel,
						ChannelTypes: textTypes,
						Required:     true,
					},
				},
			},
			{
				Name:        "add-forum",
				Description: "添加一个论坛频道到监控列表",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Options: []*discordgo.ApplicationCommandOption{
					{
						Name:         "channel",
						Description:  "要监控的论坛频道",
						Type:         discordgo.ApplicationCommandOptionChannel,
						ChannelTypes: forumTypes,
						Required:     true,
					},
				},
			},
			{
				Name:        "remove-forum",
				Description: "从监控列表中移除一个论坛频道",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Options: []*discordgo.ApplicationCommandOption{
					{
						Name:         "channel",
						Description:  "要移除的论坛频道",
						Type:         discordgo.ApplicationCommandOptionChannel,
						ChannelTypes: forumTypes,
						Required:     true,
					},
				},
			},
			{
				Name:        "exclude-forum",
				Description: "排除/恢复一个论坛的速递推送（仍会入库）",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Options: []*discordgo.ApplicationCommandOption{
					{
						Name:         "channel",
						Description:  "要切换排除状态的论坛频道",
						Type:         discordgo.ApplicationCommandOptionChannel,
						ChannelTypes: forumTypes,
						Required:     true,
					},
				},
			},
			{
				Name:        "show",
				Description: "显示当前的速递频道和监控的论坛列表",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
			},
		},
	}
}
