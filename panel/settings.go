package panel

import "github.com/bwmarrin/discordgo"

// PoolAllValue is the select option meaning "draw from every monitored
// forum". It is stored verbatim in the preference table.
const PoolAllValue = "all"

// PoolOption is one selectable draw pool: a monitored forum channel.
type PoolOption struct {
	ID   string
	Name string
}

// PoolSelectComponents builds the pool preference multi-select. chosen marks
// the options rendered as selected; disabled freezes the menu, used when
// re-rendering it after the preference has been saved.
func PoolSelectComponents(pools []PoolOption, chosen map[string]bool, disabled bool) []discordgo.MessageComponent {
	options := []discordgo.SelectMenuOption{
		{Label: "默认卡池 (所有卡池)", Value: PoolAllValue, Default: chosen[PoolAllValue]},
	}
	for _, pool := range pools {
		options = append(options, discordgo.SelectMenuOption{
			Label:   "卡池: " + pool.Name,
			Value:   pool.ID,
			Default: chosen[pool.ID],
		})
	}

	minValues := 1
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.SelectMenu{
					MenuType:    discordgo.StringSelectMenu,
					CustomID:    PoolSelectID,
					Placeholder: "选择你的专属卡池 (可多选)...",
					MinValues:   &minValues,
					MaxValues:   len(options),
					Options:     options,
					Disabled:    disabled,
				},
			},
		},
	}
}
