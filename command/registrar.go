package command

import "github.com/Echoer009/Odysseia-Gacha/bot"

// AllCommands holds all the command instances.
var AllCommands = []bot.Command{
	&SyncCommand{},
	&PanelCommand{},
	&ConfigCommand{},
}
