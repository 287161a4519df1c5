package main

import (
	"github.com/Echoer009/Odysseia-Gacha/bot"
	"github.com/Echoer009/Odysseia-Gacha/command"
	"github.com/Echoer009/Odysseia-Gacha/handlers"
)

func main() {
	bot.Run(handlers.Register, command.AllCommands)
}
