package commands

import (
	tele "gopkg.in/telebot.v4"
)

// Command describes a registered bot command. Aliases let plain button
// labels resolve to the same handler as the slash form. Hidden keeps a
// command out of the Telegram command menu, AdminOnly out of the menu
// for regular users.
type Command struct {
	Handler     tele.HandlerFunc
	Description string
	AdminOnly   bool
	Hidden      bool
	Aliases     []string
}
