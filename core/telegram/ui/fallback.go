package ui

import tele "gopkg.in/telebot.v4"

// FallbackProvider exposes the handlers an application supplies for
// updates that match no command, callback, or active conversation.
type FallbackProvider interface {
	UnknownText() tele.HandlerFunc
	UnknownDocument() tele.HandlerFunc
	UnknownCallback() tele.HandlerFunc
}
