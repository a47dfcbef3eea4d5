package bot

import (
	"strings"

	tele "gopkg.in/telebot.v4"

	"questbot/core/telegram/helpers"
	"questbot/core/telegram/keyboard"
	"questbot/internal/apperr"
	"questbot/internal/routebuilder"
)

// fsmAdapter bridges the message router to the route builder machine,
// translating Telegram updates into events and prompts into sends.
type fsmAdapter struct {
	machine *routebuilder.Machine
}

// InProgress reports whether the sender has an active builder session.
func (f *fsmAdapter) InProgress(userID int64) bool {
	return f.machine.InProgress(userID)
}

// ManagerHandler feeds the update to the machine and renders its prompt.
func (f *fsmAdapter) ManagerHandler(c tele.Context) error {
	ctx := helpers.BuildContext(c)
	ev := eventFromContext(c)

	reply, err := f.machine.Handle(ctx, c.Sender().ID, ev)
	if sendErr := sendReply(c, reply); sendErr != nil {
		return sendErr
	}
	// Coded errors are user mistakes already answered by the prompt.
	if err != nil && apperr.CodeOf(err) == "" {
		return err
	}
	return nil
}

// eventFromContext maps one Telegram update to the machine's event union.
func eventFromContext(c tele.Context) routebuilder.Event {
	msg := c.Message()
	if msg == nil {
		return routebuilder.TextEvent{Content: c.Text()}
	}
	switch {
	case msg.Photo != nil:
		return routebuilder.PhotoEvent{Ref: msg.Photo.FileID}
	case msg.Audio != nil:
		return routebuilder.AudioEvent{Ref: msg.Audio.FileID}
	case msg.Voice != nil:
		return routebuilder.AudioEvent{Ref: msg.Voice.FileID}
	case msg.Location != nil:
		return routebuilder.LocationEvent{
			Lat: float64(msg.Location.Lat),
			Lon: float64(msg.Location.Lng),
		}
	case msg.Contact != nil:
		return routebuilder.ContactEvent{Phone: msg.Contact.PhoneNumber}
	}

	text := msg.Text
	if strings.HasPrefix(text, "/") {
		return routebuilder.CommandEvent{Name: commandName(text)}
	}
	return routebuilder.TextEvent{Content: text}
}

// commandName extracts the bare command: no slash, no @botname, no args.
func commandName(text string) string {
	trimmed := strings.TrimPrefix(text, "/")
	name, _, _ := strings.Cut(trimmed, " ")
	if at := strings.Index(name, "@"); at >= 0 {
		name = name[:at]
	}
	return name
}

// sendReply renders one machine prompt, attaching or removing the reply
// keyboard as requested.
func sendReply(c tele.Context, reply routebuilder.Reply) error {
	if reply.Text == "" {
		return nil
	}
	switch {
	case len(reply.Keyboard) > 0:
		return helpers.SendKeyboard(c, reply.Text, keyboard.ReplyButtons(reply.Keyboard...))
	case reply.RemoveKeyboard:
		return helpers.SendKeyboard(c, reply.Text, keyboard.RemoveKeyboard())
	default:
		return helpers.SendText(c, reply.Text)
	}
}
