package callbacks

import (
	"github.com/google/uuid"
	tele "gopkg.in/telebot.v4"
)

// PayloadUUID parses the callback payload as a UUID. Review buttons carry
// the progress record ID this way.
func PayloadUUID(c tele.Context) (uuid.UUID, error) {
	return uuid.Parse(CallbackPayload(c))
}
