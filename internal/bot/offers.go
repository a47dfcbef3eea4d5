package bot

import (
	"sync"

	"github.com/google/uuid"
)

// offers remembers which quest was last offered to each user, so a photo
// submission can be attributed. The memory is process-local, matching the
// non-persistent conversation state of the rest of the bot.
type offers struct {
	mu sync.RWMutex
	m  map[int64]uuid.UUID
}

func newOffers() *offers {
	return &offers{m: make(map[int64]uuid.UUID)}
}

func (o *offers) set(userID int64, questID uuid.UUID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.m[userID] = questID
}

func (o *offers) get(userID int64) (uuid.UUID, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	id, ok := o.m[userID]
	return id, ok
}

func (o *offers) clear(userID int64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.m, userID)
}
