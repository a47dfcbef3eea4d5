package routebuilder

// State identifies a step of the route builder conversation.
type State string

const (
	// StateIdle means no route builder session is active.
	StateIdle State = "idle"
	// StateNamingRoute awaits the route name.
	StateNamingRoute State = "naming_route"
	// StateDescribingRoute awaits the route description.
	StateDescribingRoute State = "describing_route"
	// StateAwaitingPointAction awaits "add point" or "finish".
	StateAwaitingPointAction State = "awaiting_point_action"
	// StateChoosingQuest awaits an exact quest name or the new-quest command.
	StateChoosingQuest State = "choosing_quest"
	// StateNamingNewQuest awaits the name of a quest to be created on commit.
	StateNamingNewQuest State = "naming_new_quest"
	// StateDescribingNewQuest awaits the new quest description.
	StateDescribingNewQuest State = "describing_new_quest"
	// StateLocatingNewQuest awaits the new quest location label or a map pin.
	StateLocatingNewQuest State = "locating_new_quest"
	// StateEnteringHint awaits the point hint text or a skip.
	StateEnteringHint State = "entering_hint"
	// StateAwaitingPhoto awaits the point photo or a skip.
	StateAwaitingPhoto State = "awaiting_photo"
	// StateAwaitingAudio awaits the point audio or a skip.
	StateAwaitingAudio State = "awaiting_audio"
	// StateConfirmingPoint awaits confirmation of the assembled point.
	StateConfirmingPoint State = "confirming_point"
)
