package routebuilder

// Event is the tagged union of inbound chat event shapes the route
// builder consumes. Every transition switches exhaustively over these
// types; unexpected shapes re-prompt without advancing.
type Event interface {
	isEvent()
}

// TextEvent is a free-text message.
type TextEvent struct {
	Content string
}

// CommandEvent is a slash command, name without the leading slash.
// The machine's commands take no arguments.
type CommandEvent struct {
	Name string
}

// PhotoEvent is a photo attachment reference.
type PhotoEvent struct {
	Ref string
}

// AudioEvent is an audio attachment reference.
type AudioEvent struct {
	Ref string
}

// LocationEvent is a shared map position.
type LocationEvent struct {
	Lat float64
	Lon float64
}

// ContactEvent is a shared phone contact. The route builder ignores it,
// but the union covers every shape the transport can deliver.
type ContactEvent struct {
	Phone string
}

func (TextEvent) isEvent()     {}
func (CommandEvent) isEvent()  {}
func (PhotoEvent) isEvent()    {}
func (AudioEvent) isEvent()    {}
func (LocationEvent) isEvent() {}
func (ContactEvent) isEvent()  {}

// Reply is the single outbound prompt produced by one transition.
type Reply struct {
	Text string
	// Keyboard holds reply-keyboard rows; empty means keep the current markup.
	Keyboard [][]string
	// RemoveKeyboard hides any visible reply keyboard.
	RemoveKeyboard bool
}
