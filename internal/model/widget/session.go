package widget

// CallbackState is the visible state of the callback form.
type CallbackState struct {
	Draft      CallbackRequest  `json:"draft"`
	Error      *ValidationError `json:"error,omitempty"`
	Success    string           `json:"success,omitempty"`
	Submitting bool             `json:"submitting"`
}

// Snapshot is a point-in-time copy of a widget session, safe to hand to renderers.
type Snapshot struct {
	SessionID  string        `json:"sessionId"`
	Revision   uint64        `json:"revision"`
	Assistant  Assistant     `json:"assistant"`
	Open       bool          `json:"open"`
	View       View          `json:"view"`
	Messages   []Message     `json:"messages"`
	Pending    bool          `json:"pending"`
	FAQQuery   string        `json:"faqQuery"`
	FAQResults []FaqEntry    `json:"faqResults"`
	Callback   CallbackState `json:"callback"`
}

// EventType names what a shell published to its subscribers.
type EventType string

const (
	EventSnapshot     EventType = "snapshot"
	EventOpenCalendar EventType = "open_calendar"
)

// Event is pushed to session subscribers after every state change.
type Event struct {
	Type     EventType `json:"type"`
	Snapshot *Snapshot `json:"snapshot,omitempty"`
	URL      string    `json:"url,omitempty"`
}
