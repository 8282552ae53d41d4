package widget

// Assistant captures the copy the widget shows on behalf of the support assistant.
type Assistant struct {
	Name           string `json:"name"`
	Title          string `json:"title"`
	Greeting       string `json:"greeting"`
	CannedReply    string `json:"-"`
	PromptHint     string `json:"-"`
	SuccessMessage string `json:"-"`
}

// DefaultAssistant returns the assistant profile shipped with the widget.
func DefaultAssistant() Assistant {
	return Assistant{
		Name:           "Martex AI",
		Title:          "How can we assist you?",
		Greeting:       "Hello! I'm Martex AI. How can I help you today? (This is a UI demo)",
		CannedReply:    "This is a simulated response. The live chat is currently for display purposes only.",
		PromptHint:     "Answer briefly and warmly. Point visitors to a consultation when their question needs a human.",
		SuccessMessage: "Thank you! We will call you back soon.",
	}
}
