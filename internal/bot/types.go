package bot

// Message is an inbound chat event as seen by the relay, independent of the chat platform.
type Message struct {
	UserID  string `json:"user_id"`
	Author  string `json:"author"`
	Content string `json:"content"`
	// Direct marks a one-to-one conversation. Only direct messages are answered;
	// commands work everywhere.
	Direct bool `json:"direct"`
	// FromSelf marks messages the bot authored; they are always ignored.
	FromSelf bool `json:"-"`
}

// Reply is what the relay sends back, if anything.
type Reply struct {
	Text    string `json:"text,omitempty"`
	TurnID  string `json:"turn_id,omitempty"`
	Command string `json:"command,omitempty"`
	// Ignored is set when the message produced no reply at all.
	Ignored bool `json:"ignored,omitempty"`
}
