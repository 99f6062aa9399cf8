package chat

// PostPublicCommand carries a message intent addressed to the public channel.
type PostPublicCommand struct {
	Sender string
	Body   string
}

// PostPrivateCommand carries a message intent addressed to one identity.
type PostPrivateCommand struct {
	Sender   string
	Receiver string
	Body     string
}

// HistoryQuery addresses the durable history of one conversation.
// A nil Cursor starts from the most recent page.
type HistoryQuery struct {
	A      string
	B      string
	Cursor *string
}
