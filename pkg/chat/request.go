package chat

// RelayRequest is the body of a POST /api/chat call.
type RelayRequest struct {
	ConversationID string `json:"conversationId"` // Client-supplied conversation identifier
	Message        string `json:"message"`        // The user's turn, UTF-8 text
}

// HistoryRequest is the body of a POST /api/chat/history call.
type HistoryRequest struct {
	ConversationID string `json:"conversationId"`
}

// HistoryMessage is one element of the history response, oldest first.
type HistoryMessage struct {
	ID      string `json:"id"`
	Role    string `json:"role"`
	Content string `json:"content"`
}
