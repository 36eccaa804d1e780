// Package chat provides the wire representations of conversation messages
// exchanged between the relay, the upstream generator, and clients.
package chat

// Message roles. The relay only ever writes these two; the upstream client
// additionally prepends a system message before generation.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single turn in a conversation, in the order it was created.
type Message struct {
	Role    string `json:"role"`    // "system", "user", "assistant"
	Content string `json:"content"` // The message content
}
