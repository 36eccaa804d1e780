package chat

// ErrorResponse represents an error returned to the client. The message is
// deliberately opaque; diagnostic detail stays in the server logs.
type ErrorResponse struct {
	Error string `json:"error"`
}
