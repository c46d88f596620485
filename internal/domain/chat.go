package domain

// ChatRequest is the body posted to the chat endpoint.
type ChatRequest struct {
	Message string `json:"message"`
	UserID  string `json:"user_id"`
}

// ChatResponse is the reply shape returned by the chat endpoint.
// SessionCancelled is nil when the backend omitted the field.
type ChatResponse struct {
	Response         string `json:"response"`
	SessionCancelled *bool  `json:"session_cancelled,omitempty"`
}

// Cancelled reports whether the backend flagged the session as ended.
func (r ChatResponse) Cancelled() bool {
	return r.SessionCancelled != nil && *r.SessionCancelled
}
