package domain

import "time"

// Message is a single entry in the on-screen conversation.
type Message struct {
	ID        string
	Text      string
	IsUser    bool
	Timestamp time.Time
}

// Exchange is one completed question/reply pair kept in the transcript archive.
type Exchange struct {
	UserID           string
	Question         string
	Answer           string
	SessionCancelled bool
	At               time.Time
}
