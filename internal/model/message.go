package model

import "time"

// RawMessage is a notification exactly as the message source delivered it.
type RawMessage struct {
	Timestamp time.Time
	ID        string
	Sender    string
	Body      string
}

// Rejection records why a message did not become a transaction.
type Rejection struct {
	Timestamp time.Time
	MessageID string
	Sender    string
	Body      string
	Reason    string
}

// NewRejection builds a rejection for msg with a single reason.
func NewRejection(msg RawMessage, reason string) Rejection {
	return Rejection{
		MessageID: msg.ID,
		Sender:    msg.Sender,
		Body:      msg.Body,
		Timestamp: msg.Timestamp,
		Reason:    reason,
	}
}
