package domain

import "time"

// IncomingMessage is a decoded inbound email, ready to be persisted as a
// ticket. Text and HTML hold the respective body parts verbatim; body
// normalization happens at ticket-creation time, not here.
type IncomingMessage struct {
	FromName    string
	FromAddr    string
	Subject     string
	Date        time.Time
	Text        string
	HTML        string
	Attachments []MessageAttachment
}

// MessageAttachment carries one decoded attachment of an inbound email.
type MessageAttachment struct {
	Filename string
	Content  []byte
}
