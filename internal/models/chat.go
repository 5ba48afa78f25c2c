package models

import "time"

// ChatMessage is immutable once appended to a lobby's log.
type ChatMessage struct {
	Sender    string    `json:"sender"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}
