package core

import "time"

// Turn is one completed query/response exchange. Turns are immutable once
// appended to a memory store.
type Turn struct {
	Query     string    `json:"query"`
	Response  string    `json:"response"`
	Timestamp time.Time `json:"timestamp"`
}

// NewTurn stamps a turn with the current time.
func NewTurn(query, response string) Turn {
	return Turn{Query: query, Response: response, Timestamp: time.Now()}
}
