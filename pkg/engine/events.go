package engine

import (
	"time"

	"github.com/vctt94/scala40/pkg/scala40"
)

// EventType enumerates the structured events committed actions emit.
type EventType string

const (
	EventHandStart       EventType = "hand_start"
	EventDraw            EventType = "draw"
	EventReshuffle       EventType = "reshuffle"
	EventOpen            EventType = "open"
	EventLayMeld         EventType = "lay_meld"
	EventAttach          EventType = "attach"
	EventSubstituteJoker EventType = "substitute_joker"
	EventDiscard         EventType = "discard"
	EventClosure         EventType = "closure"
	EventElimination     EventType = "elimination"
	EventHandEnd         EventType = "hand_end"
	EventMatchEnd        EventType = "match_end"
	EventInvalidAction   EventType = "invalid_action"
	EventWarning         EventType = "warning"
)

// Event is one entry in the per-action structured log.
type Event struct {
	Type      EventType              `json:"type"`
	GameID    string                 `json:"gameId"`
	UserID    string                 `json:"userId,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// eventLog accumulates events while an action executes; they are attached to
// the response only once the commit lands.
type eventLog struct {
	gameID string
	events []Event
}

func (l *eventLog) add(typ EventType, userID string, data map[string]interface{}) {
	l.events = append(l.events, Event{
		Type:      typ,
		GameID:    l.gameID,
		UserID:    userID,
		Data:      data,
		Timestamp: time.Now().UTC(),
	})
}

func cardStrings(cards []scala40.Card) []string {
	out := make([]string, len(cards))
	for i, c := range cards {
		out[i] = c.String()
	}
	return out
}
