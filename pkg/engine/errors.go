// Package engine implements the turn engine: action dispatch over the turn
// phase state machine, closure and elimination handling, idempotent request
// processing and the optimistic-concurrency commit loop against the
// repository. All rule checks delegate to the scala40 package.
package engine

import (
	"errors"
	"fmt"

	"github.com/vctt94/scala40/pkg/scala40"
)

// Kind identifies an engine error. The set is stable: callers may switch on
// it or serialize it across a transport boundary.
type Kind string

const (
	NotYourTurn            Kind = "NotYourTurn"
	WrongPhase             Kind = "WrongPhase"
	IllegalMeld            Kind = "IllegalMeld"
	OpeningBelowThreshold  Kind = "OpeningBelowThreshold"
	NotOpened              Kind = "NotOpened"
	JokerMustBeUsed        Kind = "JokerMustBeUsed"
	PickedCardMustBePlayed Kind = "PickedCardMustBePlayed"
	DiscardAttachesToTable Kind = "DiscardAttachesToTable"
	DiscardIsPickedUpCard  Kind = "DiscardIsPickedUpCard"
	CannotCloseFirstRound  Kind = "CannotCloseFirstRound"
	NoCards                Kind = "NoCards"
	StockEmpty             Kind = "StockEmpty"
	StaleState             Kind = "StaleState"
	CorruptState           Kind = "CorruptState"
	NotFound               Kind = "NotFound"
	Unavailable            Kind = "Unavailable"
)

// Error is the typed error every failed action returns. Validation errors
// carry no state change; the game document is exactly as it was.
type Error struct {
	Kind   Kind
	Detail string
	// Code is set for IllegalMeld.
	Code scala40.MeldReason
	// Points is set for OpeningBelowThreshold.
	Points int
}

func (e *Error) Error() string {
	switch {
	case e.Kind == IllegalMeld && e.Code != scala40.ReasonNone:
		return fmt.Sprintf("%s (%s): %s", e.Kind, e.Code, e.Detail)
	case e.Kind == OpeningBelowThreshold:
		return fmt.Sprintf("%s (%d points): %s", e.Kind, e.Points, e.Detail)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
	}
}

// IsKind reports whether err is an engine error of the given kind.
func IsKind(err error, k Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == k
}

func errorf(k Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: k, Detail: fmt.Sprintf(format, args...)}
}

func meldError(reason scala40.MeldReason, format string, args ...interface{}) *Error {
	return &Error{Kind: IllegalMeld, Code: reason, Detail: fmt.Sprintf(format, args...)}
}
