package scala40

import (
	"encoding/json"
	"fmt"
)

// SchemaVersion is bumped whenever the document layout changes shape.
const SchemaVersion = 1

// StateDocument is the self-describing export format for a complete game.
type StateDocument struct {
	SchemaVersion int   `json:"schemaVersion"`
	Game          *Game `json:"game"`
}

// ExportState serializes the full game state as a stable JSON document.
func ExportState(g *Game) ([]byte, error) {
	doc := StateDocument{SchemaVersion: SchemaVersion, Game: g}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to export game %s: %w", g.GameID, err)
	}
	return data, nil
}

// ImportState reconstructs a game from an exported document. The schema
// version must match and the integrity checker must pass; a violating
// document is rejected rather than loaded.
func ImportState(data []byte) (*Game, error) {
	var doc StateDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("malformed state document: %w", err)
	}
	if doc.SchemaVersion != SchemaVersion {
		return nil, fmt.Errorf("unsupported schema version %d (want %d)", doc.SchemaVersion, SchemaVersion)
	}
	if doc.Game == nil {
		return nil, fmt.Errorf("state document has no game")
	}
	if violations := CheckIntegrity(doc.Game); len(violations) > 0 {
		return nil, &CorruptStateError{GameID: doc.Game.GameID, Violations: violations}
	}
	return doc.Game, nil
}

// CorruptStateError reports that a loaded document failed integrity checks.
// Corruption is fatal for the affected game: callers must refuse further
// mutations and flag the document for inspection.
type CorruptStateError struct {
	GameID     string
	Violations []Violation
}

func (e *CorruptStateError) Error() string {
	return fmt.Sprintf("corrupt state for game %s: %d violation(s), first: %s",
		e.GameID, len(e.Violations), e.Violations[0])
}
