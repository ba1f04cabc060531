package models

import "time"

// CursorPosition is where a peer's cursor sits in the document.
type CursorPosition struct {
	Line   int `json:"line"`
	Column int `json:"col"`
}

// SelectionRange is a non-empty text selection. A zero-length selection is
// never tracked; the field is simply omitted from the presence record.
type SelectionRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// PresenceRecord is the ephemeral per-peer state tracked through the
// transport's presence primitive. It is separate from document content:
// losing it costs nothing but a cursor disappearing.
type PresenceRecord struct {
	PeerID    string          `json:"user_id"`
	Name      string          `json:"name"`
	Color     string          `json:"color"` // hex color for cursor/highlight
	IsOwner   bool            `json:"is_owner"`
	Cursor    *CursorPosition `json:"cursor,omitempty"`
	Selection *SelectionRange `json:"selection,omitempty"`
	OnlineAt  time.Time       `json:"online_at"`
}
