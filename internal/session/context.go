// Package session implements the reconciliation core: the throttled
// broadcaster, presence directory, document and shape-diff reconcilers and
// the lifecycle controller that wires them to a transport channel.
//
// Convergence model: last-writer-wins, owner-authoritative. Every
// state-carrying message is a full snapshot applied level-triggered, so the
// protocol tolerates drops and reordering; it does not resolve concurrent
// edits between non-owners, which the role model forbids anyway.
package session

import (
	"time"

	"github.com/google/uuid"

	"pairpad/internal/models"
)

// Context is the per-session identity shared by every component: who the
// local peer is and what role it holds. It replaces scattered module-level
// cells; the controller creates it and hands it around by reference.
type Context struct {
	SessionID string
	PeerID    string
	Name      string
	Color     string
	IsOwner   bool
	JoinedAt  time.Time
}

// NewContext mints the local peer identity for one session membership.
// The role is fixed here for the lifetime of the membership; there is no
// ownership transfer or re-election.
func NewContext(sessionID, name, color string, isOwner bool) *Context {
	return &Context{
		SessionID: sessionID,
		PeerID:    uuid.NewString(),
		Name:      name,
		Color:     color,
		IsOwner:   isOwner,
		JoinedAt:  time.Now(),
	}
}

// PresenceRecord builds the peer's presence record with an optional cursor
// and selection. An empty selection is omitted entirely; "no selection"
// and "zero-length selection" collapse to absent.
func (c *Context) PresenceRecord(cursor *models.CursorPosition, sel *models.SelectionRange) models.PresenceRecord {
	rec := models.PresenceRecord{
		PeerID:   c.PeerID,
		Name:     c.Name,
		Color:    c.Color,
		IsOwner:  c.IsOwner,
		Cursor:   cursor,
		OnlineAt: c.JoinedAt,
	}
	if sel != nil && sel.Start != sel.End {
		rec.Selection = sel
	}
	return rec
}
