// Package transport defines the pub/sub channel boundary the session core
// talks through, plus two implementations: a websocket client for the relay
// hub and an in-process broker for tests and single-machine demos.
//
// The channel is deliberately weak: topic-scoped publish with best-effort
// delivery and no ordering guarantee, plus a presence directory that is
// always delivered as a full snapshot. The reconciliation layer above is
// written to tolerate exactly that.
package transport

import (
	"context"

	"pairpad/internal/models"
)

// Handlers are the inbound callbacks a channel invokes. Both are invoked
// from a single goroutine per channel, never concurrently with each other,
// so handler code needs no internal ordering defenses.
type Handlers struct {
	// OnEnvelope receives every broadcast published to the topic.
	// Depending on the broker, the sender's own envelopes may or may not
	// be redelivered; callers must suppress self-echo regardless.
	OnEnvelope func(models.Envelope)
	// OnPresence receives the full presence directory, self included,
	// on every roster change.
	OnPresence func(map[string]models.PresenceRecord)
}

// Channel is one peer's handle onto a session topic.
type Channel interface {
	// Subscribe attaches to the topic and returns once the broker has
	// confirmed the subscription. Only one subscription per channel is
	// ever active; a second Subscribe first tears down the prior one.
	Subscribe(ctx context.Context) error

	// Publish broadcasts an envelope to the topic. Best effort: a send
	// failure or an unconnected channel is not reported as an error to
	// the reconciliation layer, which would have nothing to do with it.
	Publish(env models.Envelope) error

	// Track publishes the local peer's presence record through the
	// broker's presence primitive (not the broadcast stream).
	Track(rec models.PresenceRecord) error

	// Close detaches from the topic. Safe to call more than once, and
	// safe to race with a timer-driven Publish: publishing on a closed
	// channel is a silent no-op.
	Close() error
}
