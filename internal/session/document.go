package session

import (
	"errors"
	"log"
	"time"

	"pairpad/internal/models"
	"pairpad/internal/transport"
)

// PlaceholderCode is what a viewer displays between subscribing and the
// owner's sync_state arriving. It must never reach the session store.
const PlaceholderCode = "// Connecting…"

// ErrReadOnly is returned when a viewer attempts a local mutation.
var ErrReadOnly = errors.New("session is read-only for viewers")

// RoomStore is the slice of the local snapshot cache the reconciler needs.
// Failures degrade to cache-miss / no-op; nothing here is fatal.
type RoomStore interface {
	Get(id string) (models.StoredRoom, bool)
	Put(rec models.StoredRoom) error
}

// DocumentReconciler merges document state under owner-authoritative
// precedence. The owner applies local edits directly, persists them and
// broadcasts; a viewer can only change through inbound broadcasts.
// All methods are invoked from the controller's dispatch path, never
// concurrently.
type DocumentReconciler struct {
	ctx   *Context
	sess  *models.Session
	store RoomStore // nil for viewers and tests without a cache
	out   *Broadcaster
	ch    transport.Channel // direct sends that must not be throttled

	// whiteboard supplies the latest canvas snapshot for sync replies.
	whiteboard func() *models.WhiteboardSnapshot
	// onChange fires after every applied document mutation (re-render hook).
	onChange func()
}

// NewDocumentReconciler wires the reconciler to its collaborators. Any of
// store, whiteboard and onChange may be nil.
func NewDocumentReconciler(ctx *Context, sess *models.Session, store RoomStore, out *Broadcaster, ch transport.Channel) *DocumentReconciler {
	return &DocumentReconciler{ctx: ctx, sess: sess, store: store, out: out, ch: ch}
}

// SetWhiteboardProvider registers the snapshot source used when answering
// request_state.
func (r *DocumentReconciler) SetWhiteboardProvider(fn func() *models.WhiteboardSnapshot) {
	r.whiteboard = fn
}

// SetOnChange registers the re-render hook.
func (r *DocumentReconciler) SetOnChange(fn func()) {
	r.onChange = fn
}

// LocalEdit applies a local document edit. Owners mutate, persist and
// broadcast; viewers are rejected outright.
func (r *DocumentReconciler) LocalEdit(code string) error {
	if !r.ctx.IsOwner {
		return ErrReadOnly
	}
	r.sess.Code = code
	r.persist()
	r.broadcastDocument()
	r.notify()
	return nil
}

// SetLanguage switches the session language. The document is reset to the
// language's starter snippet and the {code, language} pair is broadcast as
// one update; a language change without its code reset is never valid on
// the wire.
func (r *DocumentReconciler) SetLanguage(lang models.Language) error {
	if !r.ctx.IsOwner {
		return ErrReadOnly
	}
	if !lang.Valid() {
		return errors.New("unsupported language: " + string(lang))
	}
	r.sess.Language = lang
	r.sess.Code = lang.StarterSnippet()
	r.persist()
	r.broadcastDocument()
	r.notify()
	return nil
}

// RequestState asks the owner for the current session state. Called once
// by a viewer right after its subscription is confirmed.
func (r *DocumentReconciler) RequestState() {
	if r.ch == nil {
		return
	}
	r.ch.Publish(models.Envelope{
		Event:        models.EventRequestState,
		RequestState: &models.RequestStatePayload{UserID: r.ctx.PeerID},
	})
}

// HandleEnvelope applies one inbound document-protocol message. Self
// echoes, out-of-role messages and malformed payloads are dropped without
// surfacing; the session never crashes over a bad broadcast.
func (r *DocumentReconciler) HandleEnvelope(env models.Envelope) {
	if env.Sender() == r.ctx.PeerID {
		return
	}

	switch env.Event {
	case models.EventCodeUpdate:
		if env.CodeUpdate == nil {
			return
		}
		r.applyDocument(env.CodeUpdate.Code, env.CodeUpdate.Language)

	case models.EventRequestState:
		if !r.ctx.IsOwner || env.RequestState == nil {
			return
		}
		r.replyState()

	case models.EventSyncState:
		if r.ctx.IsOwner {
			return
		}
		if env.SyncState == nil || !env.SyncState.FromOwner {
			return
		}
		r.applyDocument(env.SyncState.Code, env.SyncState.Language)
	}
}

// applyDocument folds a remote snapshot into session state. An invalid
// language rejects the whole message: {code, language} travel as one pair,
// so taking the code alone would leave an inconsistent document. Applying
// the same snapshot twice is a no-op, which is what makes redelivery safe.
func (r *DocumentReconciler) applyDocument(code string, lang models.Language) {
	if !lang.Valid() {
		log.Printf("session %s: dropping update with unsupported language %q", r.sess.ID, lang)
		return
	}
	if r.sess.Code == code && r.sess.Language == lang {
		return
	}
	r.sess.Code = code
	r.sess.Language = lang
	r.notify()
}

// replyState broadcasts the owner's full state in answer to request_state.
// The reply bypasses the throttle: a joiner staring at placeholder text
// should not wait out somebody else's window.
func (r *DocumentReconciler) replyState() {
	if r.ch == nil {
		return
	}
	payload := &models.SyncStatePayload{
		Code:      r.sess.Code,
		Language:  r.sess.Language,
		FromOwner: true,
	}
	if r.whiteboard != nil {
		payload.Whiteboard = r.whiteboard()
	}
	r.ch.Publish(models.Envelope{Event: models.EventSyncState, SyncState: payload})
}

func (r *DocumentReconciler) broadcastDocument() {
	r.out.Send(models.Envelope{
		Event: models.EventCodeUpdate,
		CodeUpdate: &models.CodeUpdatePayload{
			Code:      r.sess.Code,
			Language:  r.sess.Language,
			UpdatedBy: r.ctx.PeerID,
		},
	})
}

// persist writes the owner's document to the local cache, preserving the
// original creation time. Cache failures are logged and otherwise ignored.
func (r *DocumentReconciler) persist() {
	if r.store == nil || !r.ctx.IsOwner {
		return
	}
	createdAt := time.Now()
	if prev, ok := r.store.Get(r.sess.ID); ok {
		createdAt = prev.CreatedAt
	}
	err := r.store.Put(models.StoredRoom{
		ID:        r.sess.ID,
		Code:      r.sess.Code,
		Language:  r.sess.Language,
		CreatedAt: createdAt,
		IsOwner:   true,
	})
	if err != nil {
		log.Printf("session %s: cache write failed: %v", r.sess.ID, err)
	}
}

func (r *DocumentReconciler) notify() {
	if r.onChange != nil {
		r.onChange()
	}
}
