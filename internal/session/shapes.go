package session

import (
	"bytes"
	"sync"
	"time"

	"pairpad/internal/models"
)

// DefaultShapeQuietPeriod is how long local shape edits must settle before
// an outbound snapshot is serialized. Distinct from the broadcaster's
// throttle: this batches a drag gesture into one message.
const DefaultShapeQuietPeriod = 100 * time.Millisecond

// Canvas is the drawing surface the reconciler mutates. Batch exists to
// avoid intermediate re-renders while a diff is applied; implementations
// without transactional batching just invoke fn directly.
type Canvas interface {
	Shapes() []models.ShapeRecord
	CreateShape(models.ShapeRecord)
	UpdateShape(models.ShapeRecord)
	DeleteShape(id string)
	Batch(fn func())
}

// ShapeDiff is the minimal mutation set turning one snapshot into another.
type ShapeDiff struct {
	ToDelete []string
	ToCreate []models.ShapeRecord
	ToUpdate []models.ShapeRecord
}

// Empty reports whether applying the diff would mutate nothing.
func (d ShapeDiff) Empty() bool {
	return len(d.ToDelete) == 0 && len(d.ToCreate) == 0 && len(d.ToUpdate) == 0
}

// DiffShapes compares two shape collections by stable identifier. Shapes
// present in both sides count as updates only when their serialized values
// differ; identical shapes trigger no mutation at all.
func DiffShapes(local, remote []models.ShapeRecord) ShapeDiff {
	localByID := make(map[string]models.ShapeRecord, len(local))
	for _, s := range local {
		localByID[s.ID] = s
	}
	remoteByID := make(map[string]models.ShapeRecord, len(remote))
	for _, s := range remote {
		remoteByID[s.ID] = s
	}

	var diff ShapeDiff
	for _, s := range local {
		if _, ok := remoteByID[s.ID]; !ok {
			diff.ToDelete = append(diff.ToDelete, s.ID)
		}
	}
	for _, s := range remote {
		cur, ok := localByID[s.ID]
		if !ok {
			diff.ToCreate = append(diff.ToCreate, s)
			continue
		}
		if !cur.Equal(s) {
			diff.ToUpdate = append(diff.ToUpdate, s)
		}
	}
	return diff
}

// applyState is the reconciler's re-entrancy state machine. While a remote
// snapshot is being applied, local-change detection is suppressed;
// otherwise the apply would re-broadcast the just-received state and two
// peers would mirror each other forever.
type applyState int

const (
	stateIdle applyState = iota
	stateApplyingRemote
)

// ShapeReconciler keeps the local canvas converged with remote snapshots
// and debounces local mutations into outbound snapshots. Like the document
// reconciler it runs on the controller's dispatch path; only the debounce
// timer fires from outside, and flush re-checks everything it needs.
type ShapeReconciler struct {
	ctx    *Context
	canvas Canvas
	out    *Broadcaster

	state    applyState
	quiet    time.Duration
	debounce Timer
	lastSent []byte // serialized form of the last outbound snapshot

	// flushLock, when set, serializes the debounce fire with the owning
	// controller's dispatch, since flush reads the canvas from a timer
	// goroutine.
	flushLock sync.Locker
}

// SetFlushLock makes the debounce fire take l before touching the canvas.
func (r *ShapeReconciler) SetFlushLock(l sync.Locker) {
	r.flushLock = l
}

// NewShapeReconciler wires the reconciler to a canvas and the outbound
// broadcaster. A zero quiet period selects the default.
func NewShapeReconciler(ctx *Context, canvas Canvas, out *Broadcaster, quiet time.Duration) *ShapeReconciler {
	if quiet <= 0 {
		quiet = DefaultShapeQuietPeriod
	}
	return &ShapeReconciler{ctx: ctx, canvas: canvas, out: out, quiet: quiet}
}

// HandleEnvelope applies inbound canvas state: whiteboard_update from any
// peer but self, and the whiteboard piggybacked on an owner's sync_state
// when running as viewer. Everything else is ignored.
func (r *ShapeReconciler) HandleEnvelope(env models.Envelope) {
	switch env.Event {
	case models.EventWhiteboardUpdate:
		if env.WhiteboardUpdate == nil || env.WhiteboardUpdate.UpdatedBy == r.ctx.PeerID {
			return
		}
		r.ApplyRemote(env.WhiteboardUpdate.Snapshot)
	case models.EventSyncState:
		if r.ctx.IsOwner {
			return
		}
		if env.SyncState == nil || !env.SyncState.FromOwner || env.SyncState.Whiteboard == nil {
			return
		}
		r.ApplyRemote(*env.SyncState.Whiteboard)
	}
}

// ApplyRemote reconciles the canvas with a remote snapshot: deletions,
// then creations, then updates, as one batch. Returns the diff that was
// applied; an identical snapshot yields an empty diff and zero mutations.
func (r *ShapeReconciler) ApplyRemote(snapshot models.WhiteboardSnapshot) ShapeDiff {
	diff := DiffShapes(r.canvas.Shapes(), snapshot.Shapes)
	if diff.Empty() {
		return diff
	}

	r.state = stateApplyingRemote
	defer func() { r.state = stateIdle }()

	r.canvas.Batch(func() {
		for _, id := range diff.ToDelete {
			r.canvas.DeleteShape(id)
		}
		for _, s := range diff.ToCreate {
			r.canvas.CreateShape(s)
		}
		for _, s := range diff.ToUpdate {
			r.canvas.UpdateShape(s)
		}
	})

	// The canvas now mirrors the remote peer; rebroadcasting it would
	// only bounce the snapshot back.
	r.lastSent = snapshot.Serialize()
	return diff
}

// LocalChanged is the canvas change listener. Suppressed while a remote
// apply is in flight; otherwise it (re)arms the quiet-period debounce.
func (r *ShapeReconciler) LocalChanged() {
	if r.state == stateApplyingRemote {
		return
	}
	r.debounce.Schedule(r.quiet, r.flush)
}

// flush serializes the canvas and broadcasts it, but only when the shape
// set actually differs from the last snapshot sent.
func (r *ShapeReconciler) flush() {
	if r.flushLock != nil {
		r.flushLock.Lock()
		defer r.flushLock.Unlock()
	}
	snapshot := models.WhiteboardSnapshot{Shapes: r.canvas.Shapes()}
	serialized := snapshot.Serialize()
	if bytes.Equal(serialized, r.lastSent) {
		return
	}
	r.lastSent = serialized
	r.out.Send(models.Envelope{
		Event: models.EventWhiteboardUpdate,
		WhiteboardUpdate: &models.WhiteboardUpdatePayload{
			Snapshot:  snapshot,
			UpdatedBy: r.ctx.PeerID,
		},
	})
}

// Snapshot returns the current canvas state for owner sync replies.
func (r *ShapeReconciler) Snapshot() *models.WhiteboardSnapshot {
	return &models.WhiteboardSnapshot{Shapes: r.canvas.Shapes()}
}

// Close cancels the pending debounce fire.
func (r *ShapeReconciler) Close() {
	r.debounce.Dispose()
}
