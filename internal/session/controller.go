package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"pairpad/internal/models"
	"pairpad/internal/transport"
)

// State is the controller's lifecycle position.
type State int

const (
	StateUninitialized State = iota
	StateInitializing
	StateOwnerActive
	StateViewerActive
	StateTornDown
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateOwnerActive:
		return "owner-active"
	case StateViewerActive:
		return "viewer-active"
	case StateTornDown:
		return "torn-down"
	default:
		return "unknown"
	}
}

// DefaultLanguage is what a freshly created session starts in.
const DefaultLanguage = models.LangJavaScript

// ChannelFactory builds the transport channel for a session topic. The
// controller owns the returned channel exclusively and hands it by
// reference to the broadcaster and reconcilers.
type ChannelFactory func(sessionID, peerID string, h transport.Handlers) transport.Channel

// Options configure one session membership.
type Options struct {
	// SessionID joins an existing session; empty creates a new one as
	// owner.
	SessionID string
	Name      string
	Color     string

	Channel ChannelFactory
	Store   RoomStore     // nil disables the local snapshot cache
	Canvas  *MemoryCanvas // nil allocates a fresh canvas

	ThrottleWindow   time.Duration
	ShapeQuietPeriod time.Duration

	// OnChange fires after every applied document mutation.
	OnChange func()
}

// Controller orchestrates one session membership: create-vs-join
// resolution, role assignment, component wiring and teardown. All shared
// session state is mutated under one mutex, giving the same no-interleave
// guarantee the protocol was designed around.
type Controller struct {
	mu    sync.Mutex
	state State

	opts   Options
	ctx    *Context
	sess   *models.Session
	ch     transport.Channel
	out    *Broadcaster
	doc    *DocumentReconciler
	shapes *ShapeReconciler
	dir    *Directory
	canvas *MemoryCanvas
}

// NewController prepares an uninitialized controller; Start does the work.
func NewController(opts Options) (*Controller, error) {
	if opts.Channel == nil {
		return nil, errors.New("session: channel factory is required")
	}
	return &Controller{opts: opts, state: StateUninitialized}, nil
}

// Start resolves ownership, wires the components and subscribes to the
// transport. For a viewer it also fires the single request_state of the
// join handshake. Ownership resolution:
//
//   - no session id: create a new session as owner and persist it;
//   - session id cached as owned-by-self: resume as owner from the cache,
//     no handshake (page-reload continuity);
//   - anything else: join as viewer showing placeholder content.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateUninitialized {
		c.mu.Unlock()
		return fmt.Errorf("session: cannot start from state %s", c.state)
	}
	c.state = StateInitializing

	sess, isOwner := c.resolve()
	c.sess = sess
	c.ctx = NewContext(sess.ID, c.opts.Name, c.opts.Color, isOwner)

	c.canvas = c.opts.Canvas
	if c.canvas == nil {
		c.canvas = NewMemoryCanvas()
	}

	c.ch = c.opts.Channel(sess.ID, c.ctx.PeerID, transport.Handlers{
		OnEnvelope: c.handleEnvelope,
		OnPresence: c.handlePresence,
	})
	c.out = NewBroadcaster(c.ch, c.opts.ThrottleWindow)
	c.dir = NewDirectory(c.ctx.PeerID)

	c.doc = NewDocumentReconciler(c.ctx, c.sess, c.opts.Store, c.out, c.ch)
	c.shapes = NewShapeReconciler(c.ctx, c.canvas, c.out, c.opts.ShapeQuietPeriod)
	c.shapes.SetFlushLock(&c.mu)
	c.canvas.SetOnChange(c.shapes.LocalChanged)
	c.doc.SetWhiteboardProvider(c.shapes.Snapshot)
	c.doc.SetOnChange(c.opts.OnChange)

	if isOwner {
		c.doc.persist()
	}
	c.mu.Unlock()

	// Subscribe outside the lock: it blocks until the broker confirms,
	// and confirmation may arrive interleaved with presence callbacks.
	if err := c.ch.Subscribe(ctx); err != nil {
		c.mu.Lock()
		c.state = StateTornDown
		c.mu.Unlock()
		return fmt.Errorf("session %s: subscribe failed: %w", sess.ID, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateInitializing {
		// Torn down while subscribing.
		return errors.New("session: closed during start")
	}

	c.ch.Track(c.ctx.PresenceRecord(nil, nil))
	if isOwner {
		c.state = StateOwnerActive
		log.Printf("session %s: active as owner", sess.ID)
	} else {
		c.state = StateViewerActive
		c.doc.RequestState()
		log.Printf("session %s: active as viewer", sess.ID)
	}
	return nil
}

// resolve decides create-vs-join and the initial document content.
func (c *Controller) resolve() (*models.Session, bool) {
	if c.opts.SessionID == "" {
		return &models.Session{
			ID:       models.NewSessionID(),
			Code:     DefaultLanguage.StarterSnippet(),
			Language: DefaultLanguage,
			Owner:    true,
		}, true
	}

	if c.opts.Store != nil {
		if rec, ok := c.opts.Store.Get(c.opts.SessionID); ok && rec.IsOwner {
			return &models.Session{
				ID:       rec.ID,
				Code:     rec.Code,
				Language: rec.Language,
				Owner:    true,
			}, true
		}
	}

	// Placeholder until the owner's sync_state arrives. Viewers never
	// persist, so this text cannot leak into the cache.
	return &models.Session{
		ID:       c.opts.SessionID,
		Code:     PlaceholderCode,
		Language: DefaultLanguage,
		Owner:    false,
	}, false
}

// handleEnvelope is the single inbound dispatch point for broadcasts.
func (c *Controller) handleEnvelope(env models.Envelope) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateOwnerActive && c.state != StateViewerActive && c.state != StateInitializing {
		return
	}
	c.doc.HandleEnvelope(env)
	c.shapes.HandleEnvelope(env)
}

// handlePresence rebuilds the roster from a full directory snapshot.
func (c *Controller) handlePresence(dir map[string]models.PresenceRecord) {
	c.mu.Lock()
	torn := c.state == StateTornDown
	c.mu.Unlock()
	if torn {
		return
	}
	c.dir.Replace(dir)
}

// Edit applies a local document edit; viewers get ErrReadOnly.
func (c *Controller) Edit(code string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireActive(); err != nil {
		return err
	}
	return c.doc.LocalEdit(code)
}

// SetLanguage switches language, resetting the document to the new
// language's starter snippet in the same update.
func (c *Controller) SetLanguage(lang models.Language) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireActive(); err != nil {
		return err
	}
	return c.doc.SetLanguage(lang)
}

// PublishCursor tracks the local cursor, and selection when non-empty,
// through the presence primitive.
func (c *Controller) PublishCursor(cursor *models.CursorPosition, sel *models.SelectionRange) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.requireActive() != nil {
		return
	}
	c.ch.Track(c.ctx.PresenceRecord(cursor, sel))
}

// MutateCanvas runs fn against the drawing surface under the session's
// dispatch lock, so local drawing never interleaves with an inbound
// snapshot apply. Mutations flow through the shape reconciler's debounced
// change detection automatically.
func (c *Controller) MutateCanvas(fn func(Canvas)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(c.canvas)
}

// Shapes returns the current canvas content.
func (c *Controller) Shapes() []models.ShapeRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.canvas == nil {
		return nil
	}
	return c.canvas.Shapes()
}

// Session returns a copy of the current document state.
func (c *Controller) Session() models.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil {
		return models.Session{}
	}
	return *c.sess
}

// Peers lists the remote peers currently in the session.
func (c *Controller) Peers() []models.PresenceRecord {
	if c.dir == nil {
		return nil
	}
	return c.dir.Peers()
}

// ConnectedCount is the full roster size, self included.
func (c *Controller) ConnectedCount() int {
	if c.dir == nil {
		return 0
	}
	return c.dir.ConnectedCount()
}

// State reports the lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsOwner reports the role fixed at join time.
func (c *Controller) IsOwner() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ctx != nil && c.ctx.IsOwner
}

func (c *Controller) requireActive() error {
	if c.state != StateOwnerActive && c.state != StateViewerActive {
		return fmt.Errorf("session: not active (state %s)", c.state)
	}
	return nil
}

// Close tears the session down: pending timers are cancelled before the
// channel goes away so no stale fire ever hits a dead handle, and the
// subscription is dropped. No leave message is sent; peers learn of the
// departure from the presence directory.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.state == StateTornDown || c.state == StateUninitialized {
		c.state = StateTornDown
		c.mu.Unlock()
		return nil
	}
	c.state = StateTornDown
	out, shapes, ch := c.out, c.shapes, c.ch
	c.mu.Unlock()

	if out != nil {
		out.Close()
	}
	if shapes != nil {
		shapes.Close()
	}
	if ch != nil {
		return ch.Close()
	}
	return nil
}
