package session

import (
	"errors"
	"testing"
	"time"

	"pairpad/internal/models"
)

func newDocFixture(isOwner bool, store RoomStore) (*DocumentReconciler, *models.Session, *recorderChannel) {
	ctx := &Context{SessionID: "abc123", PeerID: "self", IsOwner: isOwner}
	sess := &models.Session{ID: "abc123", Code: "initial", Language: models.LangJavaScript, Owner: isOwner}
	ch := &recorderChannel{}
	out := NewBroadcaster(ch, time.Nanosecond) // effectively unthrottled
	return NewDocumentReconciler(ctx, sess, store, out, ch), sess, ch
}

func TestSelfEchoNeverApplied(t *testing.T) {
	doc, sess, _ := newDocFixture(false, nil)

	doc.HandleEnvelope(codeEnv("from-myself", "self"))
	if sess.Code != "initial" {
		t.Fatalf("self echo mutated local state: %q", sess.Code)
	}
}

func TestViewerLocalEditRejected(t *testing.T) {
	doc, sess, ch := newDocFixture(false, nil)

	err := doc.LocalEdit("hacked")
	if !errors.Is(err, ErrReadOnly) {
		t.Fatalf("expected ErrReadOnly, got %v", err)
	}
	if sess.Code != "initial" {
		t.Fatal("viewer edit mutated the document")
	}
	if ch.count() != 0 {
		t.Fatal("viewer edit produced a broadcast")
	}
}

func TestOwnerEditPersistsAndBroadcasts(t *testing.T) {
	st := newMemStore()
	doc, sess, ch := newDocFixture(true, st)

	if err := doc.LocalEdit("edited"); err != nil {
		t.Fatal(err)
	}
	if sess.Code != "edited" {
		t.Fatalf("expected document to change, got %q", sess.Code)
	}

	rec, ok := st.Get("abc123")
	if !ok || rec.Code != "edited" || !rec.IsOwner {
		t.Fatalf("expected persisted owner snapshot, got %+v (found=%v)", rec, ok)
	}

	envs := ch.envelopes()
	if len(envs) != 1 || envs[0].Event != models.EventCodeUpdate {
		t.Fatalf("expected one code_update broadcast, got %+v", envs)
	}
	if envs[0].CodeUpdate.UpdatedBy != "self" {
		t.Fatal("broadcast must carry the local peer id")
	}
}

func TestOwnerEditPreservesCreatedAt(t *testing.T) {
	st := newMemStore()
	created := time.Now().Add(-time.Hour).Truncate(time.Second)
	st.Put(models.StoredRoom{ID: "abc123", Code: "old", Language: models.LangJavaScript, CreatedAt: created, IsOwner: true})

	doc, _, _ := newDocFixture(true, st)
	if err := doc.LocalEdit("new"); err != nil {
		t.Fatal(err)
	}

	rec, _ := st.Get("abc123")
	if !rec.CreatedAt.Equal(created) {
		t.Fatalf("creation time changed: %v != %v", rec.CreatedAt, created)
	}
}

func TestLanguageSwitchIsAtomic(t *testing.T) {
	doc, sess, ch := newDocFixture(true, newMemStore())

	if err := doc.SetLanguage(models.LangPython); err != nil {
		t.Fatal(err)
	}
	if sess.Language != models.LangPython || sess.Code != models.LangPython.StarterSnippet() {
		t.Fatalf("mismatched pair after switch: lang=%s code=%q", sess.Language, sess.Code)
	}

	envs := ch.envelopes()
	if len(envs) != 1 {
		t.Fatalf("expected a single combined broadcast, got %d", len(envs))
	}
	cu := envs[0].CodeUpdate
	if cu.Language != models.LangPython || cu.Code != models.LangPython.StarterSnippet() {
		t.Fatalf("broadcast pair is inconsistent: lang=%s code=%q", cu.Language, cu.Code)
	}
}

func TestSetLanguageRejectsUnknown(t *testing.T) {
	doc, _, ch := newDocFixture(true, nil)
	if err := doc.SetLanguage(models.Language("brainfuck")); err == nil {
		t.Fatal("expected error for unknown language")
	}
	if ch.count() != 0 {
		t.Fatal("invalid language produced a broadcast")
	}
}

func TestSyncStateRequiresFromOwner(t *testing.T) {
	doc, sess, _ := newDocFixture(false, nil)

	doc.HandleEnvelope(models.Envelope{
		Event:     models.EventSyncState,
		SyncState: &models.SyncStatePayload{Code: "forged", Language: models.LangPython},
	})
	if sess.Code != "initial" {
		t.Fatal("sync_state without fromOwner was applied")
	}

	doc.HandleEnvelope(models.Envelope{
		Event:     models.EventSyncState,
		SyncState: &models.SyncStatePayload{Code: "X", Language: models.LangPython, FromOwner: true},
	})
	if sess.Code != "X" || sess.Language != models.LangPython {
		t.Fatalf("owner sync_state not applied: code=%q lang=%s", sess.Code, sess.Language)
	}
}

func TestOwnerIgnoresSyncState(t *testing.T) {
	doc, sess, _ := newDocFixture(true, nil)
	doc.HandleEnvelope(models.Envelope{
		Event:     models.EventSyncState,
		SyncState: &models.SyncStatePayload{Code: "other", Language: models.LangPython, FromOwner: true},
	})
	if sess.Code != "initial" {
		t.Fatal("owner applied a sync_state")
	}
}

func TestOwnerAnswersRequestState(t *testing.T) {
	doc, _, ch := newDocFixture(true, nil)
	doc.SetWhiteboardProvider(func() *models.WhiteboardSnapshot {
		return &models.WhiteboardSnapshot{Shapes: []models.ShapeRecord{shape("s1", "rect", 1)}}
	})

	doc.HandleEnvelope(models.Envelope{
		Event:        models.EventRequestState,
		RequestState: &models.RequestStatePayload{UserID: "joiner"},
	})

	envs := ch.envelopes()
	if len(envs) != 1 || envs[0].Event != models.EventSyncState {
		t.Fatalf("expected one sync_state reply, got %+v", envs)
	}
	sync := envs[0].SyncState
	if !sync.FromOwner || sync.Code != "initial" {
		t.Fatalf("bad reply: %+v", sync)
	}
	if sync.Whiteboard == nil || len(sync.Whiteboard.Shapes) != 1 {
		t.Fatal("reply should include the whiteboard snapshot")
	}
}

func TestViewerIgnoresRequestState(t *testing.T) {
	doc, _, ch := newDocFixture(false, nil)
	doc.HandleEnvelope(models.Envelope{
		Event:        models.EventRequestState,
		RequestState: &models.RequestStatePayload{UserID: "joiner"},
	})
	if ch.count() != 0 {
		t.Fatal("viewer answered a request_state")
	}
}

func TestRemoteApplyIsIdempotent(t *testing.T) {
	doc, _, _ := newDocFixture(false, nil)

	changes := 0
	doc.SetOnChange(func() { changes++ })

	env := codeEnv("same", "owner")
	doc.HandleEnvelope(env)
	doc.HandleEnvelope(env)
	if changes != 1 {
		t.Fatalf("expected one applied change, got %d", changes)
	}
}

func TestViewerNeverPersists(t *testing.T) {
	st := newMemStore()
	doc, _, _ := newDocFixture(false, st)

	doc.HandleEnvelope(models.Envelope{
		Event:     models.EventSyncState,
		SyncState: &models.SyncStatePayload{Code: "X", Language: models.LangPython, FromOwner: true},
	})
	doc.HandleEnvelope(codeEnv("Y", "owner"))

	if st.size() != 0 {
		t.Fatal("viewer wrote to the session cache")
	}
}

func TestInvalidLanguageRejectsWholeUpdate(t *testing.T) {
	doc, sess, _ := newDocFixture(false, nil)

	doc.HandleEnvelope(models.Envelope{
		Event: models.EventCodeUpdate,
		CodeUpdate: &models.CodeUpdatePayload{
			Code: "print('py')", Language: "klingon", UpdatedBy: "owner",
		},
	})
	if sess.Code != "initial" || sess.Language != models.LangJavaScript {
		t.Fatalf("update with bad language half-applied: code=%q lang=%q", sess.Code, sess.Language)
	}

	doc.HandleEnvelope(models.Envelope{
		Event: models.EventSyncState,
		SyncState: &models.SyncStatePayload{
			Code: "x", Language: "klingon", FromOwner: true,
		},
	})
	if sess.Code != "initial" || sess.Language != models.LangJavaScript {
		t.Fatalf("sync with bad language half-applied: code=%q lang=%q", sess.Code, sess.Language)
	}
}
