package session

import (
	"fmt"
	"testing"
	"time"

	"pairpad/internal/models"
)

func codeEnv(code, by string) models.Envelope {
	return models.Envelope{
		Event: models.EventCodeUpdate,
		CodeUpdate: &models.CodeUpdatePayload{
			Code:      code,
			Language:  models.LangJavaScript,
			UpdatedBy: by,
		},
	}
}

func TestThrottleFirstSendImmediate(t *testing.T) {
	ch := &recorderChannel{}
	b := NewBroadcaster(ch, 50*time.Millisecond)
	defer b.Close()

	b.Send(codeEnv("a", "p1"))
	if ch.count() != 1 {
		t.Fatalf("expected immediate send, got %d", ch.count())
	}
}

func TestThrottleLastValueWins(t *testing.T) {
	const window = 60 * time.Millisecond
	ch := &recorderChannel{}
	b := NewBroadcaster(ch, window)
	defer b.Close()

	start := time.Now()
	for i := 0; i < 10; i++ {
		b.Send(codeEnv(fmt.Sprintf("edit-%d", i), "p1"))
	}

	time.Sleep(2 * window)
	elapsed := time.Since(start)

	envs := ch.envelopes()
	// At most ceil(elapsed/window)+1 sends for any burst.
	limit := int(elapsed/window) + 2
	if len(envs) > limit {
		t.Fatalf("expected at most %d sends, got %d", limit, len(envs))
	}
	if len(envs) < 2 {
		t.Fatalf("expected the coalesced flush to fire, got %d sends", len(envs))
	}

	first := envs[0].CodeUpdate
	last := envs[len(envs)-1].CodeUpdate
	if first.Code != "edit-0" {
		t.Fatalf("first send should be the first edit, got %q", first.Code)
	}
	if last.Code != "edit-9" {
		t.Fatalf("final send should carry the last edit, got %q", last.Code)
	}
}

func TestThrottleRestampsDeferredSend(t *testing.T) {
	const window = 50 * time.Millisecond
	ch := &recorderChannel{}
	b := NewBroadcaster(ch, window)
	defer b.Close()

	b.Send(codeEnv("a", "p1"))
	b.Send(codeEnv("b", "p1"))
	time.Sleep(2 * window)

	envs := ch.envelopes()
	if len(envs) != 2 {
		t.Fatalf("expected 2 sends, got %d", len(envs))
	}
	if envs[1].CodeUpdate.Timestamp == 0 || envs[1].CodeUpdate.Timestamp < envs[0].CodeUpdate.Timestamp {
		t.Fatalf("deferred send should carry a fresh timestamp: %d then %d",
			envs[0].CodeUpdate.Timestamp, envs[1].CodeUpdate.Timestamp)
	}
}

func TestThrottleNilChannelDropsSilently(t *testing.T) {
	b := NewBroadcaster(nil, 50*time.Millisecond)
	defer b.Close()
	b.Send(codeEnv("a", "p1")) // must not panic
}

func TestThrottleCloseCancelsPending(t *testing.T) {
	const window = 50 * time.Millisecond
	ch := &recorderChannel{}
	b := NewBroadcaster(ch, window)

	b.Send(codeEnv("a", "p1"))
	b.Send(codeEnv("b", "p1")) // parked in the pending slot
	b.Close()

	time.Sleep(2 * window)
	if ch.count() != 1 {
		t.Fatalf("pending payload escaped after Close: %d sends", ch.count())
	}
}
