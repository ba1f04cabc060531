package sandbox

import (
	"context"
	"testing"
)

type fakeRunner struct {
	calls []string
	res   Result
}

func (f *fakeRunner) Run(ctx context.Context, code string, language string) (Result, error) {
	f.calls = append(f.calls, language)
	return f.res, nil
}

func TestDispatchRoutesInterpretedLocally(t *testing.T) {
	local := &fakeRunner{res: Result{Success: true}}
	remote := &fakeRunner{res: Result{Success: true}}
	d := &Dispatch{Local: local, Remote: remote}

	for _, lang := range []string{"javascript", "typescript", "python"} {
		if _, err := d.Run(context.Background(), "x", lang); err != nil {
			t.Fatal(err)
		}
	}
	if len(local.calls) != 3 || len(remote.calls) != 0 {
		t.Fatalf("local=%v remote=%v", local.calls, remote.calls)
	}
}

func TestDispatchRoutesCompiledRemotely(t *testing.T) {
	local := &fakeRunner{res: Result{Success: true}}
	remote := &fakeRunner{res: Result{Success: true}}
	d := &Dispatch{Local: local, Remote: remote}

	for _, lang := range []string{"go", "cpp"} {
		if _, err := d.Run(context.Background(), "x", lang); err != nil {
			t.Fatal(err)
		}
	}
	if len(remote.calls) != 2 || len(local.calls) != 0 {
		t.Fatalf("local=%v remote=%v", local.calls, remote.calls)
	}
}

func TestDispatchFallsBackToRemoteWithoutLocal(t *testing.T) {
	remote := &fakeRunner{res: Result{Success: true}}
	d := &Dispatch{Remote: remote}

	if _, err := d.Run(context.Background(), "x", "python"); err != nil {
		t.Fatal(err)
	}
	if len(remote.calls) != 1 {
		t.Fatalf("remote=%v", remote.calls)
	}
}

func TestDispatchRejectsUnknownLanguage(t *testing.T) {
	d := &Dispatch{Local: &fakeRunner{}, Remote: &fakeRunner{}}
	if _, err := d.Run(context.Background(), "x", "cobol"); err == nil {
		t.Fatal("expected error for unknown language")
	}
}

func TestDispatchCompiledWithoutRemoteFails(t *testing.T) {
	d := &Dispatch{Local: &fakeRunner{}}
	if _, err := d.Run(context.Background(), "x", "go"); err == nil {
		t.Fatal("expected error when no execution service is configured")
	}
}
