package sandbox

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRemoteRunSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/execute" {
			t.Errorf("path = %q, want /execute", r.URL.Path)
		}
		var req executeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		if req.Language != "go" || req.Code != `fmt.Println("hi")` {
			t.Errorf("request = %+v", req)
		}
		json.NewEncoder(w).Encode(executeResponse{
			Success:         true,
			Output:          "hi\n",
			ExecutionTimeMs: 12,
		})
	}))
	defer srv.Close()

	res, err := NewRemoteRunner(srv.URL).Run(context.Background(), `fmt.Println("hi")`, "go")
	if err != nil {
		t.Fatal(err)
	}
	if !res.Success || res.Output != "hi\n" || res.ExecutionTimeMs != 12 {
		t.Fatalf("result = %+v", res)
	}
}

func TestRemoteRunServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "compiler exploded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	res, err := NewRemoteRunner(srv.URL).Run(context.Background(), "x", "cpp")
	if err != nil {
		t.Fatal(err)
	}
	if res.Success {
		t.Fatal("expected failure result")
	}
	if !strings.Contains(res.Error, "500") || !strings.Contains(res.Error, "compiler exploded") {
		t.Fatalf("error = %q", res.Error)
	}
}

func TestRemoteRunNetworkErrorFoldedIntoResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // guaranteed-dead endpoint

	res, err := NewRemoteRunner(srv.URL).Run(context.Background(), "x", "go")
	if err != nil {
		t.Fatalf("network failures must not surface as errors, got %v", err)
	}
	if res.Success || res.Error == "" {
		t.Fatalf("result = %+v", res)
	}
}

func TestRemoteRunFillsMissingElapsed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(executeResponse{Success: true, Output: "ok"})
	}))
	defer srv.Close()

	res, err := NewRemoteRunner(srv.URL).Run(context.Background(), "x", "go")
	if err != nil {
		t.Fatal(err)
	}
	if res.ExecutionTimeMs < 0 {
		t.Fatalf("elapsed = %d", res.ExecutionTimeMs)
	}
}
