package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// RemoteRunner executes code through a remote compile/execute service.
type RemoteRunner struct {
	BaseURL string
	client  *http.Client
}

// NewRemoteRunner builds a client for the service at baseURL.
func NewRemoteRunner(baseURL string) *RemoteRunner {
	return &RemoteRunner{
		BaseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type executeRequest struct {
	Language string `json:"language"`
	Code     string `json:"code"`
}

type executeResponse struct {
	Success         bool   `json:"success"`
	Output          string `json:"output"`
	Error           string `json:"error"`
	ExecutionTimeMs int64  `json:"executionTimeMs"`
}

// Run submits the code and returns the service's structured result. A
// network failure is folded into the Result rather than returned as an
// error: to the user it is just another way a run can fail.
func (r *RemoteRunner) Run(ctx context.Context, code string, language string) (Result, error) {
	reqBody, err := json.Marshal(executeRequest{Language: language, Code: code})
	if err != nil {
		return Result{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.BaseURL+"/execute", bytes.NewBuffer(reqBody))
	if err != nil {
		return Result{}, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := r.client.Do(httpReq)
	if err != nil {
		return Result{
			Success:         false,
			Error:           fmt.Sprintf("network error reaching execution service: %v", err),
			ExecutionTimeMs: time.Since(start).Milliseconds(),
		}, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return Result{
			Success:         false,
			Error:           fmt.Sprintf("execution service returned status %d: %s", resp.StatusCode, string(body)),
			ExecutionTimeMs: time.Since(start).Milliseconds(),
		}, nil
	}

	var out executeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Result{}, fmt.Errorf("failed to decode execution response: %w", err)
	}

	elapsed := out.ExecutionTimeMs
	if elapsed == 0 {
		elapsed = time.Since(start).Milliseconds()
	}
	return Result{
		Success:         out.Success,
		Output:          out.Output,
		Error:           out.Error,
		ExecutionTimeMs: elapsed,
	}, nil
}
