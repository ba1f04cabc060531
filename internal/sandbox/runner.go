// Package sandbox executes session code outside the reconciliation core:
// interpreted languages through a local interpreter, compiled ones through
// a remote compile/execute service. Both produce the same structured
// result; the only difference is latency and failure modes.
package sandbox

import (
	"context"
	"strings"
)

// Result is the structured outcome of one execution. Sandbox failures of
// every kind — compile error, runtime exception, network failure reaching
// the remote service — come back here, never as a panic.
type Result struct {
	Success         bool   `json:"success"`
	Output          string `json:"output,omitempty"`
	Error           string `json:"error,omitempty"`
	ExecutionTimeMs int64  `json:"executionTimeMs,omitempty"`
}

// Runner executes code in one of the supported languages.
type Runner interface {
	Run(ctx context.Context, code string, language string) (Result, error)
}

// LineKind categorizes an output line for display styling.
type LineKind string

const (
	LineInfo  LineKind = "info"
	LineWarn  LineKind = "warn"
	LineError LineKind = "error"
)

// ClassifyLine tags an output line by its apparent severity.
func ClassifyLine(line string) LineKind {
	lower := strings.ToLower(strings.TrimSpace(line))
	switch {
	case strings.Contains(lower, "error"), strings.Contains(lower, "exception"),
		strings.Contains(lower, "traceback"), strings.Contains(lower, "panic"):
		return LineError
	case strings.Contains(lower, "warn"):
		return LineWarn
	default:
		return LineInfo
	}
}

// Lines splits an execution result into categorized display lines. The
// error stream, when present, is appended after the output.
func (r Result) Lines() []OutputLine {
	var lines []OutputLine
	for _, l := range splitLines(r.Output) {
		lines = append(lines, OutputLine{Text: l, Kind: ClassifyLine(l)})
	}
	for _, l := range splitLines(r.Error) {
		lines = append(lines, OutputLine{Text: l, Kind: LineError})
	}
	return lines
}

// OutputLine is one display line of execution output.
type OutputLine struct {
	Text string   `json:"text"`
	Kind LineKind `json:"kind"`
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(strings.TrimRight(s, "\n"), "\n")
}
