package sandbox

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"pairpad/internal/models"
)

// LocalRunner executes interpreted languages through an interpreter on the
// local machine, the in-process equivalent of the browser-native path.
type LocalRunner struct {
	// Timeout bounds one execution wall-clock.
	Timeout time.Duration
}

// NewLocalRunner builds a runner with a 10 second execution cap.
func NewLocalRunner() *LocalRunner {
	return &LocalRunner{Timeout: 10 * time.Second}
}

// interpreterFor maps an interpreted language onto its command line.
func interpreterFor(lang models.Language, code string) (string, []string, bool) {
	switch lang {
	case models.LangJavaScript:
		return "node", []string{"-e", code}, true
	case models.LangTypeScript:
		return "npx", []string{"-y", "tsx", "-e", code}, true
	case models.LangPython:
		return "python3", []string{"-c", code}, true
	default:
		return "", nil, false
	}
}

// Run executes the code and captures combined output. Interpreter exit
// failures become structured results; only contract violations (a language
// this runner was never meant to see) surface as errors.
func (l *LocalRunner) Run(ctx context.Context, code string, language string) (Result, error) {
	lang, err := models.ParseLanguage(language)
	if err != nil {
		return Result{}, err
	}
	bin, args, ok := interpreterFor(lang, code)
	if !ok {
		return Result{}, fmt.Errorf("language %s has no local interpreter", lang)
	}

	runCtx, cancel := context.WithTimeout(ctx, l.Timeout)
	defer cancel()

	start := time.Now()
	out, err := exec.CommandContext(runCtx, bin, args...).CombinedOutput()
	elapsed := time.Since(start).Milliseconds()

	if runCtx.Err() == context.DeadlineExceeded {
		return Result{
			Success:         false,
			Output:          string(out),
			Error:           fmt.Sprintf("execution timed out after %s", l.Timeout),
			ExecutionTimeMs: elapsed,
		}, nil
	}
	if err != nil {
		return Result{
			Success:         false,
			Output:          string(out),
			Error:           err.Error(),
			ExecutionTimeMs: elapsed,
		}, nil
	}
	return Result{
		Success:         true,
		Output:          string(out),
		ExecutionTimeMs: elapsed,
	}, nil
}
