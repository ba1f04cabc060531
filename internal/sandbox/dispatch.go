package sandbox

import (
	"context"
	"fmt"

	"pairpad/internal/models"
)

// Dispatch routes executions: interpreted languages run locally when a
// local runner exists, compiled languages always go to the remote service.
type Dispatch struct {
	Local  Runner // nil forces everything remote
	Remote Runner // nil disables compiled languages
}

// Run executes code in the given language. An unsupported language is a
// contract violation, not a user error: the enum is closed, so reaching
// this with anything else means a caller skipped validation.
func (d *Dispatch) Run(ctx context.Context, code string, language string) (Result, error) {
	lang, err := models.ParseLanguage(language)
	if err != nil {
		return Result{}, err
	}

	switch lang {
	case models.LangJavaScript, models.LangTypeScript, models.LangPython:
		if d.Local != nil {
			return d.Local.Run(ctx, code, language)
		}
		fallthrough
	case models.LangGo, models.LangCPP:
		if d.Remote == nil {
			return Result{}, fmt.Errorf("no execution service configured for language %s", lang)
		}
		return d.Remote.Run(ctx, code, language)
	default:
		// Unreachable given the closed enum.
		return Result{}, fmt.Errorf("unsupported language %q", language)
	}
}
