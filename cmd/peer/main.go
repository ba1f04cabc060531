package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"pairpad/internal/config"
	"pairpad/internal/models"
	"pairpad/internal/sandbox"
	"pairpad/internal/session"
	"pairpad/internal/store"
	"pairpad/internal/transport"
)

func main() {
	sessionID := flag.String("session", "", "session id to join; empty creates a new session")
	name := flag.String("name", "anonymous", "display name")
	color := flag.String("color", "#4f8ef7", "cursor color")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	var cache session.RoomStore
	if err := os.MkdirAll(filepath.Dir(cfg.StorePath), 0o755); err == nil {
		if st, err := store.Open(cfg.StorePath); err == nil {
			defer st.Close()
			cache = st
		} else {
			// A broken cache only costs reload continuity.
			log.Printf("session cache unavailable: %v", err)
		}
	}

	ctrl, err := session.NewController(session.Options{
		SessionID: *sessionID,
		Name:      *name,
		Color:     *color,
		Store:     cache,
		Channel: func(sessionID, peerID string, h transport.Handlers) transport.Channel {
			return transport.NewWebsocketChannel(cfg.HubURL, sessionID, peerID, h)
		},
		ThrottleWindow:   cfg.ThrottleWindow,
		ShapeQuietPeriod: cfg.ShapeQuiet,
	})
	if err != nil {
		log.Fatalf("failed to create session: %v", err)
	}

	startCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	err = ctrl.Start(startCtx)
	cancel()
	if err != nil {
		log.Fatalf("failed to start session: %v", err)
	}
	defer ctrl.Close()

	runner := &sandbox.Dispatch{Local: sandbox.NewLocalRunner()}
	if cfg.SandboxURL != "" {
		runner.Remote = sandbox.NewRemoteRunner(cfg.SandboxURL)
	}

	sess := ctrl.Session()
	role := "viewer"
	if ctrl.IsOwner() {
		role = "owner"
	}
	fmt.Printf("session %s (%s, %s)\n", sess.ID, role, sess.Language)
	fmt.Println("commands: :code :lang <language> :run :peers :quit — anything else appends a line")

	repl(ctrl, runner)
}

func repl(ctrl *session.Controller, runner *sandbox.Dispatch) {
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		line := scanner.Text()

		switch {
		case line == ":quit":
			return

		case line == ":code":
			fmt.Println(ctrl.Session().Code)

		case strings.HasPrefix(line, ":lang "):
			lang, err := models.ParseLanguage(strings.TrimSpace(strings.TrimPrefix(line, ":lang ")))
			if err != nil {
				fmt.Println(err)
				continue
			}
			if err := ctrl.SetLanguage(lang); err != nil {
				fmt.Println(err)
			}

		case line == ":run":
			sess := ctrl.Session()
			ctx, cancel := context.WithTimeout(context.Background(), 45*time.Second)
			result, err := runner.Run(ctx, sess.Code, string(sess.Language))
			cancel()
			if err != nil {
				fmt.Printf("run failed: %v\n", err)
				continue
			}
			for _, out := range result.Lines() {
				fmt.Printf("[%s] %s\n", out.Kind, out.Text)
			}
			fmt.Printf("(%dms, success=%v)\n", result.ExecutionTimeMs, result.Success)

		case line == ":peers":
			fmt.Printf("%d connected\n", ctrl.ConnectedCount())
			for _, p := range ctrl.Peers() {
				marker := ""
				if p.IsOwner {
					marker = " (owner)"
				}
				fmt.Printf("  %s%s\n", p.Name, marker)
			}

		default:
			if err := ctrl.Edit(ctrl.Session().Code + line + "\n"); err != nil {
				fmt.Println(err)
			}
		}
	}
}
