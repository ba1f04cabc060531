package models

import (
	"crypto/rand"
	"time"
)

// Session is the live collaborative workspace state held by one peer.
// Exactly one peer per session runs with Owner=true, fixed at join time
// for the lifetime of its membership.
type Session struct {
	ID       string   `json:"id"`
	Code     string   `json:"code"`
	Language Language `json:"language"`
	Owner    bool     `json:"owner"`
}

// StoredRoom is the locally-cached snapshot of a session, keyed by session
// id. Only owners write it; viewers read it at mount purely to resolve
// ownership.
type StoredRoom struct {
	ID        string    `json:"id"`
	Code      string    `json:"code"`
	Language  Language  `json:"language"`
	CreatedAt time.Time `json:"created_at"`
	IsOwner   bool      `json:"is_owner"`
}

const sessionIDAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// NewSessionID returns an 8-character random session token.
func NewSessionID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing means the platform is broken; fall back to
		// a time-derived token rather than aborting session creation.
		now := time.Now().UnixNano()
		for i := range buf {
			buf[i] = byte(now >> (uint(i) * 8))
		}
	}
	for i, b := range buf {
		buf[i] = sessionIDAlphabet[int(b)%len(sessionIDAlphabet)]
	}
	return string(buf)
}
