package models

// FrameType discriminates the client<->hub websocket frames. Broadcast
// envelopes ride inside a frame; presence and subscription control frames
// live beside them.
type FrameType string

const (
	// FrameSubscribed confirms a subscription; sent hub -> client once,
	// immediately after the client is registered to its room.
	FrameSubscribed FrameType = "subscribed"
	// FrameBroadcast carries an Envelope to every other peer in the room.
	FrameBroadcast FrameType = "broadcast"
	// FrameTrack publishes the sender's presence record; client -> hub.
	FrameTrack FrameType = "track"
	// FramePresenceSync delivers the room's full presence directory,
	// self included; hub -> every client on every roster change.
	FramePresenceSync FrameType = "presence_sync"
)

// Frame is the websocket transport unit between a peer and the hub.
type Frame struct {
	Type     FrameType       `json:"type"`
	Envelope *Envelope       `json:"envelope,omitempty"`
	Presence *PresenceRecord `json:"presence,omitempty"`
	// Directory never carries omitempty: an empty roster is a meaningful
	// sync (the last other peer left) and must survive the wire.
	Directory map[string]PresenceRecord `json:"directory"`
}
