package session

import (
	"sort"
	"sync"

	"pairpad/internal/models"
)

// Directory is the live roster of connected peers, excluding self. Each
// directory sync is a full replace, never a merge: the transport delivers
// complete state every time, so incremental bookkeeping would only invite
// drift.
type Directory struct {
	mu        sync.Mutex
	selfID    string
	peers     map[string]models.PresenceRecord
	connected int
}

// NewDirectory creates an empty roster for the local peer selfID.
func NewDirectory(selfID string) *Directory {
	return &Directory{
		selfID: selfID,
		peers:  make(map[string]models.PresenceRecord),
	}
}

// Replace rebuilds the roster from a full directory snapshot. The local
// peer is excluded unconditionally; the connected count still includes it
// because the snapshot does.
func (d *Directory) Replace(snapshot map[string]models.PresenceRecord) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.connected = len(snapshot)
	d.peers = make(map[string]models.PresenceRecord, len(snapshot))
	for id, rec := range snapshot {
		if id == d.selfID {
			continue
		}
		d.peers[id] = rec
	}
}

// Peers returns the remote peers ordered by id for stable rendering.
func (d *Directory) Peers() []models.PresenceRecord {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]models.PresenceRecord, 0, len(d.peers))
	for _, rec := range d.peers {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PeerID < out[j].PeerID })
	return out
}

// Peer looks up a single remote peer.
func (d *Directory) Peer(id string) (models.PresenceRecord, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	rec, ok := d.peers[id]
	return rec, ok
}

// ConnectedCount is the size of the full directory, self included.
func (d *Directory) ConnectedCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.connected
}
