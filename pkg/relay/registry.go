package relay

import (
	"sort"
	"sync"
)

// registry maps participant ids to their live sessions. Sharded by
// participant id so register/unregister and delivery lookups serialize per
// shard rather than globally.
const shardCount = 16

type registry struct {
	shards [shardCount]shard
}

type shard struct {
	mu       sync.RWMutex
	sessions map[int64][]*Session
}

func newRegistry() *registry {
	r := &registry{}
	for i := range r.shards {
		r.shards[i].sessions = make(map[int64][]*Session)
	}
	return r
}

func (r *registry) shardFor(participantID int64) *shard {
	return &r.shards[participantID%shardCount]
}

// add registers a session and reports whether it is the participant's first
// live session (a 0->1 presence transition).
func (r *registry) add(s *Session) (first bool) {
	sh := r.shardFor(s.ParticipantID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	existing := sh.sessions[s.ParticipantID]
	sh.sessions[s.ParticipantID] = append(existing, s)
	return len(existing) == 0
}

// remove deletes a session and reports whether it was the participant's last
// one (a 1->0 presence transition). found is false when the session was
// already removed.
func (r *registry) remove(s *Session) (last, found bool) {
	sh := r.shardFor(s.ParticipantID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	list := sh.sessions[s.ParticipantID]
	for i, cur := range list {
		if cur == s {
			list = append(list[:i], list[i+1:]...)
			found = true
			break
		}
	}
	if !found {
		return false, false
	}
	if len(list) == 0 {
		delete(sh.sessions, s.ParticipantID)
		return true, true
	}
	sh.sessions[s.ParticipantID] = list
	return false, true
}

// get returns a snapshot of the participant's live sessions.
func (r *registry) get(participantID int64) []*Session {
	sh := r.shardFor(participantID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	list := sh.sessions[participantID]
	if len(list) == 0 {
		return nil
	}
	out := make([]*Session, len(list))
	copy(out, list)
	return out
}

// all returns a snapshot of every live session.
func (r *registry) all() []*Session {
	var out []*Session
	for i := range r.shards {
		sh := &r.shards[i]
		sh.mu.RLock()
		for _, list := range sh.sessions {
			out = append(out, list...)
		}
		sh.mu.RUnlock()
	}
	return out
}

// counts returns live session and participant totals.
func (r *registry) counts() (sessions, participants int) {
	for i := range r.shards {
		sh := &r.shards[i]
		sh.mu.RLock()
		participants += len(sh.sessions)
		for _, list := range sh.sessions {
			sessions += len(list)
		}
		sh.mu.RUnlock()
	}
	return sessions, participants
}

// participants returns the sorted ids of everyone with a live session.
func (r *registry) participants() []int64 {
	out := []int64{}
	for i := range r.shards {
		sh := &r.shards[i]
		sh.mu.RLock()
		for id := range sh.sessions {
			out = append(out, id)
		}
		sh.mu.RUnlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
