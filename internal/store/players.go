package store

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"
)

// NoCompletions marks a player without a finished run to average.
const NoCompletions time.Duration = -1

// Player is the last observed state of a tracked player. Key is a stable
// identifier; Username is the display name and may change.
type Player struct {
	Key         string        `json:"-"`
	Seq         int64         `json:"seq"`
	Username    string        `json:"username"`
	ResetCount  int           `json:"resetCount"`
	FinishCount int           `json:"finishCount"`
	AvgFinish   time.Duration `json:"avgFinishTime"`
}

func (p Player) HasCompletions() bool { return p.AvgFinish != NoCompletions }

func (p Player) validate() error {
	if p.ResetCount < 0 || p.FinishCount < 0 {
		return fmt.Errorf("negative counters")
	}
	if p.AvgFinish < NoCompletions {
		return fmt.Errorf("invalid average %d", p.AvgFinish)
	}
	return nil
}

// PlayerStore is the single writer of the players document. Every mutation
// persists the whole mapping before returning.
type PlayerStore struct {
	st *Store

	mu      sync.Mutex
	players map[string]Player
	nextSeq int64
	loadErr error
}

func NewPlayerStore(st *Store) *PlayerStore {
	return &PlayerStore{st: st, players: map[string]Player{}, nextSeq: 1}
}

func (s *PlayerStore) Load() ([]Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	body, ok, err := s.st.readDoc(docPlayers)
	if err != nil {
		return nil, err
	}
	players := map[string]Player{}
	var maxSeq int64
	if ok {
		if err := json.Unmarshal(body, &players); err != nil {
			s.loadErr = &CorruptStateError{Document: docPlayers, Err: err}
			return nil, s.loadErr
		}
		for key, p := range players {
			if err := p.validate(); err != nil {
				s.loadErr = &CorruptStateError{Document: docPlayers, Err: fmt.Errorf("player %s: %w", key, err)}
				return nil, s.loadErr
			}
			p.Key = key
			players[key] = p
			if p.Seq > maxSeq {
				maxSeq = p.Seq
			}
		}
	}
	s.players = players
	s.nextSeq = maxSeq + 1
	s.loadErr = nil
	return s.snapshotLocked(), nil
}

// Register adds p, or refreshes the username and counters of an existing
// player with the same key. created reports whether the key was new.
func (s *PlayerStore) Register(p Player) (Player, bool, error) {
	if p.Key == "" {
		return Player{}, false, fmt.Errorf("empty player key")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return Player{}, false, s.loadErr
	}

	prev, had := s.players[p.Key]
	if had {
		p.Seq = prev.Seq
	} else {
		p.Seq = s.nextSeq
	}
	s.players[p.Key] = p
	if err := s.persistLocked(); err != nil {
		if had {
			s.players[p.Key] = prev
		} else {
			delete(s.players, p.Key)
		}
		return Player{}, false, err
	}
	if !had {
		s.nextSeq++
	}
	return p, !had, nil
}

// Update applies fn to the current record for key and persists it. It
// returns ok=false if the key is not tracked.
func (s *PlayerStore) Update(key string, fn func(p *Player)) (Player, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return Player{}, false, s.loadErr
	}

	prev, ok := s.players[key]
	if !ok {
		return Player{}, false, nil
	}
	next := prev
	fn(&next)
	next.Key, next.Seq = prev.Key, prev.Seq
	s.players[key] = next
	if err := s.persistLocked(); err != nil {
		s.players[key] = prev
		return Player{}, false, err
	}
	return next, true, nil
}

func (s *PlayerStore) Get(key string) (Player, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.players[key]
	return p, ok
}

// Snapshot returns all players in registration order.
func (s *PlayerStore) Snapshot() []Player {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *PlayerStore) snapshotLocked() []Player {
	out := make([]Player, 0, len(s.players))
	for _, p := range s.players {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Seq != out[j].Seq {
			return out[i].Seq < out[j].Seq
		}
		return out[i].Key < out[j].Key
	})
	return out
}

func (s *PlayerStore) persistLocked() error {
	body, err := json.Marshal(s.players)
	if err != nil {
		return err
	}
	return s.st.writeDoc(docPlayers, body)
}
