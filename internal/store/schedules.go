package store

import (
	"encoding/json"
	"fmt"
	"sync"
)

// Schedule is a group's daily delivery time in the bot's time zone.
// Target is an opaque destination understood only by the notifier.
type Schedule struct {
	Hour   int    `json:"hour"`
	Minute int    `json:"minute"`
	Target string `json:"deliveryTarget"`
}

func (s Schedule) Validate() error {
	if s.Hour < 0 || s.Hour > 23 {
		return fmt.Errorf("%w: hour %d out of range", ErrInvalidSchedule, s.Hour)
	}
	if s.Minute < 0 || s.Minute > 59 {
		return fmt.Errorf("%w: minute %d out of range", ErrInvalidSchedule, s.Minute)
	}
	if s.Target == "" {
		return fmt.Errorf("%w: empty delivery target", ErrInvalidSchedule)
	}
	return nil
}

// ScheduleStore is the single writer of the schedules document.
type ScheduleStore struct {
	st *Store

	mu      sync.Mutex
	recs    map[string]Schedule
	loadErr error
}

func NewScheduleStore(st *Store) *ScheduleStore {
	return &ScheduleStore{st: st, recs: map[string]Schedule{}}
}

// Load replaces the in-memory mapping with the persisted one. A missing
// document yields an empty mapping.
func (s *ScheduleStore) Load() (map[string]Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	body, ok, err := s.st.readDoc(docSchedules)
	if err != nil {
		return nil, err
	}
	recs := map[string]Schedule{}
	if ok {
		if err := json.Unmarshal(body, &recs); err != nil {
			s.loadErr = &CorruptStateError{Document: docSchedules, Err: err}
			return nil, s.loadErr
		}
		for group, rec := range recs {
			if err := rec.Validate(); err != nil {
				s.loadErr = &CorruptStateError{Document: docSchedules, Err: fmt.Errorf("group %s: %w", group, err)}
				return nil, s.loadErr
			}
		}
	}
	s.recs = recs
	s.loadErr = nil
	return copySchedules(recs), nil
}

// Upsert sets the record for group and persists the whole mapping. The
// in-memory change is rolled back if the write fails.
func (s *ScheduleStore) Upsert(group string, rec Schedule) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return s.loadErr
	}

	prev, had := s.recs[group]
	s.recs[group] = rec
	if err := s.persistLocked(); err != nil {
		if had {
			s.recs[group] = prev
		} else {
			delete(s.recs, group)
		}
		return err
	}
	return nil
}

// Remove deletes the record for group. Removing an absent group is not an
// error.
func (s *ScheduleStore) Remove(group string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return s.loadErr
	}

	prev, had := s.recs[group]
	if !had {
		return nil
	}
	delete(s.recs, group)
	if err := s.persistLocked(); err != nil {
		s.recs[group] = prev
		return err
	}
	return nil
}

func (s *ScheduleStore) Get(group string) (Schedule, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recs[group]
	return rec, ok
}

func (s *ScheduleStore) Snapshot() map[string]Schedule {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copySchedules(s.recs)
}

func (s *ScheduleStore) persistLocked() error {
	body, err := json.Marshal(s.recs)
	if err != nil {
		return err
	}
	return s.st.writeDoc(docSchedules, body)
}

func copySchedules(in map[string]Schedule) map[string]Schedule {
	out := make(map[string]Schedule, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
