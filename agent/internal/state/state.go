// Package state holds what the running agent learned from the backend.
package state

import "sync/atomic"

type State struct {
	topic      atomic.Value // string
	fleetTopic atomic.Value // string
	locked     atomic.Bool
	wiped      atomic.Bool
}

func load(v *atomic.Value) string {
	if s, ok := v.Load().(string); ok {
		return s
	}
	return ""
}

func (s *State) SetTopic(t string) { s.topic.Store(t) }
func (s *State) Topic() string     { return load(&s.topic) }

func (s *State) SetFleetTopic(t string) { s.fleetTopic.Store(t) }
func (s *State) FleetTopic() string     { return load(&s.fleetTopic) }

func (s *State) SetLocked(v bool) { s.locked.Store(v) }
func (s *State) Locked() bool     { return s.locked.Load() }

func (s *State) SetWiped(v bool) { s.wiped.Store(v) }
func (s *State) Wiped() bool     { return s.wiped.Load() }
