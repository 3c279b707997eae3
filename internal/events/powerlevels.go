package events

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// DefaultLevels are the power levels applied when a room or user has no
// explicit entry.
type DefaultLevels struct {
	Ban           int `json:"ban"`
	Invite        int `json:"invite"`
	Kick          int `json:"kick"`
	Redact        int `json:"redact"`
	StateDefault  int `json:"state_default"`
	EventsDefault int `json:"events_default"`
	UsersDefault  int `json:"users_default"`
}

// NewDefaultLevels returns the protocol's baseline levels.
func NewDefaultLevels() DefaultLevels {
	return DefaultLevels{Ban: 50, Invite: 50, Kick: 50, Redact: 50}
}

// PowerLevels is a room's permission table.
type PowerLevels struct {
	Defaults DefaultLevels
	Users    map[string]int
	Events   map[string]int
}

// NewPowerLevels returns a table with baseline defaults and empty maps.
func NewPowerLevels() *PowerLevels {
	return &PowerLevels{
		Defaults: NewDefaultLevels(),
		Users:    make(map[string]int),
		Events:   make(map[string]int),
	}
}

// UserLevel returns the level for userID, falling back to the default.
func (p *PowerLevels) UserLevel(userID string) int {
	if lvl, ok := p.Users[userID]; ok {
		return lvl
	}
	return p.Defaults.UsersDefault
}

// Update merges another table into this one: defaults are replaced, user
// and event entries are overlaid. A nil update is rejected rather than
// ignored, so a caller feeding a failed parse through here finds out.
func (p *PowerLevels) Update(other *PowerLevels) error {
	if other == nil {
		return errors.New("power levels update is nil")
	}
	p.Defaults = other.Defaults
	if p.Users == nil {
		p.Users = make(map[string]int)
	}
	if p.Events == nil {
		p.Events = make(map[string]int)
	}
	for u, lvl := range other.Users {
		p.Users[u] = lvl
	}
	for e, lvl := range other.Events {
		p.Events[e] = lvl
	}
	return nil
}

// PowerLevelsEvent is an m.room.power_levels state event.
type PowerLevelsEvent struct {
	EventID   string
	Sender    string
	Timestamp int64
	Levels    *PowerLevels
}

func parsePowerLevels(env envelope, raw json.RawMessage) Event {
	var content struct {
		DefaultLevels
		Users  map[string]int `json:"users"`
		Events map[string]int `json:"events"`
	}
	if err := json.Unmarshal(env.Content, &content); err != nil || content.Users == nil {
		return bad(env, raw)
	}
	levels := &PowerLevels{
		Defaults: content.DefaultLevels,
		Users:    content.Users,
		Events:   content.Events,
	}
	if levels.Events == nil {
		levels.Events = make(map[string]int)
	}
	return PowerLevelsEvent{
		EventID:   env.EventID,
		Sender:    env.Sender,
		Timestamp: env.Timestamp,
		Levels:    levels,
	}
}
