package world

import (
	"encoding/json"
	"time"
)

// Section names as they appear in deltas and dumps.
const (
	SectionPlayer    = "player"
	SectionLocation  = "location"
	SectionNPCs      = "npcs"
	SectionEvents    = "events"
	SectionQuests    = "quests"
	SectionWorldInfo = "world_info"
)

// Event importance levels used by the seed state and AddEvent.
const (
	ImportanceMinor = "minor"
	ImportanceMajor = "major"
)

// QuestStatusActive marks quests that appear in the summary.
const QuestStatusActive = "active"

// WorldState is the simulated world of one adventure session: the
// player, the current location, known NPCs and quests, the event log and
// free-form world metadata.
//
// A WorldState is not safe for concurrent use. Owners must serialize
// access per session.
type WorldState struct {
	player    Record
	location  Record
	npcs      *Roster
	quests    *Roster
	events    []Record
	worldInfo Record

	now func() time.Time
}

// Option configures a new WorldState.
type Option func(*WorldState)

// WithClock sets the clock used to timestamp events.
func WithClock(now func() time.Time) Option {
	return func(ws *WorldState) {
		if now != nil {
			ws.now = now
		}
	}
}

// New returns a world seeded with the starting adventure: a fresh
// wanderer at the Ancient Forest entrance, Elder Thorne, one active quest
// and the opening event.
func New(opts ...Option) *WorldState {
	ws := &WorldState{now: time.Now}
	for _, opt := range opts {
		opt(ws)
	}

	ws.player = Record{
		"name":      "Adventurer",
		"class":     "Wanderer",
		"hp":        100,
		"max_hp":    100,
		"status":    "Healthy",
		"inventory": []string{"torch", "waterskin", "rusty dagger"},
		"gold":      25,
		"level":     1,
		"traits":    []string{"brave", "curious"},
	}
	ws.location = Record{
		"name":        "Ancient Forest Entrance",
		"description": "A misty forest with towering trees and mysterious sounds",
		"visited":     true,
		"connections": []string{"deeper_forest", "village"},
	}
	ws.npcs = NewRoster(Record{
		"name":     "Elder Thorne",
		"role":     "Village Elder",
		"attitude": "friendly",
		"alive":    true,
		"location": "village",
		"met":      false,
	})
	ws.events = []Record{
		ws.newEvent("Adventure begins at the Ancient Forest entrance", ImportanceMajor),
	}
	ws.quests = NewRoster(Record{
		"name":        "Investigate the Forest",
		"description": "Explore the mysterious sounds coming from the Ancient Forest",
		"status":      QuestStatusActive,
		"objectives": []any{
			map[string]any{"task": "Enter the forest", "completed": false},
			map[string]any{"task": "Find the source of the sounds", "completed": false},
		},
	})
	ws.worldInfo = Record{
		"universe":     "Dark Fantasy",
		"danger_level": "moderate",
		"time_of_day":  "dusk",
		"weather":      "misty",
	}
	return ws
}

func (ws *WorldState) newEvent(description, importance string) Record {
	return Record{
		"timestamp":   ws.now().Format(time.RFC3339),
		"description": description,
		"importance":  importance,
	}
}

// AddEvent appends an event stamped with the world clock. An empty
// importance defaults to minor.
func (ws *WorldState) AddEvent(description, importance string) {
	if importance == "" {
		importance = ImportanceMinor
	}
	ws.events = append(ws.events, ws.newEvent(description, importance))
}

// Player returns a copy of the player section.
func (ws *WorldState) Player() Record { return ws.player.Clone() }

// Location returns a copy of the current location.
func (ws *WorldState) Location() Record { return ws.location.Clone() }

// WorldInfo returns a copy of the world metadata.
func (ws *WorldState) WorldInfo() Record { return ws.worldInfo.Clone() }

// NPCs returns copies of the known NPCs in insertion order.
func (ws *WorldState) NPCs() []Record { return ws.npcs.All() }

// NPC looks up an NPC by name.
func (ws *WorldState) NPC(name string) (Record, bool) { return ws.npcs.Get(name) }

// Quests returns copies of all quests in insertion order.
func (ws *WorldState) Quests() []Record { return ws.quests.All() }

// Quest looks up a quest by name.
func (ws *WorldState) Quest(name string) (Record, bool) { return ws.quests.Get(name) }

// Events returns copies of the event log in append order.
func (ws *WorldState) Events() []Record {
	out := make([]Record, len(ws.events))
	for i, e := range ws.events {
		out[i] = e.Clone()
	}
	return out
}

// Clone returns an independent deep copy sharing only the clock.
func (ws *WorldState) Clone() *WorldState {
	events := make([]Record, len(ws.events))
	for i, e := range ws.events {
		events[i] = e.Clone()
	}
	return &WorldState{
		player:    ws.player.Clone(),
		location:  ws.location.Clone(),
		npcs:      ws.npcs.clone(),
		quests:    ws.quests.clone(),
		events:    events,
		worldInfo: ws.worldInfo.Clone(),
		now:       ws.now,
	}
}

// Dump returns a deep copy of the whole state as plain maps and slices.
// Mutating the result never affects the world.
func (ws *WorldState) Dump() map[string]any {
	events := make([]any, len(ws.events))
	for i, e := range ws.events {
		events[i] = e.plain()
	}
	return map[string]any{
		SectionPlayer:    ws.player.plain(),
		SectionLocation:  ws.location.plain(),
		SectionNPCs:      ws.npcs.plain(),
		SectionEvents:    events,
		SectionQuests:    ws.quests.plain(),
		SectionWorldInfo: ws.worldInfo.plain(),
	}
}

type wireState struct {
	Player    Record   `json:"player"`
	Location  Record   `json:"location"`
	NPCs      *Roster  `json:"npcs"`
	Events    []Record `json:"events"`
	Quests    *Roster  `json:"quests"`
	WorldInfo Record   `json:"world_info"`
}

// MarshalJSON encodes the world using the same shape as Dump.
func (ws *WorldState) MarshalJSON() ([]byte, error) {
	events := ws.events
	if events == nil {
		events = []Record{}
	}
	return json.Marshal(wireState{
		Player:    ws.player,
		Location:  ws.location,
		NPCs:      ws.npcs,
		Events:    events,
		Quests:    ws.quests,
		WorldInfo: ws.worldInfo,
	})
}

// UnmarshalJSON decodes a dumped world. Missing sections are created
// empty so every section exists after a load.
func (ws *WorldState) UnmarshalJSON(data []byte) error {
	var wire wireState
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	if wire.Player == nil {
		wire.Player = Record{}
	}
	if wire.Location == nil {
		wire.Location = Record{}
	}
	if wire.WorldInfo == nil {
		wire.WorldInfo = Record{}
	}
	if wire.NPCs == nil {
		wire.NPCs = NewRoster()
	}
	if wire.Quests == nil {
		wire.Quests = NewRoster()
	}
	events := make([]Record, 0, len(wire.Events))
	for _, e := range wire.Events {
		if e == nil {
			e = Record{}
		}
		events = append(events, e)
	}

	now := ws.now
	if now == nil {
		now = time.Now
	}
	*ws = WorldState{
		player:    wire.Player,
		location:  wire.Location,
		npcs:      wire.NPCs,
		quests:    wire.Quests,
		events:    events,
		worldInfo: wire.WorldInfo,
		now:       now,
	}
	return nil
}
