package world

import (
	"fmt"
	"strings"
)

// RecentEventLimit is how many of the latest events Summarize includes.
const RecentEventLimit = 3

// CharacterSheet is the player section formatted for display.
type CharacterSheet struct {
	Name      string   `json:"name"`
	Class     string   `json:"class"`
	Level     string   `json:"level"`
	HP        string   `json:"hp"` // "current/max"
	Status    string   `json:"status"`
	Gold      string   `json:"gold"`
	Inventory []string `json:"inventory"`
	Traits    []string `json:"traits"`
}

// CharacterSheet returns the player's display sheet.
func (ws *WorldState) CharacterSheet() CharacterSheet {
	p := ws.player
	return CharacterSheet{
		Name:      p.String("name"),
		Class:     p.String("class"),
		Level:     p.String("level"),
		HP:        p.String("hp") + "/" + p.String("max_hp"),
		Status:    p.String("status"),
		Gold:      p.String("gold"),
		Inventory: p.Strings("inventory"),
		Traits:    p.Strings("traits"),
	}
}

// ActiveQuests returns copies of the quests whose status is active.
func (ws *WorldState) ActiveQuests() []Record {
	var out []Record
	for _, q := range ws.quests.records {
		if status, _ := q["status"].(string); status == QuestStatusActive {
			out = append(out, q.Clone())
		}
	}
	return out
}

// RecentEvents returns copies of the last n events, oldest first.
func (ws *WorldState) RecentEvents(n int) []Record {
	if n <= 0 {
		return nil
	}
	start := max(len(ws.events)-n, 0)
	out := make([]Record, 0, len(ws.events)-start)
	for _, e := range ws.events[start:] {
		out = append(out, e.Clone())
	}
	return out
}

// Summarize renders the condensed state handed to the narrator model:
// player vitals and inventory, the current location, active quests and
// the most recent events. The output depends only on the stored state.
func (ws *WorldState) Summarize() string {
	p := ws.player
	loc := ws.location
	active := ws.ActiveQuests()
	recent := ws.RecentEvents(RecentEventLimit)

	var b strings.Builder
	b.WriteString("CURRENT GAME STATE:\n")
	fmt.Fprintf(&b, "Player: %s (Level %s %s)\n", p.String("name"), p.String("level"), p.String("class"))
	fmt.Fprintf(&b, "HP: %s/%s | Status: %s\n", p.String("hp"), p.String("max_hp"), p.String("status"))
	fmt.Fprintf(&b, "Gold: %s | Inventory: %s\n\n", p.String("gold"), strings.Join(p.Strings("inventory"), ", "))
	fmt.Fprintf(&b, "Location: %s\n", loc.String("name"))
	fmt.Fprintf(&b, "Description: %s\n\n", loc.String("description"))
	fmt.Fprintf(&b, "Active Quests: %d\n", len(active))
	for _, q := range active {
		fmt.Fprintf(&b, "\n- %s: %s", q.String("name"), q.String("description"))
	}

	if len(recent) > 0 {
		b.WriteString("\n\nRecent Events:")
		for _, e := range recent {
			fmt.Fprintf(&b, "\n- %s", e.String("description"))
		}
	}

	return strings.TrimSpace(b.String())
}
