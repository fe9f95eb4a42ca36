package world

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock() time.Time {
	return time.Date(2025, 3, 14, 18, 30, 0, 0, time.UTC)
}

func newTestWorld() *WorldState {
	return New(WithClock(fixedClock))
}

// decode mimics a delta arriving as JSON from the narrator.
func decode(t *testing.T, raw string) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &m))
	return m
}

func TestMerge_PlayerFieldOverwrite(t *testing.T) {
	ws := newTestWorld()

	result, err := ws.Merge(decode(t, `{"player": {"hp": 70}}`))
	require.NoError(t, err)

	dump := ws.Dump()
	player := dump[SectionPlayer].(map[string]any)
	assert.EqualValues(t, 70, player["hp"])
	assert.EqualValues(t, 25, player["gold"])
	assert.Equal(t, "Adventurer", player["name"])
	assert.Equal(t, []string{SectionPlayer}, result.Applied)
	assert.Empty(t, result.Warnings)
}

func TestMerge_ExistingNPCUpdatedByName(t *testing.T) {
	ws := newTestWorld()

	result, err := ws.Merge(decode(t, `{"npcs": [{"name": "Elder Thorne", "met": true}]}`))
	require.NoError(t, err)

	npcs := ws.NPCs()
	require.Len(t, npcs, 1)
	assert.Equal(t, true, npcs[0]["met"])
	assert.Equal(t, "friendly", npcs[0]["attitude"], "fields absent from the delta are kept")
	assert.Equal(t, 1, result.NPCsUpdated)
	assert.Equal(t, 0, result.NPCsAdded)
}

func TestMerge_NewNPCAppendedVerbatim(t *testing.T) {
	ws := newTestWorld()

	_, err := ws.Merge(decode(t, `{"npcs": [{"name": "Brand New Npc", "attitude": "hostile"}]}`))
	require.NoError(t, err)

	npcs := ws.NPCs()
	require.Len(t, npcs, 2)
	assert.Equal(t, Record{"name": "Brand New Npc", "attitude": "hostile"}, npcs[1])
}

func TestMerge_SingleNPCMapping(t *testing.T) {
	ws := newTestWorld()

	_, err := ws.Merge(decode(t, `{"npcs": {"name": "Elder Thorne", "attitude": "wary"}}`))
	require.NoError(t, err)

	npc, ok := ws.NPC("Elder Thorne")
	require.True(t, ok)
	assert.Equal(t, "wary", npc["attitude"])
	assert.Equal(t, 1, len(ws.NPCs()))
}

func TestMerge_SingleEventMappingAppended(t *testing.T) {
	ws := newTestWorld()
	before := len(ws.Events())

	result, err := ws.Merge(decode(t, `{"events": {"description": "Found a sword", "importance": "major"}}`))
	require.NoError(t, err)

	events := ws.Events()
	require.Len(t, events, before+1)
	assert.Equal(t, "Found a sword", events[len(events)-1]["description"])
	assert.Equal(t, 1, result.EventsAppended)
}

func TestMerge_EventListKeepsOrder(t *testing.T) {
	ws := newTestWorld()
	before := len(ws.Events())

	_, err := ws.Merge(decode(t, `{"events": [
		{"description": "first", "timestamp": "2099-01-01T00:00:00Z"},
		{"description": "second", "timestamp": "1999-01-01T00:00:00Z"},
		{"description": "first"}
	]}`))
	require.NoError(t, err)

	events := ws.Events()
	require.Len(t, events, before+3)
	assert.Equal(t, "first", events[before]["description"])
	assert.Equal(t, "second", events[before+1]["description"])
	assert.Equal(t, "first", events[before+2]["description"], "events are never deduplicated")
}

func TestMerge_NonMappingSectionRejected(t *testing.T) {
	ws := newTestWorld()
	before := ws.Dump()

	result, err := ws.Merge(decode(t, `{"player": "not-a-mapping"}`))
	require.NoError(t, err)

	assert.Equal(t, before, ws.Dump())
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, SectionPlayer, result.Warnings[0].Section)
	assert.False(t, result.Changed())
}

func TestMerge_MalformedSectionDoesNotBlockOthers(t *testing.T) {
	ws := newTestWorld()

	result, err := ws.Merge(decode(t, `{
		"player": ["hp", 10],
		"location": {"name": "Dark Cave", "description": "A damp cave"},
		"npcs": "Elder Thorne",
		"quests": [{"name": "Investigate the Forest", "status": "completed"}],
		"world_info": 42
	}`))
	require.NoError(t, err)

	loc := ws.Location()
	assert.Equal(t, "Dark Cave", loc["name"])
	assert.Equal(t, true, loc["visited"], "untouched location fields are kept")

	q, ok := ws.Quest("Investigate the Forest")
	require.True(t, ok)
	assert.Equal(t, "completed", q["status"])

	assert.Equal(t, []string{SectionLocation, SectionQuests}, result.Applied)
	sections := make([]string, 0, len(result.Warnings))
	for _, w := range result.Warnings {
		sections = append(sections, w.Section)
	}
	assert.ElementsMatch(t, []string{SectionPlayer, SectionNPCs, SectionWorldInfo}, sections)
}

func TestMerge_UnknownKeysIgnored(t *testing.T) {
	ws := newTestWorld()

	result, err := ws.Merge(decode(t, `{"weather_report": {"rain": true}, "player": {"gold": 30}}`))
	require.NoError(t, err)

	dump := ws.Dump()
	_, present := dump["weather_report"]
	assert.False(t, present)
	assert.Len(t, dump, 6)
	assert.EqualValues(t, 30, dump[SectionPlayer].(map[string]any)["gold"])
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, "weather_report", result.Warnings[0].Section)
}

func TestMerge_UntouchedSectionsUnchanged(t *testing.T) {
	ws := newTestWorld()
	before := ws.Dump()

	_, err := ws.Merge(decode(t, `{"world_info": {"weather": "stormy"}}`))
	require.NoError(t, err)

	after := ws.Dump()
	for _, section := range []string{SectionPlayer, SectionLocation, SectionNPCs, SectionEvents, SectionQuests} {
		assert.Equal(t, before[section], after[section], section)
	}
	assert.Equal(t, "stormy", after[SectionWorldInfo].(map[string]any)["weather"])
	assert.Equal(t, "Dark Fantasy", after[SectionWorldInfo].(map[string]any)["universe"])
}

func TestMerge_IdentityResolutionIsIdempotent(t *testing.T) {
	delta := `{
		"npcs": [{"name": "Mira", "role": "Herbalist", "met": true}],
		"quests": [{"name": "Find Herbs", "status": "active", "objectives": [{"task": "Pick moonleaf", "completed": false}]}]
	}`

	once := newTestWorld()
	_, err := once.Merge(decode(t, delta))
	require.NoError(t, err)

	twice := newTestWorld()
	_, err = twice.Merge(decode(t, delta))
	require.NoError(t, err)
	_, err = twice.Merge(decode(t, delta))
	require.NoError(t, err)

	assert.Equal(t, once.Dump()[SectionNPCs], twice.Dump()[SectionNPCs])
	assert.Equal(t, once.Dump()[SectionQuests], twice.Dump()[SectionQuests])
}

func TestMerge_SameNewNameTwiceInOneCall(t *testing.T) {
	ws := newTestWorld()

	result, err := ws.Merge(decode(t, `{"npcs": [
		{"name": "Stranger", "attitude": "neutral"},
		{"name": "Stranger", "attitude": "hostile"}
	]}`))
	require.NoError(t, err)

	// The second record resolves against the roster after the first was
	// appended, so it updates rather than duplicates.
	require.Len(t, ws.NPCs(), 2)
	npc, ok := ws.NPC("Stranger")
	require.True(t, ok)
	assert.Equal(t, "hostile", npc["attitude"])
	assert.Equal(t, 1, result.NPCsAdded)
	assert.Equal(t, 1, result.NPCsUpdated)
}

func TestMerge_RecordWithoutNameAppendedUnlinked(t *testing.T) {
	ws := newTestWorld()

	result, err := ws.Merge(decode(t, `{"npcs": [{"role": "Shadow"}, {"role": "Shadow"}], "quests": {"status": "active"}}`))
	require.NoError(t, err)

	assert.Len(t, ws.NPCs(), 3)
	assert.Len(t, ws.Quests(), 2)
	assert.Len(t, result.Warnings, 3)
	for _, w := range result.Warnings {
		assert.Contains(t, w.Reason, "without identity")
	}
}

func TestMerge_NameIsCaseSensitive(t *testing.T) {
	ws := newTestWorld()

	_, err := ws.Merge(decode(t, `{"npcs": [{"name": "elder thorne", "met": true}]}`))
	require.NoError(t, err)

	assert.Len(t, ws.NPCs(), 2)
	elder, _ := ws.NPC("Elder Thorne")
	assert.Equal(t, false, elder["met"])
}

func TestMerge_NonMappingListItemsSkipped(t *testing.T) {
	ws := newTestWorld()
	before := len(ws.Events())

	result, err := ws.Merge(decode(t, `{"events": ["a", {"description": "b"}, 3], "quests": [null, {"name": "Q"}]}`))
	require.NoError(t, err)

	assert.Len(t, ws.Events(), before+1)
	assert.Len(t, ws.Quests(), 2)
	assert.Equal(t, 1, result.EventsAppended)
	require.Len(t, result.Warnings, 3)
	assert.Equal(t, MergeWarning{Section: SectionEvents, Index: 0, Reason: "expected a mapping, got string"}, result.Warnings[0])
}

func TestMerge_AppendOnlyLaw(t *testing.T) {
	ws := newTestWorld()

	deltas := []string{
		`{"events": {"description": "one"}}`,
		`{"events": [{"description": "two"}, {"description": "three"}]}`,
		`{"events": []}`,
		`{"events": "junk"}`,
		`{"player": {"hp": 10}}`,
	}
	for _, raw := range deltas {
		before := ws.Events()
		result, err := ws.Merge(decode(t, raw))
		require.NoError(t, err)
		after := ws.Events()
		require.Len(t, after, len(before)+result.EventsAppended, raw)
		assert.Equal(t, before, after[:len(before)], "existing events are never rewritten")
	}
	assert.Len(t, ws.Events(), 4)
}

func TestMerge_DeltaDoesNotAliasState(t *testing.T) {
	ws := newTestWorld()
	inventory := []any{"torch", "magic sword"}
	delta := map[string]any{
		"player": map[string]any{"inventory": inventory},
		"npcs":   []any{map[string]any{"name": "Mira"}},
	}

	_, err := ws.Merge(delta)
	require.NoError(t, err)

	inventory[1] = "stolen"
	delta["npcs"].([]any)[0].(map[string]any)["name"] = "Changed"

	assert.Equal(t, []string{"torch", "magic sword"}, ws.Player().Strings("inventory"))
	_, ok := ws.NPC("Mira")
	assert.True(t, ok)
}

func TestMerge_TypedContainersAreCopied(t *testing.T) {
	ws := newTestWorld()
	stats := map[string]int{"str": 1}
	tags := []int{1, 2}
	allies := []map[string]string{{"name": "Mira", "role": "scout"}}

	_, err := ws.Merge(map[string]any{
		"player": map[string]any{"stats": stats, "tags": tags},
		"npcs":   allies,
	})
	require.NoError(t, err)

	stats["str"] = 99
	tags[0] = 42
	allies[0]["role"] = "traitor"

	player := ws.Player()
	assert.Equal(t, map[string]any{"str": 1}, player["stats"])
	assert.Equal(t, []any{1, 2}, player["tags"])
	mira, ok := ws.NPC("Mira")
	require.True(t, ok)
	assert.Equal(t, "scout", mira.String("role"))
}

func TestMerge_TypedMappings(t *testing.T) {
	ws := newTestWorld()

	result, err := ws.Merge(map[string]any{"player": map[string]string{"status": "Poisoned"}})
	require.NoError(t, err)
	assert.Empty(t, result.Warnings)
	assert.Equal(t, "Poisoned", ws.Player().String("status"))

	result, err = ws.Merge(map[string]map[string]any{"location": {"name": "Crypt"}})
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, []string{SectionLocation}, result.Applied)
	assert.Equal(t, "Crypt", ws.Location().String("name"))
}

func TestMerge_InvalidArgument(t *testing.T) {
	tests := []struct {
		name  string
		delta any
	}{
		{name: "nil", delta: nil},
		{name: "string", delta: "player"},
		{name: "list", delta: []any{map[string]any{"player": map[string]any{}}}},
		{name: "number", delta: 7.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ws := newTestWorld()
			before := ws.Dump()

			result, err := ws.Merge(tt.delta)
			assert.Nil(t, result)
			assert.True(t, errors.Is(err, ErrInvalidArgument))
			assert.Equal(t, before, ws.Dump())
		})
	}
}

func TestMergeJSON(t *testing.T) {
	ws := newTestWorld()

	result, err := ws.MergeJSON([]byte(`{"location": {"name": "Village"}}`))
	require.NoError(t, err)
	assert.True(t, result.Changed())
	assert.Equal(t, "Village", ws.Location()["name"])

	_, err = ws.MergeJSON([]byte(`{not json`))
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = ws.MergeJSON([]byte(`[1, 2]`))
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestMerge_EmptyDelta(t *testing.T) {
	ws := newTestWorld()
	before := ws.Dump()

	result, err := ws.Merge(map[string]any{})
	require.NoError(t, err)
	assert.False(t, result.Changed())
	assert.Empty(t, result.Warnings)
	assert.Equal(t, before, ws.Dump())
}

func TestMergeWarning_String(t *testing.T) {
	assert.Equal(t, "player: expected a mapping, got string",
		MergeWarning{Section: "player", Index: -1, Reason: "expected a mapping, got string"}.String())
	assert.Equal(t, "npcs[2]: bad",
		MergeWarning{Section: "npcs", Index: 2, Reason: "bad"}.String())
}
