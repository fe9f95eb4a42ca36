package world

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// ErrInvalidArgument is returned when a delta is not a mapping at all.
// Malformed sections inside a mapping never produce an error; they are
// reported as warnings on the MergeResult.
var ErrInvalidArgument = errors.New("invalid argument")

// mergeOrder is the order sections are applied in.
var mergeOrder = []string{
	SectionPlayer,
	SectionLocation,
	SectionNPCs,
	SectionEvents,
	SectionQuests,
	SectionWorldInfo,
}

// MergeWarning describes part of a delta that was skipped or applied
// without identity.
type MergeWarning struct {
	Section string `json:"section"`
	Index   int    `json:"index"` // position within a list section, -1 for the whole section
	Reason  string `json:"reason"`
}

func (w MergeWarning) String() string {
	if w.Index >= 0 {
		return fmt.Sprintf("%s[%d]: %s", w.Section, w.Index, w.Reason)
	}
	return fmt.Sprintf("%s: %s", w.Section, w.Reason)
}

// MergeResult summarizes what a single Merge call changed.
type MergeResult struct {
	Applied        []string       `json:"applied,omitempty"`
	NPCsUpdated    int            `json:"npcs_updated,omitempty"`
	NPCsAdded      int            `json:"npcs_added,omitempty"`
	QuestsUpdated  int            `json:"quests_updated,omitempty"`
	QuestsAdded    int            `json:"quests_added,omitempty"`
	EventsAppended int            `json:"events_appended,omitempty"`
	Warnings       []MergeWarning `json:"warnings,omitempty"`
}

// Changed reports whether any section was applied.
func (r *MergeResult) Changed() bool {
	return r != nil && len(r.Applied) > 0
}

func (r *MergeResult) warn(section string, index int, format string, args ...any) {
	r.Warnings = append(r.Warnings, MergeWarning{
		Section: section,
		Index:   index,
		Reason:  fmt.Sprintf(format, args...),
	})
}

// guard runs fn and turns a panic into a warning for section, so one bad
// section never stops the others from merging.
func (r *MergeResult) guard(section string, fn func()) {
	defer func() {
		if p := recover(); p != nil {
			r.warn(section, -1, "merge aborted: %v", p)
		}
	}()
	fn()
}

// Merge folds a partial update into the world in place.
//
// delta must be a mapping whose keys are a subset of player, location,
// npcs, events, quests and world_info. Unknown keys are ignored. player,
// location and world_info are overwritten field by field. npcs and quests
// accept one record or a list; each record updates the existing record
// with the same name or is appended. events accepts one record or a list
// and is always appended in order.
//
// The only error is ErrInvalidArgument when delta is not a mapping.
func (ws *WorldState) Merge(delta any) (*MergeResult, error) {
	d, ok := asRecord(delta)
	if !ok {
		return nil, fmt.Errorf("%w: delta must be a mapping, got %T", ErrInvalidArgument, delta)
	}

	result := &MergeResult{}
	for _, section := range mergeOrder {
		value, present := d[section]
		if !present {
			continue
		}
		result.guard(section, func() {
			var applied bool
			switch section {
			case SectionPlayer:
				applied = mergeFields(ws.player, section, value, result)
			case SectionLocation:
				applied = mergeFields(ws.location, section, value, result)
			case SectionWorldInfo:
				applied = mergeFields(ws.worldInfo, section, value, result)
			case SectionNPCs:
				var updated, added int
				updated, added, applied = mergeRoster(ws.npcs, section, value, result)
				result.NPCsUpdated += updated
				result.NPCsAdded += added
			case SectionQuests:
				var updated, added int
				updated, added, applied = mergeRoster(ws.quests, section, value, result)
				result.QuestsUpdated += updated
				result.QuestsAdded += added
			case SectionEvents:
				var n int
				n, applied = ws.appendEvents(value, result)
				result.EventsAppended += n
			}
			if applied {
				result.Applied = append(result.Applied, section)
			}
		})
	}

	var unknown []string
	for key := range d {
		if !isSection(key) {
			unknown = append(unknown, key)
		}
	}
	sort.Strings(unknown)
	for _, key := range unknown {
		result.warn(key, -1, "unknown section ignored")
	}

	return result, nil
}

// MergeJSON decodes raw as a JSON object and merges it.
func (ws *WorldState) MergeJSON(raw []byte) (*MergeResult, error) {
	var delta any
	if err := json.Unmarshal(raw, &delta); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	return ws.Merge(delta)
}

func isSection(key string) bool {
	for _, s := range mergeOrder {
		if s == key {
			return true
		}
	}
	return false
}

func mergeFields(target Record, section string, value any, result *MergeResult) bool {
	rec, ok := asRecord(value)
	if !ok {
		result.warn(section, -1, "expected a mapping, got %s", describe(value))
		return false
	}
	target.apply(rec)
	return true
}

// recordsOf accepts one record or a list of values.
func recordsOf(section string, value any, result *MergeResult) ([]any, bool) {
	if rec, ok := asRecord(value); ok {
		return []any{rec}, true
	}
	if list, ok := asList(value); ok {
		return list, true
	}
	result.warn(section, -1, "expected a mapping or a list, got %s", describe(value))
	return nil, false
}

// mergeRoster resolves each record against the roster as it stands at
// that moment, so a record added earlier in the same list is visible to
// later ones.
func mergeRoster(roster *Roster, section string, value any, result *MergeResult) (updated, added int, applied bool) {
	items, ok := recordsOf(section, value, result)
	if !ok {
		return 0, 0, false
	}
	for i, item := range items {
		rec, ok := asRecord(item)
		if !ok {
			result.warn(section, i, "expected a mapping, got %s", describe(item))
			continue
		}
		wasUpdate, identified := roster.upsert(rec)
		if !identified {
			result.warn(section, i, "record has no %q; appended without identity", IdentityKey)
		}
		if wasUpdate {
			updated++
		} else {
			added++
		}
	}
	return updated, added, updated+added > 0
}

func (ws *WorldState) appendEvents(value any, result *MergeResult) (int, bool) {
	items, ok := recordsOf(SectionEvents, value, result)
	if !ok {
		return 0, false
	}
	n := 0
	for i, item := range items {
		rec, ok := asRecord(item)
		if !ok {
			result.warn(SectionEvents, i, "expected a mapping, got %s", describe(item))
			continue
		}
		ws.events = append(ws.events, rec.Clone())
		n++
	}
	return n, n > 0
}

func describe(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "bool"
	case float64, int, int64:
		return "number"
	default:
		if _, ok := asList(v); ok {
			return "list"
		}
		return fmt.Sprintf("%T", v)
	}
}
