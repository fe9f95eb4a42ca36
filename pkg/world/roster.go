package world

import "encoding/json"

// IdentityKey is the field used to match incoming NPC and quest records
// against existing ones.
const IdentityKey = "name"

// Roster is an insertion-ordered collection of records keyed by name.
// Records without a string name are kept in order but cannot be found by
// name.
type Roster struct {
	records []Record
	index   map[string]int
}

// NewRoster builds a roster from records in order. When two records share
// a name the first one owns the identity.
func NewRoster(records ...Record) *Roster {
	r := &Roster{
		records: make([]Record, 0, len(records)),
		index:   make(map[string]int, len(records)),
	}
	for _, rec := range records {
		c := rec.Clone()
		if c == nil {
			c = Record{}
		}
		r.append(c)
	}
	return r
}

// Len returns the number of records.
func (r *Roster) Len() int {
	return len(r.records)
}

// Get returns a copy of the record with the given name.
func (r *Roster) Get(name string) (Record, bool) {
	i, ok := r.index[name]
	if !ok {
		return nil, false
	}
	return r.records[i].Clone(), true
}

// All returns copies of every record in insertion order.
func (r *Roster) All() []Record {
	out := make([]Record, len(r.records))
	for i, rec := range r.records {
		out[i] = rec.Clone()
	}
	return out
}

// upsert merges rec into the record sharing its name, or appends it.
// It reports whether an existing record was updated and whether rec
// carried a usable identity.
func (r *Roster) upsert(rec Record) (updated bool, identified bool) {
	name, ok := rec[IdentityKey].(string)
	if !ok {
		r.records = append(r.records, rec.Clone())
		return false, false
	}
	if i, found := r.index[name]; found {
		r.records[i].apply(rec)
		return true, true
	}
	r.append(rec.Clone())
	return false, true
}

func (r *Roster) append(rec Record) {
	if name, ok := rec[IdentityKey].(string); ok {
		if _, taken := r.index[name]; !taken {
			r.index[name] = len(r.records)
		}
	}
	r.records = append(r.records, rec)
}

func (r *Roster) clone() *Roster {
	return NewRoster(r.records...)
}

func (r *Roster) plain() []any {
	out := make([]any, len(r.records))
	for i, rec := range r.records {
		out[i] = rec.plain()
	}
	return out
}

// MarshalJSON encodes the roster as an array.
func (r *Roster) MarshalJSON() ([]byte, error) {
	if r == nil || r.records == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(r.records)
}

// UnmarshalJSON decodes an array of records and rebuilds the name index.
func (r *Roster) UnmarshalJSON(data []byte) error {
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return err
	}
	*r = *NewRoster(records...)
	return nil
}
