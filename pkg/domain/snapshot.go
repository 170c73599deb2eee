package domain

import "time"

// Snapshot is a named set of parameter values, the unit of host state save/restore.
type Snapshot struct {
	Name    string                `json:"name"`
	Values  map[ParameterID]Value `json:"values"`
	SavedAt time.Time             `json:"saved_at"`
}

// NewSnapshot creates an empty snapshot.
func NewSnapshot(name string) *Snapshot {
	return &Snapshot{
		Name:    name,
		Values:  make(map[ParameterID]Value),
		SavedAt: time.Now().UTC(),
	}
}

// Clone returns a deep copy so stores can isolate their contents from callers.
func (s *Snapshot) Clone() *Snapshot {
	c := *s
	c.Values = make(map[ParameterID]Value, len(s.Values))
	for k, v := range s.Values {
		c.Values[k] = v
	}
	return &c
}
