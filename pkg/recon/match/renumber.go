package match

import "github.com/jangsa/recon/pkg/recon/facility"

// IDChange is one entry of the migration produced by Renumber.
type IDChange struct {
	Old  string `json:"old"`
	New  string `json:"new"`
	Name string `json:"name"`
}

// Renumber returns a copy of records with IDs prefix-0001..prefix-N in list
// order, plus the list of IDs that changed meaning. Records that had no ID
// are not part of the migration.
func Renumber(records []facility.Record, prefix string) ([]facility.Record, []IDChange) {
	if prefix == "" {
		prefix = DefaultIDPrefix
	}
	out := make([]facility.Record, len(records))
	var changes []IDChange
	for i, rec := range records {
		id := facility.FormatID(prefix, i+1)
		if rec.ID != "" && rec.ID != id {
			changes = append(changes, IDChange{Old: rec.ID, New: id, Name: rec.Name})
		}
		rec.ID = id
		out[i] = rec
	}
	return out, changes
}

// MigrationMap indexes changes by old ID.
func MigrationMap(changes []IDChange) map[string]string {
	m := make(map[string]string, len(changes))
	for _, c := range changes {
		m[c.Old] = c.New
	}
	return m
}
