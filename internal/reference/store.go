package reference

import (
	"strings"

	"echallan-service/internal/domain/vehicle"
	"echallan-service/internal/utils"
)

// Store is an immutable plate-keyed index over the reference dataset.
// It is safe for concurrent use because it is never written after NewStore.
type Store struct {
	records map[string]vehicle.Record
}

// NewStore indexes records by normalized plate; the first row for a plate wins.
func NewStore(records []vehicle.Record) *Store {
	m := make(map[string]vehicle.Record, len(records))
	for _, r := range records {
		key := utils.NormalizePlate(r.Plate)
		if _, dup := m[key]; dup || key == "" {
			continue
		}
		r.Plate = key
		m[key] = r
	}
	return &Store{records: m}
}

func (s *Store) Lookup(plate string) (vehicle.Record, bool) {
	if s == nil {
		return vehicle.Record{}, false
	}
	r, ok := s.records[utils.NormalizePlate(plate)]
	return r, ok
}

func (s *Store) Len() int {
	if s == nil {
		return 0
	}
	return len(s.records)
}

// UsableEmail reports whether an owner contact address can receive mail.
func UsableEmail(addr string) bool {
	addr = strings.TrimSpace(addr)
	return addr != "" && !strings.EqualFold(addr, "N/A") && strings.Contains(addr, "@")
}
