package groupcache

import (
	"encoding/json"
	"os"
	"time"

	"github.com/c360/pointmap/errors"
)

// snapshotEntry is the on-disk form of one cache entry. The grouping is
// kept as raw JSON so loading runs it through DecodeGrouping, the same
// validate/repair boundary that guards any other deserialized grouping.
type snapshotEntry struct {
	ExpiresAt time.Time       `json:"expires_at"`
	Grouping  json.RawMessage `json:"grouping"`
}

// loadSnapshot restores persisted entries. Expired entries are skipped and
// entries whose grouping cannot be repaired are discarded and counted as
// evictions; a missing or unreadable snapshot file starts the cache empty.
func (s *Store) loadSnapshot() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return
	}

	var snapshot map[string]snapshotEntry
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return
	}

	now := time.Now()
	for fingerprint, se := range snapshot {
		if !se.ExpiresAt.After(now) {
			continue
		}
		grouping, err := DecodeGrouping(se.Grouping)
		if err != nil {
			s.stats.evictions.Add(1)
			continue
		}
		s.items[fingerprint] = &entry{
			grouping:  grouping,
			expiresAt: se.ExpiresAt,
		}
	}
}

// saveSnapshot flushes live entries to the snapshot path.
func (s *Store) saveSnapshot() error {
	s.mu.RLock()
	snapshot := make(map[string]snapshotEntry, len(s.items))
	for fingerprint, e := range s.items {
		if e.expired() {
			continue
		}
		data, err := EncodeGrouping(e.grouping)
		if err != nil {
			continue
		}
		snapshot[fingerprint] = snapshotEntry{
			ExpiresAt: e.expiresAt,
			Grouping:  data,
		}
	}
	s.mu.RUnlock()

	data, err := json.Marshal(snapshot)
	if err != nil {
		return errors.WrapInvalid(err, "groupcache", "saveSnapshot", "marshal")
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return errors.WrapTransient(err, "groupcache", "saveSnapshot", "write")
	}
	return nil
}
