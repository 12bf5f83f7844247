// Package groupcache caches point-batch grouping results keyed by a stable
// fingerprint of the normalized batch input. Entries carry a TTL and are
// garbage-collected on read; persisted entries are validated and repaired at
// the deserialization boundary, never trusted as-is.
package groupcache

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/c360/pointmap/types"
)

// Fingerprint computes a stable hash of a point batch. Point order does not
// matter: the same set of points always fingerprints identically.
func Fingerprint(points []types.Point) string {
	lines := make([]string, 0, len(points))
	for _, p := range points {
		lines = append(lines, strings.ToLower(strings.TrimSpace(p.RawName))+"|"+
			strings.ToUpper(strings.TrimSpace(p.DeviceType)))
	}
	sort.Strings(lines)

	h := sha256.New()
	for _, line := range lines {
		h.Write([]byte(line))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}
