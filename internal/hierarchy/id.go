package hierarchy

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
)

// ClusterID derives the stable cluster id from the level label and the
// sorted member entity ids. The hash depends only on the canonical member
// set, never on execution order, so identical input always yields identical
// ids across runs. Format: ckc:cluster:<sha256-hex>.
func ClusterID(level float64, members []string) string {
	sorted := make([]string, len(members))
	copy(sorted, members)
	sort.Strings(sorted)

	canonical := "level:" + strconv.FormatFloat(level, 'f', -1, 64) +
		"|members:" + strings.Join(sorted, ",")
	sum := sha256.Sum256([]byte(canonical))
	return "ckc:cluster:" + hex.EncodeToString(sum[:])
}
