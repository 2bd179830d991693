package id

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseTransferID parses a provider transfer ID such as "1158218819".
func ParseTransferID(id string) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(id), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid transfer ID %q: %w", id, err)
	}
	return n, nil
}

// FormatTransferID returns the canonical string form of a transfer ID.
func FormatTransferID(id int64) string {
	return strconv.FormatInt(id, 10)
}

// Compare orders two transfer IDs. Numeric IDs compare by value
// ("9" < "10"); anything else falls back to string order, and numeric IDs
// sort before non-numeric ones.
func Compare(a, b string) int {
	na, errA := ParseTransferID(a)
	nb, errB := ParseTransferID(b)
	switch {
	case errA == nil && errB == nil:
		switch {
		case na < nb:
			return -1
		case na > nb:
			return 1
		}
		return 0
	case errA == nil:
		return -1
	case errB == nil:
		return 1
	}
	return strings.Compare(a, b)
}

// Max returns the greatest of ids per Compare. Empty IDs are ignored;
// "" is returned when nothing is left.
func Max(ids ...string) string {
	best := ""
	for _, id := range ids {
		if id == "" {
			continue
		}
		if best == "" || Compare(id, best) > 0 {
			best = id
		}
	}
	return best
}

// After reports whether id is strictly after cursor. Every ID is after an
// empty cursor.
func After(id, cursor string) bool {
	if cursor == "" {
		return true
	}
	return Compare(id, cursor) > 0
}
