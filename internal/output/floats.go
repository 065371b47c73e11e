package output

import (
	"math"
	"strconv"
	"strings"
)

// RoundFloat rounds to six decimal places, the precision carried by all
// exported metrics.
func RoundFloat(f float64) float64 {
	return math.Round(f*1e6) / 1e6
}

// FormatFloat renders a rounded float without trailing zeros.
func FormatFloat(f float64) string {
	s := strconv.FormatFloat(RoundFloat(f), 'f', 6, 64)
	s = strings.TrimRight(s, "0")
	return strings.TrimRight(s, ".")
}
