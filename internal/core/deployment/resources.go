package deployment

import (
	"fmt"
	"strconv"
	"strings"
)

// =============================================================================
// Resource Limit Functions
// =============================================================================

var memoryUnits = map[string]int64{
	"":  1,
	"b": 1,
	"k": 1 << 10,
	"m": 1 << 20,
	"g": 1 << 30,
}

// ParseMemory parses a memory size such as "512m" or "2g" into bytes.
// An empty string means no limit and returns 0.
//
// Example:
//
//	ParseMemory("512m") // returns 536870912
func ParseMemory(s string) (int64, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return 0, nil
	}
	s = strings.TrimSuffix(s, "b")
	if s == "" {
		return 0, fmt.Errorf("invalid memory size %q", s)
	}
	num, unit := s, ""
	if last := s[len(s)-1:]; last == "k" || last == "m" || last == "g" {
		num, unit = s[:len(s)-1], last
	}
	n, err := strconv.ParseFloat(num, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid memory size %q", s)
	}
	return int64(n * float64(memoryUnits[unit])), nil
}
