package utils

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// sizeRegex matches a number followed optionally by a unit string.
// It allows flexible spacing between the number and the unit.
var sizeRegex = regexp.MustCompile(`^(\d+)\s*([a-zA-Z]*)$`)

// unitMultipliers maps data size units to their byte values using binary prefixes.
var unitMultipliers = map[string]int64{
	"":   1,
	"B":  1,
	"KB": 1 << 10,
	"MB": 1 << 20,
	"GB": 1 << 30,
	"TB": 1 << 40,
}

// SizeToBytes parses a human-readable data size string ("1024", "4MB",
// "2 gb") into its byte count. The input is case-insensitive and tolerates
// whitespace. Returns defaultValue when parsing fails.
func SizeToBytes(sizeStr string, defaultValue int64) int64 {
	rawStr := strings.TrimSpace(strings.ToUpper(sizeStr))
	if rawStr == "" {
		return defaultValue
	}

	matches := sizeRegex.FindStringSubmatch(rawStr)
	if len(matches) != 3 {
		log.Warn().Str("value", sizeStr).Msg("invalid size format, using default")
		return defaultValue
	}

	value, err := strconv.ParseInt(matches[1], 10, 64)
	if err != nil || value <= 0 {
		log.Warn().Str("value", sizeStr).Msg("invalid numeric size, using default")
		return defaultValue
	}

	multiplier, exists := unitMultipliers[matches[2]]
	if !exists {
		log.Warn().Str("unit", matches[2]).Msg("unsupported size unit, using default")
		return defaultValue
	}

	return value * multiplier
}
