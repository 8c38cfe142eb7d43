package config

import (
	"fmt"
	"strconv"
	"strings"
)

// sizeUnits is checked in order, so longer suffixes come first.
var sizeUnits = []struct {
	suffix string
	mult   int64
}{
	{"KIB", 1 << 10},
	{"MIB", 1 << 20},
	{"KB", 1000},
	{"B", 1},
}

// ParseByteSize parses a blocklist size such as "512", "512B", "1KiB" or
// "1MiB". Underscores may group digits.
func ParseByteSize(s string) (int64, error) {
	in := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "_", ""))
	mult := int64(1)
	for _, u := range sizeUnits {
		if num, ok := strings.CutSuffix(in, u.suffix); ok {
			in, mult = strings.TrimSpace(num), u.mult
			break
		}
	}
	// 32-bit counts keep n*mult well inside int64.
	n, err := strconv.ParseUint(in, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q", s)
	}
	return int64(n) * mult, nil
}
