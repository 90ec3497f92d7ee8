package matchmaking

import (
	"regexp"
	"strconv"
	"strings"
)

var nvnPattern = regexp.MustCompile(`^(\d+)v(\d+)$`)
var plainNPattern = regexp.MustCompile(`^\d+$`)

// ParseQueueKey splits a queueKey of the form "<landType>[:<qualifier>]"
// into its land type and derived group size (spec §4.5 "Config
// derivation"): a qualifier matching "NvN" or a plain "N" derives
// groupSize = N, otherwise groupSize = 1.
func ParseQueueKey(queueKey string) (landType string, groupSize int) {
	parts := strings.SplitN(queueKey, ":", 2)
	landType = parts[0]
	if len(parts) != 2 || parts[1] == "" {
		return landType, 1
	}

	qualifier := parts[1]
	if m := nvnPattern.FindStringSubmatch(qualifier); m != nil {
		a, errA := strconv.Atoi(m[1])
		b, errB := strconv.Atoi(m[2])
		if errA == nil && errB == nil && a == b && a > 0 {
			return landType, a
		}
		return landType, 1
	}
	if plainNPattern.MatchString(qualifier) {
		if n, err := strconv.Atoi(qualifier); err == nil && n > 0 {
			return landType, n
		}
	}
	return landType, 1
}
