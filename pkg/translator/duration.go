package translator

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/litmuschaos/chaos-advisor/pkg/cerrors"
)

var durationPattern = regexp.MustCompile(`^(\d+)([smh]?)$`)

var unitSeconds = map[string]int{"": 1, "s": 1, "m": 60, "h": 3600}

// maxSeconds is the longest duration a time.Duration can hold
const maxSeconds = math.MaxInt64 / int64(time.Second)

// ParseDuration converts a duration string ("60s", "5m", "1h" or bare seconds) into whole seconds
func ParseDuration(duration string) (int, error) {
	match := durationPattern.FindStringSubmatch(strings.TrimSpace(duration))
	if match == nil {
		return 0, cerrors.Validation{Field: "parameters.duration", Reason: "must look like 60s, 5m, 1h or a number of seconds"}
	}
	value, err := strconv.Atoi(match[1])
	if err != nil {
		return 0, cerrors.Validation{Field: "parameters.duration", Reason: "is out of range"}
	}
	seconds := value * unitSeconds[match[2]]
	if seconds/unitSeconds[match[2]] != value || int64(seconds) > maxSeconds {
		return 0, cerrors.Validation{Field: "parameters.duration", Reason: "is out of range"}
	}
	if seconds <= 0 {
		return 0, cerrors.Validation{Field: "parameters.duration", Reason: "must be greater than zero"}
	}
	return seconds, nil
}
