package hostabi

import (
	"math"
	"strconv"
	"unicode/utf8"

	"github.com/oriys/booster/internal/metrics"
)

func utf8Valid(b []byte) bool {
	return utf8.Valid(b)
}

// recordHostCall increments HostCallsTotal for function, labeled with its
// i32 result code. A no-op when metrics haven't been initialized (e.g. in
// unit tests that exercise a linker directly).
func recordHostCall(function string, code int32) {
	if m := metrics.Active(); m != nil {
		m.HostCallsTotal.WithLabelValues(function, strconv.Itoa(int(code))).Inc()
	}
}

// clampInt32 saturates n to math.MaxInt32, matching the Rust original's
// `.min(i32::MAX as u64) as i32` when reporting rows-affected counts that
// could in principle overflow a 32-bit guest-visible return value.
func clampInt32(n int64) int32 {
	if n > math.MaxInt32 {
		return math.MaxInt32
	}
	if n < 0 {
		return 0
	}
	return int32(n)
}
