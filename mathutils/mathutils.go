package mathutils

import (
	"math"
)

// FloatEquals is an imprecise float comparison, used by vprog's PageRank to
// decide whether a vertex's pending residual is too small to propagate
// (default variance 0.001 if none given).
func FloatEquals(a float64, b float64, args ...interface{}) bool {
	if len(args) >= 1 {
		return math.Abs(a-b) < args[0].(float64)
	}
	return math.Abs(a-b) < 0.001
}
