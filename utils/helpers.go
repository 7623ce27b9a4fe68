package utils

import (
	"time"
)

// Further tuning is needed for performance...
func BackOff(count int) {
	if count > 2000 {
		count = 2000
	}
	time.Sleep(time.Duration((count+1)*100) * time.Microsecond)
}

// Round up to the next power of 2
func RoundUpPow(i uint64) uint64 {
	i--
	i |= i >> 1
	i |= i >> 2
	i |= i >> 4
	i |= i >> 8
	i |= i >> 16
	i |= i >> 32
	i++
	return i
}
