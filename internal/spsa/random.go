package spsa

import "math/rand"

// SignSource draws the perturbation direction of a tick.
type SignSource interface {
	// Sign returns -1 or +1.
	Sign() int
}

type randomSign struct{}

// NewRandomSign returns an unbiased SignSource backed by the runtime's
// concurrency safe generator.
func NewRandomSign() SignSource {
	return randomSign{}
}

func (randomSign) Sign() int {
	if rand.Uint64()&0x1 == 1 {
		return -1
	}
	return 1
}
