package spsa

import (
	"github.com/go-logr/logr"
	"golang.org/x/time/rate"
)

// Trace describes one decision. It is plain data so it can be handed to a
// TraceSink without allocating.
type Trace struct {
	ClusterID        int
	Load             uint
	TargetLoad       uint
	CurrentFrequency uint
	// FrequencyFound is false when CurrentFrequency was not in the table and
	// the probes were taken around index 0.
	FrequencyFound bool
	Phase          Phase

	Alpha int
	Beta  int
	Delta int

	PlusIndex  int
	MinusIndex int
	PlusCost   int
	MinusCost  int
	Difference int
	Gradient   int

	OldIndex           int
	NewIndex           int
	RequestedFrequency uint
}

// TraceSink receives one Trace per tick while diagnostics are enabled.
// Implementations must not block.
type TraceSink interface {
	Trace(tr Trace)
}

// NopTraceSink drops every trace.
type NopTraceSink struct{}

func (NopTraceSink) Trace(Trace) {}

// LogTraceSink writes traces to a logr.Logger, at most limit lines per
// second with the given burst. Traces over the limit are dropped.
type LogTraceSink struct {
	log     logr.Logger
	limiter *rate.Limiter
}

func NewLogTraceSink(log logr.Logger, limit float64, burst int) *LogTraceSink {
	lim := rate.Inf
	if limit > 0 {
		lim = rate.Limit(limit)
	}
	return &LogTraceSink{
		log:     log,
		limiter: rate.NewLimiter(lim, burst),
	}
}

func (s *LogTraceSink) Trace(tr Trace) {
	if !s.limiter.Allow() {
		return
	}
	if !tr.FrequencyFound {
		s.log.Info("current frequency not found in table, probing from index 0",
			"cluster", tr.ClusterID, "frequency", tr.CurrentFrequency)
	}
	s.log.Info("spsa decision",
		"cluster", tr.ClusterID,
		"load", tr.Load,
		"targetLoad", tr.TargetLoad,
		"plus", tr.PlusCost,
		"minus", tr.MinusCost,
		"alpha", tr.Alpha,
		"beta", tr.Beta,
		"delta", tr.Delta,
		"gradient", tr.Gradient,
		"oldIndex", tr.OldIndex,
		"newIndex", tr.NewIndex,
		"requestedFrequency", tr.RequestedFrequency,
	)
}
