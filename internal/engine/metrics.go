package engine

import (
	"fmt"
	"sync/atomic"
	"time"
)

type Metrics struct {
	processed      atomic.Int64
	failed         atomic.Int64
	duplicates     atomic.Int64
	retried        atomic.Int64
	refused        atomic.Int64
	processingTime atomic.Int64 // nanoseconds
}

func (m *Metrics) addProcessingTime(d time.Duration) {
	m.processingTime.Add(d.Nanoseconds())
}

type Snapshot struct {
	Processed      int64         `json:"processed"`
	Failed         int64         `json:"failed"`
	Duplicates     int64         `json:"duplicates"`
	Retried        int64         `json:"retried"`
	Refused        int64         `json:"refused"`
	InFlight       int           `json:"in_flight"`
	ProcessingTime time.Duration `json:"processing_time_ns"`
}

func (s Snapshot) String() string {
	return fmt.Sprintf("processed=%d failed=%d duplicates=%d retried=%d refused=%d in_flight=%d processing_time=%v",
		s.Processed, s.Failed, s.Duplicates, s.Retried, s.Refused, s.InFlight, s.ProcessingTime)
}

func (e *Engine) Metrics() Snapshot {
	return Snapshot{
		Processed:      e.metrics.processed.Load(),
		Failed:         e.metrics.failed.Load(),
		Duplicates:     e.metrics.duplicates.Load(),
		Retried:        e.metrics.retried.Load(),
		Refused:        e.metrics.refused.Load(),
		InFlight:       e.claims.Len(),
		ProcessingTime: time.Duration(e.metrics.processingTime.Load()),
	}
}
