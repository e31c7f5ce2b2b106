package model

import "time"

// Status describes the health lifecycle of a proxy record.
// Untested -> Healthy/Degraded (which may flip between each other on
// later probes) -> Dead once the consecutive failure limit is reached.
// Dead is terminal; a dead record only comes back via re-ingestion.
type Status int

const (
	StatusUntested Status = iota
	StatusHealthy
	StatusDegraded
	StatusDead
)

func (s Status) String() string {
	switch s {
	case StatusUntested:
		return "untested"
	case StatusHealthy:
		return "healthy"
	case StatusDegraded:
		return "degraded"
	case StatusDead:
		return "dead"
	default:
		return "unknown"
	}
}

// ProxyRecord is the core data structure of the pool: one upstream
// SOCKS5 proxy and its last known health state. The Address is the
// unique key within the pool.
type ProxyRecord struct {
	Address string

	// Latency is the last measured round trip, 0 means never
	// successfully probed.
	Latency time.Duration

	// Failures counts consecutive probe failures since the last
	// success and drives eviction.
	Failures int

	Status    Status
	LastCheck time.Time
}

// NewProxyRecord creates an untested record for a candidate address.
func NewProxyRecord(address string) *ProxyRecord {
	return &ProxyRecord{
		Address: address,
		Status:  StatusUntested,
	}
}

// ApplySuccess records a successful probe. The record becomes Healthy,
// or Degraded when the measured latency exceeds the soft threshold.
func (r *ProxyRecord) ApplySuccess(latency, degradedThreshold time.Duration) {
	r.Latency = latency
	r.Failures = 0
	r.LastCheck = time.Now()
	if degradedThreshold > 0 && latency > degradedThreshold {
		r.Status = StatusDegraded
	} else {
		r.Status = StatusHealthy
	}
}

// ApplyFailure records a failed probe and reports whether the record
// crossed the retry limit and is now Dead.
func (r *ProxyRecord) ApplyFailure(retryLimit int) bool {
	r.Failures++
	r.LastCheck = time.Now()
	if retryLimit > 0 && r.Failures >= retryLimit {
		r.Status = StatusDead
	}
	return r.Status == StatusDead
}

// Alive reports whether the record may still serve traffic.
func (r *ProxyRecord) Alive() bool {
	return r.Status != StatusDead
}
