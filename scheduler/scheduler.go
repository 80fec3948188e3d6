package scheduler

// Package scheduler owns the time-based triggers of the service:
// - daily full refresh after the Warsaw close
// - periodic change7d refill during trading hours
// - weekly archive pruning
//
// The jobs are implemented in jobs.go
