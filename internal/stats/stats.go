// Package stats collects runtime counters for the server, exposed through
// the INFO command and the optional metrics endpoint.
package stats

import "sync/atomic"

// Stats holds atomic runtime counters. Safe for concurrent use.
type Stats struct {
	commands    atomic.Int64
	connections atomic.Int64
	hits        atomic.Int64
	misses      atomic.Int64
	errors      atomic.Int64
}

// New creates an empty Stats set.
func New() *Stats {
	return &Stats{}
}

// RecordCommand counts one dispatched command.
func (s *Stats) RecordCommand() {
	s.commands.Add(1)
}

// RecordConnection counts one accepted connection.
func (s *Stats) RecordConnection() {
	s.connections.Add(1)
}

// RecordLookup counts a point read as a hit or a miss.
func (s *Stats) RecordLookup(hit bool) {
	if hit {
		s.hits.Add(1)
	} else {
		s.misses.Add(1)
	}
}

// RecordError counts one protocol or type error reported to a client.
func (s *Stats) RecordError() {
	s.errors.Add(1)
}

// Snapshot returns a point-in-time copy of all counters.
func (s *Stats) Snapshot() map[string]int64 {
	return map[string]int64{
		"total_commands":    s.commands.Load(),
		"total_connections": s.connections.Load(),
		"hits":              s.hits.Load(),
		"misses":            s.misses.Load(),
		"errors":            s.errors.Load(),
	}
}
