// Package mocks provides hand-written test doubles for publisher collaborators.
package mocks

import (
	"fmt"
	"sync"

	"github.com/dorkodu/pharpub/pkg/archive"
	"github.com/dorkodu/pharpub/pkg/logger"
)

// MockEnvironment is a configurable archive.Capabilities
type MockEnvironment struct {
	mu            sync.Mutex
	readOnly      bool
	noCompression bool
	writeChecks   int
	compressCalls []archive.Compression
}

// NewMockEnvironment creates a writable environment supporting every codec
func NewMockEnvironment() *MockEnvironment {
	return &MockEnvironment{}
}

// SetReadOnly toggles CanWrite
func (m *MockEnvironment) SetReadOnly(readOnly bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readOnly = readOnly
}

// DisableCompression makes CanCompress report false for every real codec
func (m *MockEnvironment) DisableCompression() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.noCompression = true
}

// CanWrite implements archive.Capabilities
func (m *MockEnvironment) CanWrite() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeChecks++
	return !m.readOnly
}

// CanCompress implements archive.Capabilities
func (m *MockEnvironment) CanCompress(c archive.Compression) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.compressCalls = append(m.compressCalls, c)
	return c == archive.None || !m.noCompression
}

// WriteChecks returns how often CanWrite was consulted
func (m *MockEnvironment) WriteChecks() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writeChecks
}

// CompressQueries returns the codecs CanCompress was asked about
func (m *MockEnvironment) CompressQueries() []archive.Compression {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]archive.Compression, len(m.compressCalls))
	copy(out, m.compressCalls)
	return out
}

// LogEntry is one message captured by MockLogger
type LogEntry struct {
	Level   string
	Job     string
	Message string
	Fields  map[string]interface{}
}

// MockLogger records every message
type MockLogger struct {
	mu      *sync.Mutex
	entries *[]LogEntry
	job     string
}

// NewMockLogger creates an empty recording logger
func NewMockLogger() *MockLogger {
	return &MockLogger{mu: &sync.Mutex{}, entries: &[]LogEntry{}}
}

func (m *MockLogger) record(level, message string, fields []logger.Field) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data := make(map[string]interface{}, len(fields))
	for _, f := range fields {
		data[f.Key] = f.Value
	}
	*m.entries = append(*m.entries, LogEntry{Level: level, Job: m.job, Message: message, Fields: data})
}

// Info implements logger.Logger
func (m *MockLogger) Info(message string, fields ...logger.Field) { m.record("info", message, fields) }

// Error implements logger.Logger
func (m *MockLogger) Error(message string, fields ...logger.Field) { m.record("error", message, fields) }

// Warn implements logger.Logger
func (m *MockLogger) Warn(message string, fields ...logger.Field) { m.record("warn", message, fields) }

// Debug implements logger.Logger
func (m *MockLogger) Debug(message string, fields ...logger.Field) { m.record("debug", message, fields) }

// Success implements logger.Logger
func (m *MockLogger) Success(message string, fields ...logger.Field) {
	m.record("success", message, fields)
}

// WithJob shares the record with a job-tagged child
func (m *MockLogger) WithJob(job string) logger.Logger {
	return &MockLogger{mu: m.mu, entries: m.entries, job: job}
}

// Entries returns a copy of the recorded messages
func (m *MockLogger) Entries() []LogEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]LogEntry, len(*m.entries))
	copy(out, *m.entries)
	return out
}

// HasMessage reports whether a message was logged at level
func (m *MockLogger) HasMessage(level, message string) bool {
	for _, e := range m.Entries() {
		if e.Level == level && e.Message == message {
			return true
		}
	}
	return false
}

// Recorder collects named events in order, e.g. from effects
type Recorder struct {
	mu     sync.Mutex
	events []string
}

// Mark returns a func() recording name when called
func (r *Recorder) Mark(name string) func() {
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.events = append(r.events, name)
	}
}

// Events returns the recorded events
func (r *Recorder) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	copy(out, r.events)
	return out
}

// String renders the events for failure messages
func (r *Recorder) String() string {
	return fmt.Sprint(r.Events())
}
