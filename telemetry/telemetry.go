package telemetry

import (
	"encoding/json"
	"log"
	"os"
	"sync"
	"time"
)

// EventType categorizes telemetry events.
type EventType string

const (
	EventSessionInitialized EventType = "session_initialized"
	EventSessionAnalyzed    EventType = "session_analyzed"
	EventSessionCompleted   EventType = "session_completed"
	EventSessionPaused      EventType = "session_paused"
	EventSessionResumed     EventType = "session_resumed"
	EventSessionCancelled   EventType = "session_cancelled"
	EventSessionFailed      EventType = "session_failed"
	EventStepStarted        EventType = "step_started"
	EventStepFailed         EventType = "step_failed"
	EventSuggestionsReady   EventType = "suggestions_ready"
	EventFeedbackApplied    EventType = "feedback_applied"
	EventPatternLearned     EventType = "pattern_learned"
	EventValidationWarning  EventType = "validation_warning"
	EventOrchestratorError  EventType = "orchestrator_error"
	EventSnapshotRecorded   EventType = "snapshot_recorded"
	EventRollback           EventType = "rollback"
)

// Event captures structured telemetry data.
type Event struct {
	Type      EventType              `json:"type"`
	SessionID string                 `json:"session_id,omitempty"`
	StepID    string                 `json:"step_id,omitempty"`
	Message   string                 `json:"message,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Telemetry receives execution traces emitted by the session engine.
// Production deployments can forward these to a collector, while tests swap
// in the in-memory sink.
type Telemetry interface {
	Emit(event Event)
}

// Nop discards every event.
type Nop struct{}

// Emit drops the event.
func (Nop) Emit(Event) {}

// Multiplex broadcasts events to multiple sinks.
type Multiplex struct {
	Sinks []Telemetry
}

// Emit forwards the event to all registered sinks.
func (m Multiplex) Emit(event Event) {
	for _, s := range m.Sinks {
		s.Emit(event)
	}
}

// JSONFile writes events as newline-delimited JSON to a file so external
// tools can tail and process the stream in real time.
type JSONFile struct {
	path string
	file *os.File
	enc  *json.Encoder
	mu   sync.Mutex
}

// NewJSONFile opens (or creates) the log file.
func NewJSONFile(path string) (*JSONFile, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &JSONFile{path: path, file: f, enc: json.NewEncoder(f)}, nil
}

// Emit writes the JSON record.
func (j *JSONFile) Emit(event Event) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.enc != nil {
		_ = j.enc.Encode(event)
	}
}

// Close releases the file handle.
func (j *JSONFile) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.file != nil {
		return j.file.Close()
	}
	return nil
}

// Logger emits events via the standard logger. Tiny yet immensely helpful
// while debugging sessions locally.
type Logger struct {
	Logger *log.Logger
}

// Emit logs the event.
func (t Logger) Emit(event Event) {
	logger := t.Logger
	if logger == nil {
		logger = log.Default()
	}
	logger.Printf("[%s] session=%s step=%s meta=%v msg=%s\n", event.Type, event.SessionID, event.StepID, event.Metadata, event.Message)
}

// Recorder keeps events in memory for tests.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Emit appends the event.
func (r *Recorder) Emit(event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// CountByType tallies recorded events of one type.
func (r *Recorder) CountByType(t EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Type == t {
			n++
		}
	}
	return n
}
