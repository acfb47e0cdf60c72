package engine

import (
	"log/slog"
	"time"
)

// EventKind separates the progress stream from the error stream
type EventKind int

const (
	EventProgress EventKind = iota
	EventError
)

func (k EventKind) String() string {
	if k == EventError {
		return "error"
	}
	return "progress"
}

// Event is one human readable line emitted while processing
type Event struct {
	Kind    EventKind `json:"-"`
	Step    Step      `json:"-"`
	Message string    `json:"message"`
	Race    string    `json:"race,omitempty"`
	Horse   string    `json:"horse,omitempty"`
	Time    time.Time `json:"time"`
}

// Observer receives engine events. Observers must not block for long;
// they run on the engine goroutine.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to Observer
type ObserverFunc func(Event)

func (f ObserverFunc) Observe(e Event) { f(e) }

// MultiObserver fans events out to several observers
type MultiObserver []Observer

func (m MultiObserver) Observe(e Event) {
	for _, o := range m {
		if o != nil {
			o.Observe(e)
		}
	}
}

// SlogObserver writes events to a slog logger
type SlogObserver struct {
	Logger *slog.Logger
}

func (o SlogObserver) Observe(e Event) {
	logger := o.Logger
	if logger == nil {
		logger = slog.Default()
	}
	args := []interface{}{"step", e.Step.String()}
	if e.Race != "" {
		args = append(args, "race", e.Race, "horse", e.Horse)
	}
	if e.Kind == EventError {
		logger.Error(e.Message, args...)
		return
	}
	logger.Info(e.Message, args...)
}
