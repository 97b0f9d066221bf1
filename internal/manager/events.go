package manager

import "github.com/rs/zerolog"

// Event represents a manager lifecycle event: name, language and optional
// fields.
type Event struct {
	Name     string
	Language string
	Fields   map[string]any
}

// EventPublisher receives events from the manager. Implementations should be
// lightweight and non-blocking; Publish must not panic.
type EventPublisher interface {
	Publish(Event)
}

// noopPublisher is the default; it drops events.
type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}

// LogPublisher writes each event as one debug line.
type LogPublisher struct {
	Logger zerolog.Logger
}

func (p LogPublisher) Publish(e Event) {
	ev := p.Logger.Debug().Str("language", e.Language)
	if len(e.Fields) > 0 {
		ev = ev.Fields(e.Fields)
	}
	ev.Msg("manager event=" + e.Name)
}

func (m *Manager) publish(name, language string, fields map[string]any) {
	m.publisher.Publish(Event{Name: name, Language: language, Fields: fields})
}
