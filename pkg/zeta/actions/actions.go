// Package actions routes element events (click, input, change) to the
// handlers the directive scanner registered for them.
package actions

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/chosenoffset/zeta/pkg/zeta/logging"
)

type EventType string

const (
	ClickEvent  EventType = "click"
	InputEvent  EventType = "input"
	ChangeEvent EventType = "change"
)

// ParseEventType maps an event name to its type.
func ParseEventType(name string) (EventType, error) {
	switch t := EventType(name); t {
	case ClickEvent, InputEvent, ChangeEvent:
		return t, nil
	}
	return "", fmt.Errorf("unknown event type: %s", name)
}

// Event is one user interaction with an element. Value carries the new
// control value for input and change events.
type Event struct {
	Type      EventType
	Element   string
	Value     any
	Timestamp time.Time
}

type Handler interface {
	Handle(event Event) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(event Event) error

func (f HandlerFunc) Handle(event Event) error {
	return f(event)
}

// LogHandler writes every event it sees to a logger.
type LogHandler struct {
	logger logging.Logger
}

func NewLogHandler(logger logging.Logger) *LogHandler {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &LogHandler{logger: logger}
}

func (h *LogHandler) Handle(event Event) error {
	h.logger.Info("event", "type", string(event.Type), "element", event.Element)
	return nil
}

type key struct {
	element   string
	eventType EventType
}

// Registry holds handlers keyed by element id and event type, plus
// observers that see every dispatched event.
type Registry struct {
	mu        sync.RWMutex
	handlers  map[key][]Handler
	observers []Handler
}

func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[key][]Handler),
	}
}

// Register appends handler for events of eventType on element.
func (r *Registry) Register(element string, eventType EventType, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := key{element: element, eventType: eventType}
	r.handlers[k] = append(r.handlers[k], handler)
}

// Use adds an observer run before the element handlers of every dispatch.
func (r *Registry) Use(handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observers = append(r.observers, handler)
}

// Has reports whether any handler is registered for element and eventType.
func (r *Registry) Has(element string, eventType EventType) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers[key{element: element, eventType: eventType}]) > 0
}

// Elements returns the ids of elements with at least one handler, sorted.
func (r *Registry) Elements() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]bool)
	for k := range r.handlers {
		seen[k.element] = true
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Dispatch runs the handlers registered for the event's element and type in
// registration order. It stops at the first handler error.
func (r *Registry) Dispatch(event Event) error {
	r.mu.RLock()
	handlers, exists := r.handlers[key{element: event.Element, eventType: event.Type}]
	if !exists {
		r.mu.RUnlock()
		return fmt.Errorf("no handlers registered for %s on element %q", event.Type, event.Element)
	}

	handlersCopy := make([]Handler, 0, len(r.observers)+len(handlers))
	handlersCopy = append(handlersCopy, r.observers...)
	handlersCopy = append(handlersCopy, handlers...)
	r.mu.RUnlock()

	for _, handler := range handlersCopy {
		if err := handler.Handle(event); err != nil {
			return fmt.Errorf("handler error for %s on %q: %w", event.Type, event.Element, err)
		}
	}

	return nil
}

// NewEvent stamps an event with the current time.
func (r *Registry) NewEvent(eventType EventType, element string, value any) Event {
	return Event{
		Type:      eventType,
		Element:   element,
		Value:     value,
		Timestamp: time.Now(),
	}
}
