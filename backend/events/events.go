// Package events fans course lifecycle and progress changes out to subscribers.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/kassslll/philosofium/backend/utils"
)

type Type string

const (
	CourseTransitioned Type = "course.transitioned"
	LessonCompleted    Type = "enrollment.lesson_completed"
	CourseCompleted    Type = "enrollment.course_completed"
)

type Event struct {
	Type         Type      `json:"type"`
	CourseID     uint      `json:"course_id"`
	EnrollmentID uint      `json:"enrollment_id,omitempty"`
	LessonID     uint      `json:"lesson_id,omitempty"`
	From         string    `json:"from,omitempty"`
	To           string    `json:"to,omitempty"`
	Percentage   int       `json:"percentage,omitempty"`
	At           time.Time `json:"at"`
}

// Publisher delivers events. Publishing happens after the owning transaction
// commits, so a failure never rolls anything back.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

type nopPublisher struct {
	log *utils.Logger
}

// NewNopPublisher logs events at debug level and drops them.
func NewNopPublisher(log *utils.Logger) Publisher {
	return &nopPublisher{log: log.With("publisher", "nop")}
}

func (p *nopPublisher) Publish(_ context.Context, ev Event) error {
	p.log.Debug("event dropped", "type", ev.Type, "course_id", ev.CourseID)
	return nil
}

func (p *nopPublisher) Close() error { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *Recorder) Close() error { return nil }

// Events returns a copy of everything published so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// OfType filters the recorded events.
func (r *Recorder) OfType(t Type) []Event {
	var out []Event
	for _, ev := range r.Events() {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}
