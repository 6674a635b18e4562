// Package lifecycle is the course review state machine. It is pure: callers pass a
// snapshot of the course and an event, and get back the new flags plus the side
// effects they must apply in the same transaction.
package lifecycle

import (
	"fmt"
	"strings"

	"github.com/kassslll/philosofium/backend/apperr"
)

// State is the review state derived from a course's lifecycle flags.
type State string

const (
	StateDraft     State = "draft"
	StateSubmitted State = "submitted"
	StateApproved  State = "approved"
	StatePublished State = "published"
)

// Event is a trigger applied to a course.
type Event string

const (
	EventSubmit      Event = "submit_for_review"
	EventApprove     Event = "admin_approve"
	EventReject      Event = "admin_reject"
	EventPublish     Event = "teacher_publish"
	EventUnpublish   Event = "teacher_unpublish"
	EventContentEdit Event = "content_edit"
)

// Effect is a side effect the caller applies alongside the new flags.
type Effect string

const (
	// EffectOpenReview queues a pending CourseReview.
	EffectOpenReview Effect = "open_review"

	// EffectApproveReview closes the pending review as approved.
	EffectApproveReview Effect = "approve_review"

	// EffectRejectReview closes the pending review as rejected and stores feedback.
	EffectRejectReview Effect = "reject_review"

	EffectClearFeedback  Effect = "clear_feedback"
	EffectStampPublished Effect = "stamp_published"
)

// EditLock decides what happens to content edits while a course awaits review.
type EditLock string

const (
	EditLockEnforce  EditLock = "enforce"
	EditLockAdvisory EditLock = "advisory"
)

func ParseEditLock(s string) (EditLock, error) {
	switch EditLock(strings.ToLower(strings.TrimSpace(s))) {
	case "", EditLockEnforce:
		return EditLockEnforce, nil
	case EditLockAdvisory:
		return EditLockAdvisory, nil
	}
	return "", fmt.Errorf("unknown review edit lock %q", s)
}

// Flags mirrors the three lifecycle columns stored on a course.
type Flags struct {
	IsPublished          bool
	IsSubmittedForReview bool
	AdminApproved        bool
}

func flagsFor(s State) Flags {
	switch s {
	case StateSubmitted:
		return Flags{IsSubmittedForReview: true}
	case StateApproved:
		return Flags{AdminApproved: true}
	case StatePublished:
		return Flags{IsPublished: true, AdminApproved: true}
	default:
		return Flags{}
	}
}

// StateOf derives the review state. Publication wins over the other flags so a
// course that is visible to students is always reported as published.
func StateOf(f Flags) State {
	switch {
	case f.IsPublished:
		return StatePublished
	case f.IsSubmittedForReview:
		return StateSubmitted
	case f.AdminApproved:
		return StateApproved
	default:
		return StateDraft
	}
}

// ModuleShape is the part of a module the content guard looks at.
type ModuleShape struct {
	Title       string
	LessonCount int
}

// Snapshot is everything the machine needs to know about a course.
type Snapshot struct {
	Flags           Flags
	Modules         []ModuleShape
	TeacherVerified bool
}

// Input is one event with its payload. Feedback is only read on rejection.
type Input struct {
	Event    Event
	Feedback string
}

// Result is the outcome of Apply.
type Result struct {
	From     State
	To       State
	Flags    Flags
	Effects  []Effect
	Feedback string
	// Changed is false when the event left the course in the state it was in.
	Changed bool
}

func (r Result) Has(e Effect) bool {
	for _, eff := range r.Effects {
		if eff == e {
			return true
		}
	}
	return false
}

// Machine applies events to course snapshots.
type Machine struct {
	EditLock EditLock
}

func NewMachine(lock EditLock) Machine {
	if lock == "" {
		lock = EditLockEnforce
	}
	return Machine{EditLock: lock}
}

// CheckContent enforces the publishable-content invariant: at least one module and
// at least one lesson in every module.
func CheckContent(modules []ModuleShape) error {
	if len(modules) == 0 {
		return apperr.New(apperr.CodeCourseNoModules, "course has no modules")
	}
	for _, m := range modules {
		if m.LessonCount == 0 {
			return apperr.WithMetadata(
				apperr.CodeModuleNoLessons,
				fmt.Sprintf("module %q has no lessons", m.Title),
				map[string]string{"module": m.Title},
			)
		}
	}
	return nil
}

// Apply runs one event against a snapshot.
func (m Machine) Apply(s Snapshot, in Input) (Result, error) {
	from := StateOf(s.Flags)

	switch in.Event {
	case EventSubmit:
		switch from {
		case StateSubmitted:
			return unchanged(s.Flags), nil
		case StateDraft:
			if err := CheckContent(s.Modules); err != nil {
				return Result{}, err
			}
			return move(from, StateSubmitted, EffectOpenReview, EffectClearFeedback), nil
		}

	case EventApprove:
		if from == StateSubmitted {
			return move(from, StateApproved, EffectApproveReview), nil
		}

	case EventReject:
		if from == StateSubmitted {
			feedback := strings.TrimSpace(in.Feedback)
			if feedback == "" {
				return Result{}, apperr.New(apperr.CodeFeedbackRequired, "feedback is required to reject a course")
			}
			res := move(from, StateDraft, EffectRejectReview)
			res.Feedback = feedback
			return res, nil
		}

	case EventPublish:
		switch from {
		case StatePublished:
			return unchanged(s.Flags), nil
		case StateApproved:
			if !s.TeacherVerified {
				return Result{}, apperr.New(apperr.CodeTeacherNotVerified, "teacher not verified")
			}
			if err := CheckContent(s.Modules); err != nil {
				return Result{}, err
			}
			return move(from, StatePublished, EffectStampPublished), nil
		}

	case EventUnpublish:
		if from == StatePublished {
			return move(from, StateDraft), nil
		}

	case EventContentEdit:
		switch from {
		case StateDraft:
			return unchanged(s.Flags), nil
		case StateSubmitted:
			if m.EditLock == EditLockAdvisory {
				return unchanged(s.Flags), nil
			}
			return Result{}, apperr.New(apperr.CodePendingReview, "course is pending review and cannot be edited")
		case StateApproved, StatePublished:
			// Approval covered the old content; the edit goes back to the queue.
			return move(from, StateSubmitted, EffectOpenReview), nil
		}

	default:
		return Result{}, apperr.Invalid(fmt.Sprintf("unknown course event %q", in.Event))
	}

	return Result{}, apperr.WithMetadata(
		apperr.CodeInvalidTransition,
		fmt.Sprintf("cannot %s a course in state %s", in.Event, from),
		map[string]string{"from": string(from), "event": string(in.Event)},
	)
}

func move(from, to State, effects ...Effect) Result {
	return Result{From: from, To: to, Flags: flagsFor(to), Effects: effects, Changed: true}
}

func unchanged(f Flags) Result {
	s := StateOf(f)
	return Result{From: s, To: s, Flags: f}
}
