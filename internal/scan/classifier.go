// Package scan turns a raw scanned code into a classified action and, for
// student codes, drives the check-in/check-out round trip. Classification
// itself never mutates anything.
package scan

import (
	"context"
	"strings"

	"frontdesk/internal/core"
	"frontdesk/internal/lookup"
	"frontdesk/internal/reminders"
	"frontdesk/internal/session"
)

// Action is what a scan should do next.
type Action string

const (
	ActionCheckIn   Action = "check_in"
	ActionCheckOut  Action = "check_out"
	ActionCooldown  Action = "cooldown"
	ActionBook      Action = "book"
	ActionEquipment Action = "equipment"
	ActionUnknown   Action = "unknown"
)

// Result of classifying (and optionally executing) a scan. Message is a
// stable business-level string for the kiosk screen.
type Result struct {
	Code      string               `json:"code"`
	Action    Action               `json:"action"`
	Entity    *lookup.Entity       `json:"entity,omitempty"`
	Message   string               `json:"message"`
	Session   *session.Session     `json:"session,omitempty"`
	Reminders []reminders.Reminder `json:"reminders,omitempty"`
	Welcome   string               `json:"welcome,omitempty"`
}

// Sessions is the slice of the registry the classifier needs.
type Sessions interface {
	ActiveFor(ctx context.Context, studentID string) (*session.Session, error)
	CheckIn(ctx context.Context, studentID string) (*session.CheckInResult, error)
	CheckOut(ctx context.Context, studentID string, reason session.EndReason) (*session.CheckOutResult, error)
}

// Classifier routes scans.
type Classifier struct {
	resolver lookup.Resolver
	sessions Sessions
	cooldown CooldownStore
}

// New creates a classifier.
func New(resolver lookup.Resolver, sessions Sessions, cooldown CooldownStore) *Classifier {
	return &Classifier{resolver: resolver, sessions: sessions, cooldown: cooldown}
}

// Classify decides what a code means without mutating anything. An
// unresolved code is a valid Unknown outcome, not an error.
func (c *Classifier) Classify(ctx context.Context, code string) (Result, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return Result{}, core.Invalid("scan code required")
	}

	entity, found, err := c.resolver.Resolve(ctx, code)
	if err != nil {
		if core.CodeOf(err) == "" {
			err = core.StoreUnavailable(err)
		}
		return Result{}, err
	}
	if !found {
		return Result{Code: code, Action: ActionUnknown, Message: "code not recognized"}, nil
	}

	res := Result{Code: code, Entity: &entity}
	switch entity.Kind {
	case lookup.KindStudent:
		return c.classifyStudent(ctx, code, res)
	case lookup.KindBook:
		res.Action = ActionBook
		res.Message = "book scanned"
	case lookup.KindEquipment:
		res.Action = ActionEquipment
		res.Message = "equipment scanned"
	default:
		res.Action = ActionUnknown
		res.Message = "code not recognized"
	}
	return res, nil
}

func (c *Classifier) classifyStudent(ctx context.Context, code string, res Result) (Result, error) {
	active, err := c.sessions.ActiveFor(ctx, res.Entity.ID)
	if err != nil {
		return Result{}, err
	}
	if active == nil {
		res.Action = ActionCheckIn
		res.Message = "ready to check in"
		return res, nil
	}

	recent, err := c.cooldown.Recent(ctx, code)
	if err != nil {
		return Result{}, core.StoreUnavailable(err)
	}
	if recent {
		res.Action = ActionCooldown
		res.Message = "please wait before scanning again"
		res.Session = active
		return res, nil
	}

	res.Action = ActionCheckOut
	res.Message = "ready to check out"
	res.Session = active
	return res, nil
}

// Handle classifies a scan and executes student intents. Book and equipment
// codes come back routed but unexecuted; those flows need a second input
// (which student) and run through their coordinators.
func (c *Classifier) Handle(ctx context.Context, code string) (Result, error) {
	res, err := c.Classify(ctx, code)
	if err != nil {
		return Result{}, err
	}

	switch res.Action {
	case ActionCheckIn:
		checkedIn, err := c.sessions.CheckIn(ctx, res.Entity.ID)
		if err != nil {
			return Result{}, err
		}
		// The session is committed; a lost stamp only weakens the
		// cooldown, so the scan still succeeds.
		_ = c.cooldown.Touch(ctx, res.Code)
		res.Session = &checkedIn.Session
		res.Reminders = checkedIn.Reminders
		res.Welcome = checkedIn.Welcome
		res.Message = "checked in"

	case ActionCheckOut:
		checkedOut, err := c.sessions.CheckOut(ctx, res.Entity.ID, session.ReasonManual)
		if err != nil {
			return Result{}, err
		}
		_ = c.cooldown.Touch(ctx, res.Code)
		res.Session = &checkedOut.Session
		if checkedOut.AlreadyClosed {
			res.Message = "already checked out"
		} else {
			res.Message = "checked out"
		}
	}
	return res, nil
}
