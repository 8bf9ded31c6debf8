package models

import (
	"errors"
	"fmt"
	"strings"
)

// Status is the lifecycle label of an invoice. It never affects totals.
type Status string

const (
	StatusDraft   Status = "draft"
	StatusSent    Status = "sent"
	StatusPaid    Status = "paid"
	StatusOverdue Status = "overdue"
)

// Statuses lists every status in display order.
var Statuses = []Status{StatusDraft, StatusSent, StatusPaid, StatusOverdue}

// ErrInvalidStatus is returned for labels outside the four known statuses.
var ErrInvalidStatus = errors.New("invalid invoice status")

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusSent, StatusPaid, StatusOverdue:
		return true
	}
	return false
}

func (s Status) String() string { return string(s) }

// ParseStatus normalizes and validates a status label.
func ParseStatus(v string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(v)))
	if !s.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, v)
	}
	return s, nil
}

// CanTransition reports whether an invoice may move from one status to
// another. Status changes are driven by events outside the system (a payment
// arriving, a deadline passing), so any valid status may follow any other.
func CanTransition(from, to Status) bool {
	return from.Valid() && to.Valid()
}
