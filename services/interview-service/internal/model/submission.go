package model

import (
	"errors"
	"time"
)

var (
	ErrNotFound         = errors.New("submission not found")
	ErrAlreadyConfirmed = errors.New("interview schedule already selected")
	// ErrScheduleRejected means the store refused the instant, e.g. it lies outside
	// the stored window.
	ErrScheduleRejected = errors.New("interview schedule rejected")
)

// StatusInterviewScheduled is the submission status once the adopter has
// confirmed an interview instant.
const StatusInterviewScheduled = "interview_scheduled"

// Submission is an adoption application as seen by the interview scheduler.
type Submission struct {
	ID        string
	Status    string
	Interview *Interview
}

// Interview is nil on a Submission until the shelter has offered a window.
type Interview struct {
	AvailableFrom    time.Time
	AvailableTo      time.Time
	Method           string
	SelectedSchedule *time.Time
}
