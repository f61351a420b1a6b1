package models

import (
	"fmt"
	"strings"
	"time"
)

// Lane adalah jalur antrian walk-in: Priority atau Regular.
type Lane string

const (
	LanePriority Lane = "Priority"
	LaneRegular  Lane = "Regular"
)

// Lanes returns every lane in display order.
func Lanes() []Lane {
	return []Lane{LanePriority, LaneRegular}
}

// ParseLane accepts a lane name in any letter case.
func ParseLane(raw string) (Lane, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "priority":
		return LanePriority, nil
	case "regular":
		return LaneRegular, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidLane, raw)
}

type Status string

const (
	StatusWaiting    Status = "Waiting"
	StatusInProgress Status = "In Progress"
	StatusCompleted  Status = "Completed"
	StatusCancelled  Status = "Cancelled"
)

// LiveStatuses are the statuses that take part in current/next selection.
var LiveStatuses = []Status{StatusWaiting, StatusInProgress}

func ParseStatus(raw string) (Status, error) {
	key := strings.ToLower(strings.TrimSpace(raw))
	key = strings.NewReplacer(" ", "", "_", "", "-", "").Replace(key)
	switch key {
	case "waiting":
		return StatusWaiting, nil
	case "inprogress":
		return StatusInProgress, nil
	case "completed":
		return StatusCompleted, nil
	case "cancelled", "canceled":
		return StatusCancelled, nil
	}
	return "", fmt.Errorf("unknown queue status %q", raw)
}

func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// transitions lists, per current status, the statuses it may move to.
var transitions = map[Status][]Status{
	StatusWaiting:    {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusCompleted, StatusCancelled},
}

func CanTransition(from, to Status) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// QueueEntry mewakili satu pasien walk-in di dalam antrian.
type QueueEntry struct {
	ID          string    `json:"id"`
	PatientID   string    `json:"patient_id,omitempty"`
	DisplayName string    `json:"display_name"`
	Age         *int      `json:"age"`
	PhoneNumber string    `json:"phone_number"`
	Complaint   string    `json:"complaint"`
	Lane        Lane      `json:"lane"`
	Status      Status    `json:"status"`
	QueueNumber int       `json:"queue_number"`
	AdmittedAt  time.Time `json:"admitted_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// IsNewPatient reports whether the entry belongs to a walk-in without a
// registered patient record.
func (e *QueueEntry) IsNewPatient() bool {
	return e.PatientID == ""
}

// Clone returns a copy that shares no pointers with e.
func (e *QueueEntry) Clone() *QueueEntry {
	c := *e
	if e.Age != nil {
		age := *e.Age
		c.Age = &age
	}
	return &c
}

// PatientSnapshot is the patient-facing data copied into a queue entry at
// admission time.
type PatientSnapshot struct {
	PatientID   string `json:"patient_id"`
	DisplayName string `json:"display_name"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Age         *int   `json:"age"`
	DateOfBirth string `json:"date_of_birth"`
	PhoneNumber string `json:"phone_number"`
	Complaint   string `json:"complaint"`
}

const dateLayout = "2006-01-02"

// Normalize fills DisplayName from the name parts and Age from DateOfBirth
// when they are missing, and rejects snapshots that cannot be shown.
func (p PatientSnapshot) Normalize(now time.Time) (PatientSnapshot, error) {
	p.PatientID = strings.TrimSpace(p.PatientID)
	p.DisplayName = strings.TrimSpace(p.DisplayName)
	if p.DisplayName == "" {
		p.DisplayName = strings.TrimSpace(strings.TrimSpace(p.FirstName) + " " + strings.TrimSpace(p.LastName))
	}
	if p.DisplayName == "" {
		return p, fmt.Errorf("%w: display_name or first_name/last_name is required", ErrInvalidPatient)
	}

	if p.Age == nil && p.DateOfBirth != "" {
		dob, err := time.Parse(dateLayout, p.DateOfBirth)
		if err != nil {
			return p, fmt.Errorf("%w: date_of_birth must be YYYY-MM-DD", ErrInvalidPatient)
		}
		if dob.After(now) {
			return p, fmt.Errorf("%w: date_of_birth is in the future", ErrInvalidPatient)
		}
		age := AgeOn(dob, now)
		p.Age = &age
	}
	if p.Age != nil && *p.Age < 0 {
		return p, fmt.Errorf("%w: age must not be negative", ErrInvalidPatient)
	}
	return p, nil
}

// AgeOn returns the age in whole years of someone born on dob at the date of now.
func AgeOn(dob, now time.Time) int {
	age := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		age--
	}
	return age
}
