package models

import "time"

// OperatorEntry is the entry shape shown on the secretary desk.
type OperatorEntry struct {
	ID          string  `json:"id"`
	PatientID   *string `json:"patient_id"`
	DisplayName string  `json:"display_name"`
	Age         *int    `json:"age"`
	PhoneNumber string  `json:"phone_number"`
	Complaint   string  `json:"complaint"`
	QueueNumber int     `json:"queue_number"`
	Status      Status  `json:"status"`
}

func NewOperatorEntry(e *QueueEntry) *OperatorEntry {
	if e == nil {
		return nil
	}
	out := &OperatorEntry{
		ID:          e.ID,
		DisplayName: e.DisplayName,
		Age:         e.Age,
		PhoneNumber: e.PhoneNumber,
		Complaint:   e.Complaint,
		QueueNumber: e.QueueNumber,
		Status:      e.Status,
	}
	if e.PatientID != "" {
		pid := e.PatientID
		out.PatientID = &pid
	}
	return out
}

// LaneView is the current / on-deck view of one lane. Waiting holds every
// waiting entry after Current in admission order.
type LaneView struct {
	Lane    Lane            `json:"lane"`
	Current *OperatorEntry  `json:"current"`
	Next1   *OperatorEntry  `json:"next1"`
	Next2   *OperatorEntry  `json:"next2"`
	Waiting []OperatorEntry `json:"waiting"`
}

type OperatorSnapshot struct {
	Priority           LaneView  `json:"priority"`
	Regular            LaneView  `json:"regular"`
	GeneratedAt        time.Time `json:"generated_at"`
	ResyncAfterSeconds int       `json:"resync_after_seconds"`
}

// DisplayEntry is the entry shape shown on the waiting-room screen.
type DisplayEntry struct {
	ID           string `json:"id"`
	QueueNumber  int    `json:"queue_number"`
	Lane         Lane   `json:"lane"`
	Status       Status `json:"status"`
	IsNewPatient bool   `json:"is_new_patient"`
}

func NewDisplayEntry(e *QueueEntry) DisplayEntry {
	return DisplayEntry{
		ID:           e.ID,
		QueueNumber:  e.QueueNumber,
		Lane:         e.Lane,
		Status:       e.Status,
		IsNewPatient: e.IsNewPatient(),
	}
}

type DisplaySnapshot struct {
	PriorityQueue      []DisplayEntry `json:"priority_queue"`
	RegularQueue       []DisplayEntry `json:"regular_queue"`
	GeneratedAt        time.Time      `json:"generated_at"`
	ResyncAfterSeconds int            `json:"resync_after_seconds"`
}
