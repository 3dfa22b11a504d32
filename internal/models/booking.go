package models

// BookingStatus is the outcome of a booking attempt.
type BookingStatus string

const (
	BookingStatusBooked   BookingStatus = "booked"
	BookingStatusConflict BookingStatus = "conflict"
)

// BookingResult is returned for every booking attempt. A conflict is an outcome, not an error.
type BookingResult struct {
	Status       BookingStatus  `json:"status"`
	Event        *ScheduleEvent `json:"event,omitempty"`
	Conflicts    []EventSummary `json:"conflicts,omitempty"`
	Alternatives []Slot         `json:"alternatives,omitempty"`
	Reason       string         `json:"reason,omitempty"`
}

// Booked reports whether the event was stored.
func (r *BookingResult) Booked() bool {
	return r != nil && r.Status == BookingStatusBooked
}
