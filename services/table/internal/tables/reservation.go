package tables

import (
	"fmt"
	"time"

	"github.com/aquamarinepk/aqm"
	"github.com/google/uuid"
)

const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusSeated    = "seated"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusNoShow    = "no-show"
)

const (
	SourceWebsite = "website"
	SourcePhone   = "phone"
	SourceWalkIn  = "walk-in"
	SourcePartner = "partner"
)

// BlockingStatuses are the statuses whose reservations occupy their slot.
var BlockingStatuses = []string{StatusPending, StatusConfirmed}

var transitions = map[string][]string{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusSeated, StatusCancelled, StatusNoShow},
	StatusSeated:    {StatusCompleted},
}

// CanTransition reports whether a reservation may move from one status to
// another. Completed, cancelled and no-show are terminal.
func CanTransition(from, to string) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func IsTerminal(status string) bool {
	return len(transitions[status]) == 0
}

func isBlocking(status string) bool {
	for _, s := range BlockingStatuses {
		if s == status {
			return true
		}
	}
	return false
}

type CustomerSnapshot struct {
	Name  string `json:"name" bson:"name" validate:"required"`
	Email string `json:"email" bson:"email" validate:"required,email"`
	Phone string `json:"phone" bson:"phone" validate:"required"`
}

// TableSnapshot records the table as it was when the reservation was made.
type TableSnapshot struct {
	TableNumber int `json:"tableNumber" bson:"table_number"`
	Capacity    int `json:"capacity" bson:"capacity"`
}

type Reservation struct {
	ID              uuid.UUID        `json:"id" bson:"_id"`
	Customer        CustomerSnapshot `json:"customer" bson:"customer"`
	BranchID        uuid.UUID        `json:"branch" bson:"branch_id"`
	Table           TableSnapshot    `json:"table" bson:"table"`
	Date            time.Time        `json:"date" bson:"date"`
	Time            string           `json:"time" bson:"time"`
	StartsAt        time.Time        `json:"startsAt" bson:"starts_at"`
	EndsAt          time.Time        `json:"endsAt" bson:"ends_at"`
	PartySize       int              `json:"partySize" bson:"party_size"`
	Duration        int              `json:"duration" bson:"duration"`
	SpecialRequests string           `json:"specialRequests" bson:"special_requests"`
	Status          string           `json:"status" bson:"status"`
	ReservationCode string           `json:"reservationCode" bson:"reservation_code"`
	Source          string           `json:"source" bson:"source"`
	CreatedAt       time.Time        `json:"createdAt" bson:"created_at"`
	UpdatedAt       time.Time        `json:"updatedAt" bson:"updated_at"`
}

func NewReservation() *Reservation {
	return &Reservation{
		ID:       aqm.GenerateNewID(),
		Status:   StatusPending,
		Source:   SourceWebsite,
		Duration: DefaultDuration,
	}
}

func (r *Reservation) GetID() uuid.UUID {
	return r.ID
}

func (r *Reservation) ResourceType() string {
	return "reservation"
}

func (r *Reservation) EnsureID() {
	if r.ID == uuid.Nil {
		r.ID = aqm.GenerateNewID()
	}
}

func (r *Reservation) BeforeCreate() {
	r.EnsureID()
	now := time.Now().UTC()
	r.CreatedAt = now
	r.UpdatedAt = now
}

func (r *Reservation) BeforeUpdate() {
	r.UpdatedAt = time.Now().UTC()
}

// Schedule places the reservation at date and time for the given minutes.
func (r *Reservation) Schedule(date time.Time, at ClockTime, minutes int) {
	window := NewInterval(date, at, minutes)
	r.Date = startOfDay(date)
	r.Time = at.String()
	r.Duration = minutes
	r.StartsAt = window.Start
	r.EndsAt = window.End
}

func (r *Reservation) Interval() Interval {
	return Interval{Start: r.StartsAt, End: r.EndsAt}
}

// Blocks reports whether the reservation holds its table.
func (r *Reservation) Blocks() bool {
	return isBlocking(r.Status)
}

func (r *Reservation) IsTerminal() bool {
	return IsTerminal(r.Status)
}

// TransitionTo moves the reservation to status when the lifecycle allows it.
func (r *Reservation) TransitionTo(status string) error {
	if !CanTransition(r.Status, status) {
		return ErrInvalidTransition.With(fmt.Sprintf("Invalid status transition from %s to %s", r.Status, status))
	}
	r.Status = status
	r.BeforeUpdate()
	return nil
}
