package tables

import "github.com/google/uuid"

type BranchCreateRequest struct {
	Name           string         `json:"name" validate:"required"`
	Address        Address        `json:"address"`
	Contact        Contact        `json:"contact"`
	OperatingHours OperatingHours `json:"operatingHours"`
	Tables         []Table        `json:"tables" validate:"dive"`
	Amenities      []string       `json:"amenities" validate:"omitempty,dive,oneof=wifi parking valet live-music kids-zone wheelchair-accessible"`
	IsActive       *bool          `json:"isActive,omitempty"`
}

type BranchUpdateRequest struct {
	Name           *string         `json:"name,omitempty"`
	Address        *Address        `json:"address,omitempty" validate:"-"`
	Contact        *Contact        `json:"contact,omitempty" validate:"-"`
	OperatingHours *OperatingHours `json:"operatingHours,omitempty" validate:"-"`
	Tables         []Table         `json:"tables,omitempty" validate:"omitempty,dive"`
	Amenities      []string        `json:"amenities,omitempty" validate:"omitempty,dive,oneof=wifi parking valet live-music kids-zone wheelchair-accessible"`
	IsActive       *bool           `json:"isActive,omitempty"`
}

type BranchTablesRequest struct {
	Tables []Table `json:"tables" validate:"dive"`
}

type BranchStatusRequest struct {
	IsActive *bool `json:"isActive"`
}

type AvailabilityRequest struct {
	BranchID uuid.UUID `json:"branch"`
	// LegacyBranchID accepts the older branchId key.
	LegacyBranchID uuid.UUID `json:"branchId"`
	Date        string    `json:"date" validate:"required,isodate"`
	Time        string    `json:"time" validate:"required,clock"`
	PartySize   int       `json:"partySize" validate:"min=1,max=20"`
	Duration    int       `json:"duration" validate:"omitempty,min=1,max=720"`
	TableNumber int       `json:"tableNumber" validate:"omitempty,min=1"`
}

func (r AvailabilityRequest) Branch() uuid.UUID {
	if r.BranchID != uuid.Nil {
		return r.BranchID
	}
	return r.LegacyBranchID
}

func (r AvailabilityRequest) Query() AvailabilityQuery {
	return AvailabilityQuery{
		BranchID:    r.Branch(),
		Date:        r.Date,
		Time:        r.Time,
		Duration:    r.Duration,
		PartySize:   r.PartySize,
		TableNumber: r.TableNumber,
	}
}

type ReservationCreateRequest struct {
	Customer        CustomerSnapshot `json:"customer"`
	BranchID        uuid.UUID        `json:"branch"`
	TableNumber     int              `json:"tableNumber" validate:"min=1"`
	Date            string           `json:"date" validate:"required,isodate"`
	Time            string           `json:"time" validate:"required,clock"`
	PartySize       int              `json:"partySize" validate:"min=1,max=20"`
	Duration        int              `json:"duration" validate:"omitempty,min=1,max=720"`
	SpecialRequests string           `json:"specialRequests" validate:"max=500"`
	Source          string           `json:"source" validate:"omitempty,oneof=website phone walk-in partner"`
}

// ReservationSelfUpdateRequest carries the fields a customer may change on
// their own reservation.
type ReservationSelfUpdateRequest struct {
	PartySize       *int    `json:"partySize,omitempty" validate:"omitempty,min=1,max=20"`
	SpecialRequests *string `json:"specialRequests,omitempty" validate:"omitempty,max=500"`
}

type ReservationUpdateRequest struct {
	Customer        *CustomerSnapshot `json:"customer,omitempty" validate:"-"`
	BranchID        *uuid.UUID        `json:"branch,omitempty"`
	TableNumber     *int              `json:"tableNumber,omitempty" validate:"omitempty,min=1"`
	Date            *string           `json:"date,omitempty" validate:"omitempty,isodate"`
	Time            *string           `json:"time,omitempty" validate:"omitempty,clock"`
	PartySize       *int              `json:"partySize,omitempty" validate:"omitempty,min=1,max=20"`
	Duration        *int              `json:"duration,omitempty" validate:"omitempty,min=1,max=720"`
	SpecialRequests *string           `json:"specialRequests,omitempty" validate:"omitempty,max=500"`
	Status          *string           `json:"status,omitempty" validate:"omitempty,oneof=pending confirmed seated completed cancelled no-show"`
	Source          *string           `json:"source,omitempty" validate:"omitempty,oneof=website phone walk-in partner"`
}

func (r ReservationUpdateRequest) reschedules() bool {
	return r.BranchID != nil || r.TableNumber != nil || r.Date != nil ||
		r.Time != nil || r.PartySize != nil || r.Duration != nil
}

type ReservationStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending confirmed seated completed cancelled no-show"`
}
