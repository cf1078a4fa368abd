package tables

import (
	"context"
	"fmt"

	"github.com/appetiteclub/tavola/pkg/validation"
	"github.com/google/uuid"
)

func ValidateBranchCreate(ctx context.Context, req BranchCreateRequest) []string {
	errors := validation.Struct(req)
	return append(errors, tableNumberErrors(req.Tables)...)
}

func ValidateBranchUpdate(ctx context.Context, id uuid.UUID, req BranchUpdateRequest) []string {
	errors := validation.Struct(req)

	if id == uuid.Nil {
		errors = append(errors, "invalid branch id")
	}
	if req.Name != nil && *req.Name == "" {
		errors = append(errors, "name cannot be empty")
	}
	if req.Address != nil {
		errors = append(errors, validation.Struct(*req.Address)...)
	}
	if req.Contact != nil {
		errors = append(errors, validation.Struct(*req.Contact)...)
	}
	if req.OperatingHours != nil {
		errors = append(errors, validation.Struct(*req.OperatingHours)...)
	}
	errors = append(errors, tableNumberErrors(req.Tables)...)

	return errors
}

func ValidateBranchTables(ctx context.Context, req BranchTablesRequest) []string {
	errors := validation.Struct(req)
	return append(errors, tableNumberErrors(req.Tables)...)
}

func ValidateAvailability(ctx context.Context, req AvailabilityRequest) []string {
	errors := validation.Struct(req)
	if req.Branch() == uuid.Nil {
		errors = append(errors, "branch is required")
	}
	return errors
}

func ValidateReservationCreate(ctx context.Context, req ReservationCreateRequest) []string {
	errors := validation.Struct(req)
	if req.BranchID == uuid.Nil {
		errors = append(errors, "branch is required")
	}
	return errors
}

func ValidateReservationSelfUpdate(ctx context.Context, req ReservationSelfUpdateRequest) []string {
	return validation.Struct(req)
}

func ValidateReservationUpdate(ctx context.Context, req ReservationUpdateRequest) []string {
	errors := validation.Struct(req)
	if req.Customer != nil {
		errors = append(errors, validation.Struct(*req.Customer)...)
	}
	if req.BranchID != nil && *req.BranchID == uuid.Nil {
		errors = append(errors, "branch cannot be empty")
	}
	return errors
}

func ValidateReservationStatus(ctx context.Context, req ReservationStatusRequest) []string {
	return validation.Struct(req)
}

func tableNumberErrors(tables []Table) []string {
	var errors []string
	for _, n := range duplicateTableNumbers(tables) {
		errors = append(errors, fmt.Sprintf("table number %d is used more than once", n))
	}
	return errors
}
