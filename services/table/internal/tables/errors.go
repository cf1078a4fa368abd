package tables

import "github.com/appetiteclub/tavola/pkg/fault"

var (
	ErrBranchNotFound      = fault.New(fault.NotFound, "branch_not_found", "Branch not found")
	ErrTableNotFound       = fault.New(fault.NotFound, "table_not_found", "Table not found")
	ErrReservationNotFound = fault.New(fault.NotFound, "reservation_not_found", "Reservation not found")

	ErrBranchInactive    = fault.New(fault.Rejected, "branch_inactive", "Branch is not accepting reservations")
	ErrOutsideHours      = fault.New(fault.Rejected, "outside_hours", "Branch is closed at the requested time")
	ErrTableOutOfService = fault.New(fault.Rejected, "table_out_of_service", "Table is not in service")
	ErrNoCapacity        = fault.New(fault.Rejected, "no_capacity", "No table can accommodate the party")
	ErrSlotConflict      = fault.New(fault.Rejected, "slot_conflict", "Table is not available at the requested time")
	ErrNoTablesFree      = fault.New(fault.Rejected, "no_tables_free", "No tables available at the requested time")
	ErrInvalidTransition = fault.New(fault.Rejected, "invalid_transition", "Invalid status transition")
	ErrDuplicateTables   = fault.New(fault.Validation, "duplicate_tables", "Table numbers must be unique within a branch")

	ErrCodeExhausted = fault.New(fault.Unexpected, "code_exhausted", "Could not generate a unique reservation code")
	ErrSlotBusy      = fault.New(fault.Unexpected, "slot_busy", "Reservation slot is busy, retry later")
	// ErrCodeTaken is returned by repositories when a reservation code
	// collides with a stored one.
	ErrCodeTaken = fault.New(fault.Unexpected, "code_taken", "Reservation code already in use")
)
