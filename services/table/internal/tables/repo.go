package tables

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type BranchFilter struct {
	City       string
	ActiveOnly bool
}

type BranchRepo interface {
	Create(ctx context.Context, branch *Branch) error
	Get(ctx context.Context, id uuid.UUID) (*Branch, error)
	List(ctx context.Context, filter BranchFilter) ([]*Branch, error)
	Save(ctx context.Context, branch *Branch) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type ReservationFilter struct {
	BranchID      uuid.UUID
	Status        string
	Date          *time.Time
	CustomerEmail string
	// Ascending orders by date and time ascending; the default is newest first.
	Ascending bool
	Limit     int
	Offset    int
}

type ReservationRepo interface {
	CodeLookup
	Create(ctx context.Context, reservation *Reservation) error
	Get(ctx context.Context, id uuid.UUID) (*Reservation, error)
	GetByCode(ctx context.Context, code string) (*Reservation, error)
	List(ctx context.Context, filter ReservationFilter) ([]*Reservation, int64, error)
	// ListOverlapping returns the blocking reservations of a branch whose
	// interval overlaps window.
	ListOverlapping(ctx context.Context, branchID uuid.UUID, window Interval) ([]*Reservation, error)
	ListUpcoming(ctx context.Context, from time.Time, limit int) ([]*Reservation, error)
	CountByStatus(ctx context.Context) (map[string]int64, error)
	CountBetween(ctx context.Context, from, to time.Time) (int64, error)
	// Save replaces a reservation only if it still holds status from. It
	// reports whether the replace applied.
	Save(ctx context.Context, reservation *Reservation, from string) (bool, error)
	// UpdateStatus moves a reservation from one status to another only if it
	// still holds from. It reports whether the update applied.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to string) (bool, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// SlotGuard serializes the availability check and the write that claims a
// slot for one branch. fn must do all its reads and writes with the context
// it receives.
type SlotGuard interface {
	WithSlot(ctx context.Context, branchID uuid.UUID, fn func(ctx context.Context) error) error
}

type Repos struct {
	BranchRepo      BranchRepo
	ReservationRepo ReservationRepo
}
