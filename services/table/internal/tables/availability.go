package tables

import (
	"context"
	"fmt"

	"github.com/appetiteclub/tavola/pkg/fault"
	"github.com/google/uuid"
)

// ConflictScope decides which reservations compete for a slot.
type ConflictScope string

const (
	// ScopeTable lets different tables of a branch be booked at the same time.
	ScopeTable ConflictScope = "table"
	// ScopeBranch treats any overlapping reservation in the branch as a conflict.
	ScopeBranch ConflictScope = "branch"
)

func ParseConflictScope(s string) ConflictScope {
	if ConflictScope(s) == ScopeBranch {
		return ScopeBranch
	}
	return ScopeTable
}

type AvailabilityQuery struct {
	BranchID  uuid.UUID
	Date      string
	Time      string
	Duration  int
	PartySize int
	// TableNumber restricts the check to one table when non zero.
	TableNumber int
	// ExcludeID ignores a reservation, so it does not conflict with itself
	// while being rescheduled.
	ExcludeID uuid.UUID
}

type Availability struct {
	Available      bool           `json:"available"`
	Tables         []Table        `json:"availableTables"`
	Message        string         `json:"message,omitempty"`
	OperatingHours OperatingHours `json:"branchHours"`
	// Reason is the rejection behind an unavailable answer.
	Reason error `json:"-"`
}

// TableSummary is the public view of a table that fits a party.
type TableSummary struct {
	TableNumber int      `json:"tableNumber"`
	Capacity    int      `json:"capacity"`
	TableType   string   `json:"tableType"`
	Features    []string `json:"features"`
}

// SuitableTables is the availability answer given to customers.
type SuitableTables struct {
	Available      bool           `json:"available"`
	Tables         []TableSummary `json:"suitableTables"`
	Message        string         `json:"message,omitempty"`
	OperatingHours OperatingHours `json:"branchHours"`
}

func (a *Availability) Summaries() *SuitableTables {
	summaries := make([]TableSummary, 0, len(a.Tables))
	for _, t := range a.Tables {
		features := t.Features
		if features == nil {
			features = []string{}
		}
		summaries = append(summaries, TableSummary{
			TableNumber: t.TableNumber,
			Capacity:    t.Capacity,
			TableType:   t.TableType,
			Features:    features,
		})
	}
	return &SuitableTables{
		Available:      a.Available,
		Tables:         summaries,
		Message:        a.Message,
		OperatingHours: a.OperatingHours,
	}
}

type Checker struct {
	branches     BranchRepo
	reservations ReservationRepo
	scope        ConflictScope
}

func NewChecker(branches BranchRepo, reservations ReservationRepo, scope ConflictScope) *Checker {
	return &Checker{branches: branches, reservations: reservations, scope: scope}
}

func (c *Checker) Scope() ConflictScope {
	return c.scope
}

// Check answers whether the query can be booked. It never writes.
func (c *Checker) Check(ctx context.Context, q AvailabilityQuery) (*Availability, error) {
	branch, err := c.branches.Get(ctx, q.BranchID)
	if err != nil {
		return nil, fault.Unexpectedf(err, "cannot load branch")
	}
	if branch == nil {
		return nil, ErrBranchNotFound
	}
	return c.evaluate(ctx, branch, q)
}

func (c *Checker) IsAvailable(ctx context.Context, q AvailabilityQuery) (bool, error) {
	a, err := c.Check(ctx, q)
	if err != nil {
		return false, err
	}
	return a.Available, nil
}

func (c *Checker) evaluate(ctx context.Context, branch *Branch, q AvailabilityQuery) (*Availability, error) {
	date, err := ParseDate(q.Date)
	if err != nil {
		return nil, fault.Validationf("date must use YYYY-MM-DD format")
	}
	at, err := ParseClock(q.Time)
	if err != nil {
		return nil, fault.Validationf("time must use HH:MM format")
	}
	duration := q.Duration
	if duration <= 0 {
		duration = DefaultDuration
	}

	result := &Availability{OperatingHours: branch.OperatingHours, Tables: []Table{}}

	if !branch.IsActive {
		return result.reject(ErrBranchInactive), nil
	}

	open, err := branch.OperatingHours.Contains(at)
	if err != nil {
		return nil, fault.Unexpectedf(err, "branch has invalid operating hours")
	}
	if !open {
		return result.reject(ErrOutsideHours), nil
	}

	candidates := branch.SuitableTables(q.PartySize)
	if q.TableNumber != 0 {
		candidates = withNumber(candidates, q.TableNumber)
	}
	if len(candidates) == 0 {
		msg := fmt.Sprintf("No table can accommodate a party of %d", q.PartySize)
		return result.reject(ErrNoCapacity.With(msg)), nil
	}

	window := NewInterval(date, at, duration)
	overlapping, err := c.reservations.ListOverlapping(ctx, branch.ID, window)
	if err != nil {
		return nil, fault.Unexpectedf(err, "cannot load reservations")
	}

	conflicts := make([]*Reservation, 0, len(overlapping))
	for _, r := range overlapping {
		if r.ID == q.ExcludeID {
			continue
		}
		conflicts = append(conflicts, r)
	}

	free := c.freeTables(candidates, conflicts)
	if len(free) == 0 {
		if q.TableNumber != 0 {
			return result.reject(ErrSlotConflict), nil
		}
		return result.reject(ErrNoTablesFree), nil
	}

	result.Available = true
	result.Tables = free
	return result, nil
}

func (c *Checker) freeTables(candidates []Table, conflicts []*Reservation) []Table {
	if c.scope == ScopeBranch {
		if len(conflicts) > 0 {
			return []Table{}
		}
		return candidates
	}

	occupied := map[int]bool{}
	for _, r := range conflicts {
		occupied[r.Table.TableNumber] = true
	}

	free := []Table{}
	for _, t := range candidates {
		if !occupied[t.TableNumber] {
			free = append(free, t)
		}
	}
	return free
}

func (a *Availability) reject(reason *fault.Error) *Availability {
	a.Available = false
	a.Message = reason.Message
	a.Reason = reason
	return a
}

func withNumber(tables []Table, number int) []Table {
	matched := []Table{}
	for _, t := range tables {
		if t.TableNumber == number {
			matched = append(matched, t)
		}
	}
	return matched
}
