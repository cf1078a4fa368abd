package tables

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/appetiteclub/tavola/pkg"
	"github.com/appetiteclub/tavola/pkg/fault"
	"github.com/aquamarinepk/aqm"
	"github.com/aquamarinepk/aqm/events"
	"github.com/google/uuid"
)

const (
	UpcomingLimit = 10
	eventSource   = "table-service"
)

// BranchService manages the branch catalog.
type BranchService struct {
	branches BranchRepo
	logger   aqm.Logger
}

func NewBranchService(branches BranchRepo, logger aqm.Logger) *BranchService {
	return &BranchService{branches: branches, logger: logger}
}

func (s *BranchService) Create(ctx context.Context, req BranchCreateRequest) (*Branch, error) {
	if errs := ValidateBranchCreate(ctx, req); len(errs) > 0 {
		return nil, validationError(errs)
	}

	branch := NewBranch()
	branch.Name = req.Name
	branch.Address = req.Address
	branch.Contact = req.Contact
	branch.OperatingHours = req.OperatingHours
	branch.Tables = req.Tables
	branch.Amenities = req.Amenities
	if req.IsActive != nil {
		branch.IsActive = *req.IsActive
	}
	branch.BeforeCreate()

	if err := s.branches.Create(ctx, branch); err != nil {
		return nil, fault.Unexpectedf(err, "cannot create branch")
	}
	return branch, nil
}

func (s *BranchService) Get(ctx context.Context, id uuid.UUID) (*Branch, error) {
	branch, err := s.branches.Get(ctx, id)
	if err != nil {
		return nil, fault.Unexpectedf(err, "cannot load branch")
	}
	if branch == nil {
		return nil, ErrBranchNotFound
	}
	return branch, nil
}

func (s *BranchService) List(ctx context.Context, filter BranchFilter) ([]*Branch, error) {
	branches, err := s.branches.List(ctx, filter)
	if err != nil {
		return nil, fault.Unexpectedf(err, "cannot list branches")
	}
	return branches, nil
}

// ListByCity returns the active branches of a city, matched case insensitively.
func (s *BranchService) ListByCity(ctx context.Context, city string) ([]*Branch, error) {
	return s.List(ctx, BranchFilter{City: strings.TrimSpace(city), ActiveOnly: true})
}

func (s *BranchService) Update(ctx context.Context, id uuid.UUID, req BranchUpdateRequest) (*Branch, error) {
	if errs := ValidateBranchUpdate(ctx, id, req); len(errs) > 0 {
		return nil, validationError(errs)
	}

	branch, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		branch.Name = *req.Name
	}
	if req.Address != nil {
		branch.Address = *req.Address
	}
	if req.Contact != nil {
		branch.Contact = *req.Contact
	}
	if req.OperatingHours != nil {
		branch.OperatingHours = *req.OperatingHours
	}
	if req.Tables != nil {
		branch.Tables = req.Tables
	}
	if req.Amenities != nil {
		branch.Amenities = req.Amenities
	}
	if req.IsActive != nil {
		branch.IsActive = *req.IsActive
	}

	return branch, s.save(ctx, branch)
}

func (s *BranchService) ReplaceTables(ctx context.Context, id uuid.UUID, req BranchTablesRequest) (*Branch, error) {
	if errs := ValidateBranchTables(ctx, req); len(errs) > 0 {
		return nil, validationError(errs)
	}

	branch, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	branch.Tables = req.Tables

	return branch, s.save(ctx, branch)
}

func (s *BranchService) SetActive(ctx context.Context, id uuid.UUID, active bool) (*Branch, error) {
	branch, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	branch.IsActive = active

	return branch, s.save(ctx, branch)
}

func (s *BranchService) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.branches.Delete(ctx, id); err != nil {
		return fault.Unexpectedf(err, "cannot delete branch")
	}
	return nil
}

func (s *BranchService) save(ctx context.Context, branch *Branch) error {
	branch.BeforeUpdate()
	if err := s.branches.Save(ctx, branch); err != nil {
		return fault.Unexpectedf(err, "cannot update branch")
	}
	return nil
}

type ReservationStats struct {
	Total     int64            `json:"totalReservations"`
	Today     int64            `json:"todayReservations"`
	Pending   int64            `json:"pendingReservations"`
	Confirmed int64            `json:"confirmedReservations"`
	Completed int64            `json:"completedReservations"`
	ByStatus  map[string]int64 `json:"byStatus"`
}

type ReservationPage struct {
	Reservations []*Reservation `json:"reservations"`
	Total        int64          `json:"total"`
	Page         int            `json:"page"`
	Pages        int            `json:"pages"`
}

type ReservationServiceConfig struct {
	Scope        ConflictScope
	CodeAttempts int
}

// ReservationService runs the reservation lifecycle. Every write that claims
// a slot goes through the slot guard so the availability check and the write
// cannot interleave with another claim on the same branch.
type ReservationService struct {
	branches     BranchRepo
	reservations ReservationRepo
	checker      *Checker
	guard        SlotGuard
	codes        *CodeGenerator
	codeAttempts int
	publisher    events.Publisher
	logger       aqm.Logger
	now          func() time.Time
}

func NewReservationService(repos Repos, guard SlotGuard, publisher events.Publisher, cfg ReservationServiceConfig, logger aqm.Logger) *ReservationService {
	if guard == nil {
		guard = NewLocalSlotGuard()
	}
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	return &ReservationService{
		branches:     repos.BranchRepo,
		reservations: repos.ReservationRepo,
		checker:      NewChecker(repos.BranchRepo, repos.ReservationRepo, cfg.Scope),
		guard:        guard,
		codes:        NewCodeGenerator(repos.ReservationRepo, cfg.CodeAttempts),
		codeAttempts: cfg.CodeAttempts,
		publisher:    publisher,
		logger:       logger,
		now:          time.Now,
	}
}

func (s *ReservationService) Checker() *Checker {
	return s.checker
}

func (s *ReservationService) Create(ctx context.Context, req ReservationCreateRequest) (*Reservation, error) {
	if errs := ValidateReservationCreate(ctx, req); len(errs) > 0 {
		return nil, validationError(errs)
	}

	branch, err := s.loadBranch(ctx, req.BranchID)
	if err != nil {
		return nil, err
	}
	if !branch.IsActive {
		return nil, ErrBranchInactive
	}
	table, err := claimableTable(branch, req.TableNumber, req.PartySize)
	if err != nil {
		return nil, err
	}

	date, at, err := parseSlot(req.Date, req.Time)
	if err != nil {
		return nil, err
	}
	duration := req.Duration
	if duration == 0 {
		duration = DefaultDuration
	}

	reservation := NewReservation()
	reservation.Customer = normalizeCustomer(req.Customer)
	reservation.BranchID = branch.ID
	reservation.Table = TableSnapshot{TableNumber: table.TableNumber, Capacity: table.Capacity}
	reservation.PartySize = req.PartySize
	reservation.SpecialRequests = req.SpecialRequests
	if req.Source != "" {
		reservation.Source = req.Source
	}
	reservation.Schedule(date, at, duration)

	query := AvailabilityQuery{
		BranchID:    branch.ID,
		Date:        req.Date,
		Time:        req.Time,
		Duration:    duration,
		PartySize:   req.PartySize,
		TableNumber: table.TableNumber,
	}

	err = s.withCodeRetry(ctx, func() error {
		return s.guard.WithSlot(ctx, branch.ID, func(ctx context.Context) error {
			availability, err := s.checker.evaluate(ctx, branch, query)
			if err != nil {
				return err
			}
			if !availability.Available {
				return availability.Reason
			}

			code, err := s.codes.Generate(ctx)
			if err != nil {
				return err
			}
			reservation.ReservationCode = code
			reservation.BeforeCreate()

			return s.reservations.Create(ctx, reservation)
		})
	})
	if err != nil {
		return nil, s.classify(err, "cannot create reservation")
	}

	s.publish(ctx, pkg.EventReservationCreated, reservation, "")
	return reservation, nil
}

func (s *ReservationService) Get(ctx context.Context, id uuid.UUID) (*Reservation, error) {
	reservation, err := s.reservations.Get(ctx, id)
	if err != nil {
		return nil, fault.Unexpectedf(err, "cannot load reservation")
	}
	if reservation == nil {
		return nil, ErrReservationNotFound
	}
	return reservation, nil
}

// GetMine returns the reservation only when it belongs to email. A foreign
// reservation is reported as missing.
func (s *ReservationService) GetMine(ctx context.Context, id uuid.UUID, email string) (*Reservation, error) {
	reservation, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !sameEmail(reservation.Customer.Email, email) {
		return nil, ErrReservationNotFound
	}
	return reservation, nil
}

func (s *ReservationService) ListMine(ctx context.Context, email string) ([]*Reservation, error) {
	list, _, err := s.reservations.List(ctx, ReservationFilter{CustomerEmail: normalizeEmail(email)})
	if err != nil {
		return nil, fault.Unexpectedf(err, "cannot list reservations")
	}
	return list, nil
}

func (s *ReservationService) UpdateMine(ctx context.Context, id uuid.UUID, email string, req ReservationSelfUpdateRequest) (*Reservation, error) {
	if errs := ValidateReservationSelfUpdate(ctx, req); len(errs) > 0 {
		return nil, validationError(errs)
	}

	reservation, err := s.GetMine(ctx, id, email)
	if err != nil {
		return nil, err
	}
	if reservation.IsTerminal() {
		return nil, ErrInvalidTransition.With("Reservation can no longer be changed")
	}

	if req.PartySize != nil {
		if *req.PartySize > reservation.Table.Capacity {
			return nil, capacityError(reservation.Table.Capacity)
		}
		reservation.PartySize = *req.PartySize
	}
	if req.SpecialRequests != nil {
		reservation.SpecialRequests = *req.SpecialRequests
	}

	reservation.BeforeUpdate()
	if err := s.save(ctx, reservation, reservation.Status); err != nil {
		return nil, s.classify(err, "cannot update reservation")
	}

	s.publish(ctx, pkg.EventReservationUpdated, reservation, "")
	return reservation, nil
}

func (s *ReservationService) CancelMine(ctx context.Context, id uuid.UUID, email string) (*Reservation, error) {
	reservation, err := s.GetMine(ctx, id, email)
	if err != nil {
		return nil, err
	}
	if reservation.Status == StatusCancelled {
		return reservation, nil
	}
	return s.transition(ctx, reservation, StatusCancelled)
}

// Update applies a staff edit. Changes to branch, table, date, time, party
// size or duration are checked against the other reservations first.
func (s *ReservationService) Update(ctx context.Context, id uuid.UUID, req ReservationUpdateRequest) (*Reservation, error) {
	if errs := ValidateReservationUpdate(ctx, req); len(errs) > 0 {
		return nil, validationError(errs)
	}

	reservation, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	previousStatus := reservation.Status

	if req.Status != nil && *req.Status != reservation.Status {
		if err := reservation.TransitionTo(*req.Status); err != nil {
			return nil, err
		}
	}
	if req.Customer != nil {
		reservation.Customer = normalizeCustomer(*req.Customer)
	}
	if req.SpecialRequests != nil {
		reservation.SpecialRequests = *req.SpecialRequests
	}
	if req.Source != nil {
		reservation.Source = *req.Source
	}

	if !req.reschedules() {
		reservation.BeforeUpdate()
		if err := s.save(ctx, reservation, previousStatus); err != nil {
			return nil, s.classify(err, "cannot update reservation")
		}
		s.publishUpdate(ctx, reservation, previousStatus)
		return reservation, nil
	}

	branchID := reservation.BranchID
	if req.BranchID != nil {
		branchID = *req.BranchID
	}
	branch, err := s.loadBranch(ctx, branchID)
	if err != nil {
		return nil, err
	}

	tableNumber := reservation.Table.TableNumber
	if req.TableNumber != nil {
		tableNumber = *req.TableNumber
	}
	partySize := reservation.PartySize
	if req.PartySize != nil {
		partySize = *req.PartySize
	}
	table, err := claimableTable(branch, tableNumber, partySize)
	if err != nil {
		return nil, err
	}

	dateStr := FormatDate(reservation.Date)
	if req.Date != nil {
		dateStr = *req.Date
	}
	timeStr := reservation.Time
	if req.Time != nil {
		timeStr = *req.Time
	}
	duration := reservation.Duration
	if req.Duration != nil {
		duration = *req.Duration
	}
	date, at, err := parseSlot(dateStr, timeStr)
	if err != nil {
		return nil, err
	}

	reservation.BranchID = branch.ID
	reservation.Table = TableSnapshot{TableNumber: table.TableNumber, Capacity: table.Capacity}
	reservation.PartySize = partySize
	reservation.Schedule(date, at, duration)
	reservation.BeforeUpdate()

	query := AvailabilityQuery{
		BranchID:    branch.ID,
		Date:        dateStr,
		Time:        timeStr,
		Duration:    duration,
		PartySize:   partySize,
		TableNumber: table.TableNumber,
		ExcludeID:   reservation.ID,
	}

	err = s.guard.WithSlot(ctx, branch.ID, func(ctx context.Context) error {
		if reservation.Blocks() {
			availability, err := s.checker.evaluate(ctx, branch, query)
			if err != nil {
				return err
			}
			if !availability.Available {
				return availability.Reason
			}
		}
		return s.save(ctx, reservation, previousStatus)
	})
	if err != nil {
		return nil, s.classify(err, "cannot update reservation")
	}

	s.publishUpdate(ctx, reservation, previousStatus)
	return reservation, nil
}

// TransitionStatus moves a reservation along its lifecycle.
func (s *ReservationService) TransitionStatus(ctx context.Context, id uuid.UUID, req ReservationStatusRequest) (*Reservation, error) {
	if errs := ValidateReservationStatus(ctx, req); len(errs) > 0 {
		return nil, validationError(errs)
	}

	reservation, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, reservation, req.Status)
}

func (s *ReservationService) transition(ctx context.Context, reservation *Reservation, status string) (*Reservation, error) {
	previous := reservation.Status
	if err := reservation.TransitionTo(status); err != nil {
		return nil, err
	}

	applied, err := s.reservations.UpdateStatus(ctx, reservation.ID, previous, status)
	if err != nil {
		return nil, fault.Unexpectedf(err, "cannot update reservation status")
	}
	if !applied {
		return nil, ErrInvalidTransition.With("Reservation status changed concurrently, reload and retry")
	}

	event := pkg.EventReservationStatusChanged
	if status == StatusCancelled {
		event = pkg.EventReservationCancelled
	}
	s.publish(ctx, event, reservation, previous)
	return reservation, nil
}

func (s *ReservationService) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.reservations.Delete(ctx, id); err != nil {
		return fault.Unexpectedf(err, "cannot delete reservation")
	}
	return nil
}

// Verify looks a reservation up by its public code.
func (s *ReservationService) Verify(ctx context.Context, code string) (*Reservation, error) {
	reservation, err := s.reservations.GetByCode(ctx, strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		return nil, fault.Unexpectedf(err, "cannot load reservation")
	}
	if reservation == nil {
		return nil, ErrReservationNotFound
	}
	return reservation, nil
}

func (s *ReservationService) List(ctx context.Context, filter ReservationFilter) (*ReservationPage, error) {
	if filter.Limit <= 0 {
		filter.Limit = 10
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	list, total, err := s.reservations.List(ctx, filter)
	if err != nil {
		return nil, fault.Unexpectedf(err, "cannot list reservations")
	}

	pages := int((total + int64(filter.Limit) - 1) / int64(filter.Limit))
	return &ReservationPage{
		Reservations: list,
		Total:        total,
		Page:         filter.Offset/filter.Limit + 1,
		Pages:        pages,
	}, nil
}

// ListByBranch returns the reservations of a branch in schedule order.
func (s *ReservationService) ListByBranch(ctx context.Context, branchID uuid.UUID, date *time.Time, status string) ([]*Reservation, error) {
	if _, err := s.loadBranch(ctx, branchID); err != nil {
		return nil, err
	}

	list, _, err := s.reservations.List(ctx, ReservationFilter{
		BranchID:  branchID,
		Date:      date,
		Status:    status,
		Ascending: true,
	})
	if err != nil {
		return nil, fault.Unexpectedf(err, "cannot list reservations")
	}
	return list, nil
}

func (s *ReservationService) Stats(ctx context.Context) (*ReservationStats, error) {
	byStatus, err := s.reservations.CountByStatus(ctx)
	if err != nil {
		return nil, fault.Unexpectedf(err, "cannot count reservations")
	}

	today := startOfDay(s.now())
	todayCount, err := s.reservations.CountBetween(ctx, today, today.Add(24*time.Hour))
	if err != nil {
		return nil, fault.Unexpectedf(err, "cannot count reservations")
	}

	stats := &ReservationStats{
		Today:     todayCount,
		Pending:   byStatus[StatusPending],
		Confirmed: byStatus[StatusConfirmed],
		Completed: byStatus[StatusCompleted],
		ByStatus:  byStatus,
	}
	for _, n := range byStatus {
		stats.Total += n
	}
	return stats, nil
}

// Upcoming returns the next reservations from today onwards.
func (s *ReservationService) Upcoming(ctx context.Context) ([]*Reservation, error) {
	list, err := s.reservations.ListUpcoming(ctx, startOfDay(s.now()), UpcomingLimit)
	if err != nil {
		return nil, fault.Unexpectedf(err, "cannot list upcoming reservations")
	}
	return list, nil
}

func (s *ReservationService) loadBranch(ctx context.Context, id uuid.UUID) (*Branch, error) {
	branch, err := s.branches.Get(ctx, id)
	if err != nil {
		return nil, fault.Unexpectedf(err, "cannot load branch")
	}
	if branch == nil {
		return nil, ErrBranchNotFound
	}
	return branch, nil
}

// withCodeRetry repeats fn when the store rejects a generated code that was
// claimed between the existence check and the insert.
func (s *ReservationService) withCodeRetry(ctx context.Context, fn func() error) error {
	attempts := s.codeAttempts
	if attempts <= 0 {
		attempts = DefaultCodeAttempt
	}

	var err error
	for i := 0; i < attempts; i++ {
		err = fn()
		if !errors.Is(err, ErrCodeTaken) {
			return err
		}
		s.logger.Info("reservation code collision, retrying", "attempt", i+1)
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return ErrCodeExhausted.Wrap(err)
}

// save writes the reservation unless its stored status moved away from from.
func (s *ReservationService) save(ctx context.Context, reservation *Reservation, from string) error {
	applied, err := s.reservations.Save(ctx, reservation, from)
	if err != nil {
		return err
	}
	if !applied {
		return ErrInvalidTransition.With("Reservation changed concurrently, reload and retry")
	}
	return nil
}

func (s *ReservationService) classify(err error, msg string) error {
	var fe *fault.Error
	if errors.As(err, &fe) {
		return err
	}
	return fault.Unexpectedf(err, "%s", msg)
}

func (s *ReservationService) publishUpdate(ctx context.Context, reservation *Reservation, previousStatus string) {
	if reservation.Status == previousStatus {
		s.publish(ctx, pkg.EventReservationUpdated, reservation, "")
		return
	}
	event := pkg.EventReservationStatusChanged
	if reservation.Status == StatusCancelled {
		event = pkg.EventReservationCancelled
	}
	s.publish(ctx, event, reservation, previousStatus)
}

func (s *ReservationService) publish(ctx context.Context, eventType string, reservation *Reservation, previousStatus string) {
	if s.publisher == nil || reservation == nil {
		return
	}

	event := pkg.ReservationEvent{
		EventType:       eventType,
		ReservationID:   reservation.ID.String(),
		ReservationCode: reservation.ReservationCode,
		BranchID:        reservation.BranchID.String(),
		TableNumber:     reservation.Table.TableNumber,
		Date:            FormatDate(reservation.Date),
		Time:            reservation.Time,
		PartySize:       reservation.PartySize,
		Status:          reservation.Status,
		PreviousStatus:  previousStatus,
		Source:          eventSource,
		OccurredAt:      time.Now().UTC(),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("cannot marshal reservation event", "error", err, "reservation_id", reservation.ID.String())
		return
	}

	if err := s.publisher.Publish(ctx, pkg.ReservationTopic, payload); err != nil {
		s.logger.Error("cannot publish reservation event", "error", err, "reservation_id", reservation.ID.String())
	}
}

// claimableTable resolves the table a reservation asks for and checks it can
// seat the party.
func claimableTable(branch *Branch, number, partySize int) (Table, error) {
	table, ok := branch.FindTable(number)
	if !ok {
		return Table{}, ErrTableNotFound
	}
	if !table.IsAvailable {
		return Table{}, ErrTableOutOfService
	}
	if !table.Fits(partySize) {
		return Table{}, capacityError(table.Capacity)
	}
	return table, nil
}

func capacityError(capacity int) error {
	return ErrNoCapacity.With(fmt.Sprintf("Table can only accommodate %d people", capacity))
}

func parseSlot(dateStr, timeStr string) (time.Time, ClockTime, error) {
	date, err := ParseDate(dateStr)
	if err != nil {
		return time.Time{}, 0, fault.Validationf("date must use YYYY-MM-DD format")
	}
	at, err := ParseClock(timeStr)
	if err != nil {
		return time.Time{}, 0, fault.Validationf("time must use HH:MM format")
	}
	return date, at, nil
}

func validationError(errs []string) error {
	return fault.Validationf("%s", strings.Join(errs, "; "))
}

func normalizeCustomer(c CustomerSnapshot) CustomerSnapshot {
	c.Name = strings.TrimSpace(c.Name)
	c.Email = normalizeEmail(c.Email)
	c.Phone = strings.TrimSpace(c.Phone)
	return c
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func sameEmail(a, b string) bool {
	return normalizeEmail(a) != "" && normalizeEmail(a) == normalizeEmail(b)
}
