package tables

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MockBranchRepository is an in-memory BranchRepo.
type MockBranchRepository struct {
	mu       sync.Mutex
	branches map[uuid.UUID]*Branch
	GetFunc  func(ctx context.Context, id uuid.UUID) (*Branch, error)
}

func NewMockBranchRepository(branches ...*Branch) *MockBranchRepository {
	m := &MockBranchRepository{branches: make(map[uuid.UUID]*Branch)}
	for _, b := range branches {
		m.branches[b.ID] = b
	}
	return m
}

func (m *MockBranchRepository) Create(ctx context.Context, branch *Branch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.branches[branch.ID] = branch
	return nil
}

func (m *MockBranchRepository) Get(ctx context.Context, id uuid.UUID) (*Branch, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.branches[id]
	if !ok {
		return nil, nil
	}
	c := *b
	c.Tables = append([]Table(nil), b.Tables...)
	return &c, nil
}

func (m *MockBranchRepository) List(ctx context.Context, filter BranchFilter) ([]*Branch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := []*Branch{}
	for _, b := range m.branches {
		if filter.City != "" && !strings.EqualFold(b.Address.City, filter.City) {
			continue
		}
		if filter.ActiveOnly && !b.IsActive {
			continue
		}
		result = append(result, b)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (m *MockBranchRepository) Save(ctx context.Context, branch *Branch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.branches[branch.ID]; !ok {
		return errors.New("branch not found")
	}
	m.branches[branch.ID] = branch
	return nil
}

func (m *MockBranchRepository) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.branches[id]; !ok {
		return errors.New("branch not found")
	}
	delete(m.branches, id)
	return nil
}

// MockReservationRepository is an in-memory ReservationRepo. Reads and writes
// are individually atomic, nothing more, like a document store.
type MockReservationRepository struct {
	mu           sync.Mutex
	reservations map[uuid.UUID]*Reservation
	takenCodes   map[string]bool
	CreateFunc   func(ctx context.Context, r *Reservation) error
	ListFunc     func(ctx context.Context, filter ReservationFilter) ([]*Reservation, int64, error)
	// Pause runs between reading overlapping reservations and returning them.
	Pause func()
	// BeforeSave runs ahead of every Save, outside the repository lock.
	BeforeSave func(r *Reservation)
}

func NewMockReservationRepository() *MockReservationRepository {
	return &MockReservationRepository{
		reservations: make(map[uuid.UUID]*Reservation),
		takenCodes:   make(map[string]bool),
	}
}

func (m *MockReservationRepository) put(r *Reservation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *r
	m.reservations[r.ID] = &c
}

func (m *MockReservationRepository) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.reservations)
}

func (m *MockReservationRepository) CodeExists(ctx context.Context, code string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.takenCodes[code] {
		return true, nil
	}
	for _, r := range m.reservations {
		if r.ReservationCode == code {
			return true, nil
		}
	}
	return false, nil
}

func (m *MockReservationRepository) Create(ctx context.Context, r *Reservation) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, r)
	}
	m.put(r)
	return nil
}

func (m *MockReservationRepository) Get(ctx context.Context, id uuid.UUID) (*Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reservations[id]
	if !ok {
		return nil, nil
	}
	c := *r
	return &c, nil
}

func (m *MockReservationRepository) GetByCode(ctx context.Context, code string) (*Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.reservations {
		if r.ReservationCode == code {
			c := *r
			return &c, nil
		}
	}
	return nil, nil
}

func (m *MockReservationRepository) List(ctx context.Context, filter ReservationFilter) ([]*Reservation, int64, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, filter)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	matched := []*Reservation{}
	for _, r := range m.reservations {
		if filter.BranchID != uuid.Nil && r.BranchID != filter.BranchID {
			continue
		}
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		if filter.Date != nil && !r.Date.Equal(*filter.Date) {
			continue
		}
		if filter.CustomerEmail != "" && r.Customer.Email != filter.CustomerEmail {
			continue
		}
		c := *r
		matched = append(matched, &c)
	}
	sort.Slice(matched, func(i, j int) bool {
		if filter.Ascending {
			return matched[i].StartsAt.Before(matched[j].StartsAt)
		}
		return matched[i].StartsAt.After(matched[j].StartsAt)
	})

	total := int64(len(matched))
	if filter.Offset > 0 {
		if filter.Offset >= len(matched) {
			matched = []*Reservation{}
		} else {
			matched = matched[filter.Offset:]
		}
	}
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, total, nil
}

func (m *MockReservationRepository) ListOverlapping(ctx context.Context, branchID uuid.UUID, window Interval) ([]*Reservation, error) {
	m.mu.Lock()
	result := []*Reservation{}
	for _, r := range m.reservations {
		if r.BranchID == branchID && r.Blocks() && r.Interval().Overlaps(window) {
			c := *r
			result = append(result, &c)
		}
	}
	m.mu.Unlock()

	if m.Pause != nil {
		m.Pause()
	}
	return result, nil
}

func (m *MockReservationRepository) ListUpcoming(ctx context.Context, from time.Time, limit int) ([]*Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := []*Reservation{}
	for _, r := range m.reservations {
		if !r.Date.Before(from) && r.Blocks() {
			c := *r
			result = append(result, &c)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].StartsAt.Before(result[j].StartsAt) })
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *MockReservationRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := map[string]int64{}
	for _, r := range m.reservations {
		counts[r.Status]++
	}
	return counts, nil
}

func (m *MockReservationRepository) CountBetween(ctx context.Context, from, to time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, r := range m.reservations {
		if !r.Date.Before(from) && r.Date.Before(to) {
			n++
		}
	}
	return n, nil
}

func (m *MockReservationRepository) Save(ctx context.Context, r *Reservation, from string) (bool, error) {
	if m.BeforeSave != nil {
		m.BeforeSave(r)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.reservations[r.ID]
	if !ok || stored.Status != from {
		return false, nil
	}
	c := *r
	m.reservations[r.ID] = &c
	return true, nil
}

func (m *MockReservationRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reservations[id]
	if !ok || r.Status != from {
		return false, nil
	}
	r.Status = to
	return true, nil
}

func (m *MockReservationRepository) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.reservations[id]; !ok {
		return errors.New("reservation not found")
	}
	delete(m.reservations, id)
	return nil
}

// MockPublisher records published payloads per topic.
type MockPublisher struct {
	mu       sync.Mutex
	messages map[string][][]byte
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{messages: make(map[string][][]byte)}
}

func (m *MockPublisher) Publish(ctx context.Context, topic string, msg []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages[topic] = append(m.messages[topic], msg)
	return nil
}

func (m *MockPublisher) Count(topic string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages[topic])
}

// noGuard runs fn without any serialization.
type noGuard struct{}

func (noGuard) WithSlot(ctx context.Context, branchID uuid.UUID, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func testBranch() *Branch {
	b := NewBranch()
	b.Name = "Branch B"
	b.Address = Address{Street: "1 Main St", City: "Springfield", State: "IL", ZipCode: "62701"}
	b.Contact = Contact{Phone: "+1 555 0100", Email: "b@example.com"}
	b.OperatingHours = OperatingHours{Open: "11:00", Close: "22:00"}
	b.Tables = []Table{
		{TableNumber: 1, Capacity: 2, TableType: TableIndoor, IsAvailable: true},
		{TableNumber: 2, Capacity: 6, TableType: TableOutdoor, IsAvailable: true},
		{TableNumber: 3, Capacity: 4, TableType: TableIndoor, IsAvailable: false},
		{TableNumber: 5, Capacity: 4, TableType: TableIndoor, IsAvailable: true},
	}
	b.BeforeCreate()
	return b
}

func testCustomer() CustomerSnapshot {
	return CustomerSnapshot{Name: "Ada", Email: "ada@example.com", Phone: "+1 555 0101"}
}

func newTestService(branch *Branch, guard SlotGuard, scope ConflictScope) (*ReservationService, *MockReservationRepository, *MockPublisher) {
	reservations := NewMockReservationRepository()
	publisher := NewMockPublisher()
	repos := Repos{BranchRepo: NewMockBranchRepository(branch), ReservationRepo: reservations}
	svc := NewReservationService(repos, guard, publisher, ReservationServiceConfig{Scope: scope}, nil)
	return svc, reservations, publisher
}
