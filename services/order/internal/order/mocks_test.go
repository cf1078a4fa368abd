package order

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/aquamarinepk/aqm"
	"github.com/google/uuid"
)

// MockOrderRepository is an in-memory OrderRepo.
type MockOrderRepository struct {
	mu         sync.Mutex
	orders     map[uuid.UUID]*Order
	CreateFunc func(ctx context.Context, order *Order) error
	ListFunc   func(ctx context.Context, filter OrderFilter) ([]*Order, error)
}

func NewMockOrderRepository() *MockOrderRepository {
	return &MockOrderRepository{orders: make(map[uuid.UUID]*Order)}
}

func (m *MockOrderRepository) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

func (m *MockOrderRepository) Create(ctx context.Context, order *Order) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, order)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *order
	m.orders[order.ID] = &c
	return nil
}

func (m *MockOrderRepository) Get(ctx context.Context, id uuid.UUID) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, nil
	}
	c := *o
	return &c, nil
}

func (m *MockOrderRepository) List(ctx context.Context, filter OrderFilter) ([]*Order, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, filter)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	result := []*Order{}
	for _, o := range m.orders {
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		if filter.CustomerID != "" && o.CustomerID != filter.CustomerID {
			continue
		}
		c := *o
		result = append(result, &c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	return result, nil
}

func (m *MockOrderRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok || o.Status != from {
		return false, nil
	}
	o.Status = to
	return true, nil
}

func (m *MockOrderRepository) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[id]; !ok {
		return errors.New("order not found")
	}
	delete(m.orders, id)
	return nil
}

// MockAgentRepository is an in-memory AgentRepo. Claim holds the lock for
// the whole check and append, as the store's conditional update does.
type MockAgentRepository struct {
	mu         sync.Mutex
	agents     map[uuid.UUID]*Agent
	CreateFunc func(ctx context.Context, agent *Agent) error
	ClaimFunc  func(ctx context.Context, orderID uuid.UUID, capacity int) (*Agent, error)

	ReleaseFunc  func(ctx context.Context, agentID, orderID uuid.UUID) error
	CompleteFunc func(ctx context.Context, agentID, orderID uuid.UUID) error
}

func NewMockAgentRepository(agents ...*Agent) *MockAgentRepository {
	m := &MockAgentRepository{agents: make(map[uuid.UUID]*Agent)}
	for _, a := range agents {
		m.agents[a.ID] = a
	}
	return m
}

func (m *MockAgentRepository) Create(ctx context.Context, agent *Agent) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, agent)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.agents {
		if a.Email == agent.Email {
			return ErrAgentExists
		}
	}
	m.agents[agent.ID] = agent
	return nil
}

func (m *MockAgentRepository) Get(ctx context.Context, id uuid.UUID) (*Agent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.agents[id]
	if !ok {
		return nil, nil
	}
	return copyAgent(a), nil
}

func (m *MockAgentRepository) List(ctx context.Context) ([]*Agent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := []*Agent{}
	for _, a := range m.agents {
		result = append(result, copyAgent(a))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (m *MockAgentRepository) Claim(ctx context.Context, orderID uuid.UUID, capacity int) (*Agent, error) {
	if m.ClaimFunc != nil {
		return m.ClaimFunc(ctx, orderID, capacity)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var chosen *Agent
	for _, a := range m.agents {
		if !a.HasHeadroom(capacity) {
			continue
		}
		if chosen == nil || a.CreatedAt.Before(chosen.CreatedAt) {
			chosen = a
		}
	}
	if chosen == nil {
		return nil, nil
	}
	chosen.AssignedOrders = append(chosen.AssignedOrders, orderID)
	return copyAgent(chosen), nil
}

func (m *MockAgentRepository) Release(ctx context.Context, agentID, orderID uuid.UUID) error {
	if m.ReleaseFunc != nil {
		return m.ReleaseFunc(ctx, agentID, orderID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.agents[agentID]
	if !ok {
		return errors.New("agent not found")
	}
	a.AssignedOrders = without(a.AssignedOrders, orderID)
	return nil
}

func (m *MockAgentRepository) Complete(ctx context.Context, agentID, orderID uuid.UUID) error {
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, agentID, orderID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.agents[agentID]
	if !ok {
		return errors.New("agent not found")
	}
	a.AssignedOrders = without(a.AssignedOrders, orderID)
	a.CompletedOrders = append(without(a.CompletedOrders, orderID), orderID)
	return nil
}

func (m *MockAgentRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.agents[id]
	if !ok {
		return errors.New("agent not found")
	}
	a.Status = status
	return nil
}

func (m *MockAgentRepository) assigned(id uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.agents[id].AssignedOrders)
}

func copyAgent(a *Agent) *Agent {
	c := *a
	c.AssignedOrders = append([]uuid.UUID{}, a.AssignedOrders...)
	c.CompletedOrders = append([]uuid.UUID{}, a.CompletedOrders...)
	return &c
}

func without(ids []uuid.UUID, id uuid.UUID) []uuid.UUID {
	result := []uuid.UUID{}
	for _, v := range ids {
		if v != id {
			result = append(result, v)
		}
	}
	return result
}

// MockMenuItemRepository is an in-memory MenuItemRepo that counts reads.
type MockMenuItemRepository struct {
	mu      sync.Mutex
	items   map[uuid.UUID]*MenuItem
	gets    int
	GetFunc func(ctx context.Context, id uuid.UUID) (*MenuItem, error)
}

func NewMockMenuItemRepository(items ...*MenuItem) *MockMenuItemRepository {
	m := &MockMenuItemRepository{items: make(map[uuid.UUID]*MenuItem)}
	for _, item := range items {
		m.items[item.ID] = item
	}
	return m
}

func (m *MockMenuItemRepository) Get(ctx context.Context, id uuid.UUID) (*MenuItem, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	item, ok := m.items[id]
	if !ok {
		return nil, nil
	}
	c := *item
	return &c, nil
}

func (m *MockMenuItemRepository) List(ctx context.Context) ([]*MenuItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := []*MenuItem{}
	for _, item := range m.items {
		c := *item
		result = append(result, &c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (m *MockMenuItemRepository) Save(ctx context.Context, item *MenuItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *item
	m.items[item.ID] = &c
	return nil
}

func (m *MockMenuItemRepository) getCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gets
}

// MockCustomerRepository is an in-memory CustomerRepo.
type MockCustomerRepository struct {
	mu              sync.Mutex
	customers       map[uuid.UUID]*Customer
	AppendOrderFunc func(ctx context.Context, customerID, orderID uuid.UUID) error
}

func NewMockCustomerRepository(customers ...*Customer) *MockCustomerRepository {
	m := &MockCustomerRepository{customers: make(map[uuid.UUID]*Customer)}
	for _, c := range customers {
		m.customers[c.ID] = c
	}
	return m
}

func (m *MockCustomerRepository) GetByEmail(ctx context.Context, email string) (*Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.customers {
		if c.Email == email {
			cc := *c
			cc.Orders = append([]uuid.UUID{}, c.Orders...)
			return &cc, nil
		}
	}
	return nil, nil
}

func (m *MockCustomerRepository) AppendOrder(ctx context.Context, customerID, orderID uuid.UUID) error {
	if m.AppendOrderFunc != nil {
		return m.AppendOrderFunc(ctx, customerID, orderID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.customers[customerID]
	if !ok {
		return errors.New("customer not found")
	}
	c.Orders = append(without(c.Orders, orderID), orderID)
	return nil
}

func (m *MockCustomerRepository) Save(ctx context.Context, customer *Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *customer
	m.customers[customer.ID] = &c
	return nil
}

func (m *MockCustomerRepository) orders(email string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.customers {
		if c.Email == email {
			return len(c.Orders)
		}
	}
	return 0
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

func (m *MockPublisher) Last(topic string) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs := m.messages[topic]
	if len(msgs) == 0 {
		return nil
	}
	return msgs[len(msgs)-1]
}

var (
	pizza = &MenuItem{ID: uuid.MustParse("0b7d2a4e-0c1a-4a57-8d55-000000000001"), Name: "Margherita", Category: "pizza", Price: 10}
	bread = &MenuItem{ID: uuid.MustParse("0b7d2a4e-0c1a-4a57-8d55-000000000002"), Name: "Garlic Bread", Category: "starter", Price: 5}
)

const customerEmail = "demo@tavola.example"

func testAgent(name string, createdAt time.Time) *Agent {
	a := NewAgent()
	a.Email = name + "@tavola.example"
	a.FirstName = name
	a.LastName = "Rider"
	a.Phone = "+91 98000 " + name
	a.BeforeCreate()
	a.CreatedAt = createdAt
	return a
}

func testCustomer() *Customer {
	return &Customer{ID: aqm.GenerateNewID(), Email: customerEmail, FirstName: "Demo", Orders: []uuid.UUID{}}
}

type dispatchFixture struct {
	dispatcher *Dispatcher
	orders     *MockOrderRepository
	agents     *MockAgentRepository
	menu       *MockMenuItemRepository
	customers  *MockCustomerRepository
	publisher  *MockPublisher
}

func newDispatchFixture(agents ...*Agent) *dispatchFixture {
	f := &dispatchFixture{
		orders:    NewMockOrderRepository(),
		agents:    NewMockAgentRepository(agents...),
		menu:      NewMockMenuItemRepository(copyItem(pizza), copyItem(bread)),
		customers: NewMockCustomerRepository(testCustomer()),
		publisher: NewMockPublisher(),
	}
	repos := Repos{
		OrderRepo:    f.orders,
		AgentRepo:    f.agents,
		MenuItemRepo: f.menu,
		CustomerRepo: f.customers,
	}
	f.dispatcher = NewDispatcher(repos, f.publisher, DispatcherConfig{}, nil)
	return f
}

func copyItem(item *MenuItem) *MenuItem {
	c := *item
	return &c
}

func pizzaOrder() PlaceOrderRequest {
	return PlaceOrderRequest{
		CustomerID: customerEmail,
		Items: []LineItemRequest{
			{MenuItemID: pizza.ID, Quantity: 2},
			{MenuItemID: bread.ID, Quantity: 1},
		},
	}
}
