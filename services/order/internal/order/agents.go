package order

import (
	"context"
	"strings"

	"github.com/appetiteclub/tavola/pkg/fault"
	"github.com/aquamarinepk/aqm"
	"github.com/google/uuid"
)

// AgentService administers the delivery agent pool.
type AgentService struct {
	agents AgentRepo
	logger aqm.Logger
}

func NewAgentService(agents AgentRepo, logger aqm.Logger) *AgentService {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	return &AgentService{agents: agents, logger: logger}
}

func (s *AgentService) Create(ctx context.Context, req AgentCreateRequest) (*Agent, error) {
	if errs := ValidateAgentCreate(ctx, req); len(errs) > 0 {
		return nil, fault.Validationf("%s", strings.Join(errs, "; "))
	}

	agent := NewAgent()
	agent.Email = req.Email
	agent.FirstName = strings.TrimSpace(req.FirstName)
	agent.LastName = strings.TrimSpace(req.LastName)
	agent.Phone = req.Phone
	agent.ImageURL = req.ImageURL
	agent.Rating = req.Rating
	agent.BeforeCreate()

	if err := s.agents.Create(ctx, agent); err != nil {
		if fault.KindOf(err) == fault.Rejected {
			return nil, err
		}
		return nil, fault.Unexpectedf(err, "cannot create delivery agent")
	}
	return agent, nil
}

func (s *AgentService) Get(ctx context.Context, id uuid.UUID) (*Agent, error) {
	agent, err := s.agents.Get(ctx, id)
	if err != nil {
		return nil, fault.Unexpectedf(err, "cannot load delivery agent")
	}
	if agent == nil {
		return nil, ErrAgentNotFound.With("Delivery boy not found")
	}
	return agent, nil
}

func (s *AgentService) List(ctx context.Context) ([]*Agent, error) {
	agents, err := s.agents.List(ctx)
	if err != nil {
		return nil, fault.Unexpectedf(err, "cannot list delivery agents")
	}
	return agents, nil
}

// SetStatus changes the agent status. Agents that are not available
// receive no new orders.
func (s *AgentService) SetStatus(ctx context.Context, id uuid.UUID, req AgentStatusRequest) (*Agent, error) {
	if errs := ValidateAgentStatus(ctx, req); len(errs) > 0 {
		return nil, fault.Validationf("%s", strings.Join(errs, "; "))
	}
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	if err := s.agents.UpdateStatus(ctx, id, req.Status); err != nil {
		return nil, fault.Unexpectedf(err, "cannot update delivery agent")
	}
	return s.Get(ctx, id)
}
