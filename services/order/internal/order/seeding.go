package order

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aquamarinepk/aqm"
	"github.com/aquamarinepk/aqm/seed"
	"github.com/google/uuid"
)

const dispatchSeedApplication = "order"

type dispatchSeedDocument struct {
	MenuItems []menuItemSeed `json:"menuItems"`
	Customers []customerSeed `json:"customers"`
	Agents    []agentSeed    `json:"agents"`
}

type menuItemSeed struct {
	Slug        string  `json:"slug"`
	Name        string  `json:"name"`
	Category    string  `json:"category"`
	Price       float64 `json:"price"`
	Description string  `json:"description"`
}

type customerSeed struct {
	Slug      string `json:"slug"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type agentSeed struct {
	Slug      string  `json:"slug"`
	Email     string  `json:"email"`
	FirstName string  `json:"firstName"`
	LastName  string  `json:"lastName"`
	Phone     string  `json:"phone"`
	ImageURL  string  `json:"imageURL"`
	Rating    float64 `json:"rating"`
}

// SeedID derives a stable id for a seeded record of kind.
func SeedID(kind, slug string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("tavola/"+kind+"/"+slug))
}

func loadDispatchSeeds(seedFS embed.FS) (*dispatchSeedDocument, error) {
	seedBytes, err := seedFS.ReadFile("seed.json")
	if err != nil {
		return nil, fmt.Errorf("read seed.json: %w", err)
	}

	var doc dispatchSeedDocument
	if err := json.Unmarshal(seedBytes, &doc); err != nil {
		return nil, fmt.Errorf("decode order seed file: %w", err)
	}
	if len(doc.MenuItems) == 0 && len(doc.Agents) == 0 {
		return nil, errors.New("order seed file is empty")
	}
	return &doc, nil
}

// ApplyDispatchSeeds ensures the seeded menu items, customers and agents
// exist. Each record is its own seed so a partial run resumes cleanly.
func ApplyDispatchSeeds(ctx context.Context, repos Repos, tracker seed.Tracker, seedFS embed.FS, logger aqm.Logger) error {
	if tracker == nil {
		return errors.New("seed tracker is required")
	}

	doc, err := loadDispatchSeeds(seedFS)
	if err != nil {
		return err
	}

	defs := buildDispatchSeedDefinitions(doc, repos, logger)
	logger.Info("Applying order seeds", "count", len(defs))
	if err := seed.Apply(ctx, tracker, defs, dispatchSeedApplication); err != nil {
		return err
	}
	logger.Info("Order seeds applied successfully")
	return nil
}

func buildDispatchSeedDefinitions(doc *dispatchSeedDocument, repos Repos, logger aqm.Logger) []seed.Seed {
	var defs []seed.Seed

	for _, m := range doc.MenuItems {
		item := m
		defs = append(defs, seed.Seed{
			ID:          "2025-05-01_menu_item_" + seedIdentifier(item.Slug),
			Description: fmt.Sprintf("Ensure menu item %s exists", item.Name),
			Run: func(ctx context.Context) error {
				return item.ensure(ctx, repos.MenuItemRepo, logger)
			},
		})
	}

	for _, c := range doc.Customers {
		customer := c
		defs = append(defs, seed.Seed{
			ID:          "2025-05-01_customer_" + seedIdentifier(customer.Slug),
			Description: fmt.Sprintf("Ensure customer %s exists", customer.Email),
			Run: func(ctx context.Context) error {
				return customer.ensure(ctx, repos.CustomerRepo, logger)
			},
		})
	}

	for _, a := range doc.Agents {
		agent := a
		defs = append(defs, seed.Seed{
			ID:          "2025-05-01_agent_" + seedIdentifier(agent.Slug),
			Description: fmt.Sprintf("Ensure delivery agent %s exists", agent.Email),
			Run: func(ctx context.Context) error {
				return agent.ensure(ctx, repos.AgentRepo, logger)
			},
		})
	}

	return defs
}

func (s menuItemSeed) ensure(ctx context.Context, repo MenuItemRepo, logger aqm.Logger) error {
	now := time.Now().UTC()
	item := &MenuItem{
		ID:          SeedID("menu", s.Slug),
		Name:        s.Name,
		Category:    s.Category,
		Price:       s.Price,
		Description: s.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := repo.Save(ctx, item); err != nil {
		return fmt.Errorf("save seed menu item %s: %w", s.Slug, err)
	}
	logger.Info("Seed menu item ready", "slug", s.Slug, "id", item.ID.String())
	return nil
}

func (s customerSeed) ensure(ctx context.Context, repo CustomerRepo, logger aqm.Logger) error {
	email := strings.ToLower(strings.TrimSpace(s.Email))
	existing, err := repo.GetByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("get seed customer %s: %w", s.Slug, err)
	}
	if existing != nil {
		logger.Info("Seed customer already exists", "slug", s.Slug)
		return nil
	}

	now := time.Now().UTC()
	customer := &Customer{
		ID:        SeedID("customer", s.Slug),
		Email:     email,
		FirstName: s.FirstName,
		LastName:  s.LastName,
		Orders:    []uuid.UUID{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := repo.Save(ctx, customer); err != nil {
		return fmt.Errorf("save seed customer %s: %w", s.Slug, err)
	}
	logger.Info("Seed customer created", "slug", s.Slug, "id", customer.ID.String())
	return nil
}

func (s agentSeed) ensure(ctx context.Context, repo AgentRepo, logger aqm.Logger) error {
	id := SeedID("agent", s.Slug)
	existing, err := repo.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("get seed agent %s: %w", s.Slug, err)
	}
	if existing != nil {
		logger.Info("Seed agent already exists", "slug", s.Slug)
		return nil
	}

	agent := NewAgent()
	agent.ID = id
	agent.Email = s.Email
	agent.FirstName = s.FirstName
	agent.LastName = s.LastName
	agent.Phone = s.Phone
	agent.ImageURL = s.ImageURL
	agent.Rating = s.Rating
	agent.BeforeCreate()

	if err := repo.Create(ctx, agent); err != nil {
		return fmt.Errorf("create seed agent %s: %w", s.Slug, err)
	}
	logger.Info("Seed agent created", "slug", s.Slug, "id", agent.ID.String())
	return nil
}

func seedIdentifier(value string) string {
	value = strings.TrimSpace(strings.ToLower(value))
	replacer := strings.NewReplacer("-", "_", " ", "_", "/", "_")
	return replacer.Replace(value)
}

// SeedingFunc returns an aqm lifecycle OnStart-compatible function which
// applies the order seeds in the background and warms the menu cache once
// they are in.
func SeedingFunc(seedCtx context.Context, repos Repos, tracker seed.Tracker, seedFS embed.FS, menu *MenuCache, logger aqm.Logger) func(ctx context.Context) error {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}

	return func(ctx context.Context) error {
		logger.Info("Starting order seeding in background")
		go func() {
			if err := ApplyDispatchSeeds(seedCtx, repos, tracker, seedFS, logger); err != nil {
				if !errors.Is(err, context.Canceled) {
					logger.Errorf("Order seeds failed: %v", err)
				}
				return
			}
			if menu != nil {
				if err := menu.Warm(seedCtx); err != nil {
					logger.Error("cannot warm menu cache", "error", err)
				}
			}
		}()
		return nil
	}
}

// StopFunc returns an aqm lifecycle OnStop-compatible function which cancels
// background seeding.
func StopFunc(cancelFunc context.CancelFunc) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if cancelFunc != nil {
			cancelFunc()
		}
		return nil
	}
}
