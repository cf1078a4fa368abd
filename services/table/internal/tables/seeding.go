package tables

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aquamarinepk/aqm"
	"github.com/aquamarinepk/aqm/seed"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"
)

const branchSeedApplication = "table"

type bootstrapSeedDocument struct {
	Branches []branchSeed `json:"branches"`
}

type branchSeed struct {
	Slug           string         `json:"slug"`
	Name           string         `json:"name"`
	Address        Address        `json:"address"`
	Contact        Contact        `json:"contact"`
	OperatingHours OperatingHours `json:"operatingHours"`
	Tables         []Table        `json:"tables"`
	Amenities      []string       `json:"amenities"`
}

// SeedBranchID derives a stable branch id from a seed slug so reseeding
// never duplicates a branch.
func SeedBranchID(slug string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("tavola/branch/"+slug))
}

func loadBranchSeeds(seedFS embed.FS) ([]branchSeed, error) {
	seedBytes, err := seedFS.ReadFile("seed.json")
	if err != nil {
		return nil, fmt.Errorf("read seed.json: %w", err)
	}
	if len(seedBytes) == 0 {
		return nil, errors.New("branch seed file is empty")
	}

	var doc bootstrapSeedDocument
	if err := json.Unmarshal(seedBytes, &doc); err != nil {
		return nil, fmt.Errorf("decode branch seed file: %w", err)
	}
	if len(doc.Branches) == 0 {
		return nil, errors.New("branch seed file does not contain branches")
	}
	return doc.Branches, nil
}

// ApplyBranchSeeds ensures the predefined branches exist.
func ApplyBranchSeeds(ctx context.Context, repo BranchRepo, seedFS embed.FS, logger aqm.Logger) error {
	if repo == nil {
		return errors.New("branch repository is required")
	}

	seedDocs, err := loadBranchSeeds(seedFS)
	if err != nil {
		return err
	}

	defs := buildBranchSeedDefinitions(seedDocs, repo, logger)
	if len(defs) == 0 {
		logger.Info("No branch seeds to apply")
		return nil
	}

	tracker, err := trackerFromRepo(repo)
	if err != nil {
		return err
	}

	logger.Info("Applying branch seeds")
	if err := seed.Apply(ctx, tracker, defs, branchSeedApplication); err != nil {
		return err
	}
	logger.Info("Branch seeds applied successfully")
	return nil
}

func trackerFromRepo(repo BranchRepo) (seed.Tracker, error) {
	provider, ok := repo.(mongoDatabaseProvider)
	if !ok {
		return nil, errors.New("branch repository does not expose MongoDB access for seeding")
	}
	db := provider.GetDatabase()
	if db == nil {
		return nil, errors.New("branch repository database is not initialized")
	}
	return seed.NewMongoTracker(db), nil
}

type mongoDatabaseProvider interface {
	GetDatabase() *mongo.Database
}

func buildBranchSeedDefinitions(raw []branchSeed, repo BranchRepo, logger aqm.Logger) []seed.Seed {
	var defs []seed.Seed

	for _, s := range raw {
		seedData := s
		if strings.TrimSpace(seedData.Slug) == "" {
			logger.Info("Skipping seed branch without slug", "name", seedData.Name)
			continue
		}

		defs = append(defs, seed.Seed{
			ID:          fmt.Sprintf("2025-05-01_branch_%s", seedIdentifier(seedData.Slug)),
			Description: fmt.Sprintf("Ensure branch %s exists", seedData.Name),
			Run: func(ctx context.Context) error {
				return seedData.ensureBranch(ctx, repo, logger)
			},
		})
	}
	return defs
}

func seedIdentifier(value string) string {
	value = strings.TrimSpace(strings.ToLower(value))
	replacer := strings.NewReplacer("-", "_", " ", "_", "/", "_")
	value = replacer.Replace(value)

	var builder strings.Builder
	for _, r := range value {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			builder.WriteRune(r)
		}
	}
	if builder.Len() == 0 {
		return "seed"
	}
	return builder.String()
}

func (s branchSeed) ensureBranch(ctx context.Context, repo BranchRepo, logger aqm.Logger) error {
	id := SeedBranchID(s.Slug)

	existing, err := repo.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("get seed branch %s: %w", s.Slug, err)
	}
	if existing != nil {
		logger.Info("Seed branch already exists", "slug", s.Slug)
		return nil
	}

	if dups := duplicateTableNumbers(s.Tables); len(dups) > 0 {
		return fmt.Errorf("seed branch %s repeats table numbers %v", s.Slug, dups)
	}

	branch := NewBranch()
	branch.ID = id
	branch.Name = s.Name
	branch.Address = s.Address
	branch.Contact = s.Contact
	branch.OperatingHours = s.OperatingHours
	branch.Tables = s.Tables
	branch.Amenities = s.Amenities
	branch.BeforeCreate()

	if err := repo.Create(ctx, branch); err != nil {
		return fmt.Errorf("create seed branch %s: %w", s.Slug, err)
	}

	logger.Info("Seed branch created", "slug", s.Slug, "id", branch.ID.String())
	return nil
}

// SeedingFunc returns an aqm lifecycle OnStart-compatible function which
// applies branch seeds in the background.
func SeedingFunc(seedCtx context.Context, repo BranchRepo, seedFS embed.FS, logger aqm.Logger) func(ctx context.Context) error {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}

	return func(ctx context.Context) error {
		logger.Info("Starting branch seeding in background")
		go func() {
			if err := ApplyBranchSeeds(seedCtx, repo, seedFS, logger); err != nil && !errors.Is(err, context.Canceled) {
				logger.Errorf("Branch seeds failed: %v", err)
			} else if err == nil {
				logger.Info("Branch seeding completed")
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
