package tables

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/aquamarinepk/aqm"
	"github.com/aquamarinepk/aqm/seed"
)

const demoSeedApplication = "table-demo"

type demoBooking struct {
	branchSlug  string
	tableNumber int
	daysAhead   int
	time        string
	partySize   int
	duration    int
	customer    CustomerSnapshot
	status      string
}

var demoBookings = []demoBooking{
	{"downtown", 5, 1, "19:00", 4, 90, CustomerSnapshot{Name: "Ada Byron", Email: "ada@example.com", Phone: "+1 555 0101"}, StatusConfirmed},
	{"downtown", 2, 1, "20:00", 2, 120, CustomerSnapshot{Name: "Alan Turing", Email: "alan@example.com", Phone: "+1 555 0102"}, StatusPending},
	{"riverside", 1, 2, "13:00", 6, 120, CustomerSnapshot{Name: "Grace Hopper", Email: "grace@example.com", Phone: "+1 555 0103"}, StatusConfirmed},
}

// ApplyDemoSeeds applies the branch seeds and then books a few demo
// reservations through the reservation service.
func ApplyDemoSeeds(ctx context.Context, repo BranchRepo, svc *ReservationService, seedFS embed.FS, logger aqm.Logger) error {
	if svc == nil {
		return errors.New("reservation service is required")
	}

	if err := ApplyBranchSeeds(ctx, repo, seedFS, logger); err != nil {
		return fmt.Errorf("apply branch seeds: %w", err)
	}

	tracker, err := trackerFromRepo(repo)
	if err != nil {
		return err
	}

	var defs []seed.Seed
	for i, b := range demoBookings {
		booking := b
		defs = append(defs, seed.Seed{
			ID:          fmt.Sprintf("2025-05-01_demo_reservation_%d", i+1),
			Description: fmt.Sprintf("Book table %d at %s for %s", booking.tableNumber, booking.branchSlug, booking.customer.Name),
			Run: func(ctx context.Context) error {
				return booking.book(ctx, svc, logger)
			},
		})
	}

	logger.Info("Applying demo reservations")
	if err := seed.Apply(ctx, tracker, defs, demoSeedApplication); err != nil {
		return err
	}
	logger.Info("Demo reservations applied successfully")
	return nil
}

func (b demoBooking) book(ctx context.Context, svc *ReservationService, logger aqm.Logger) error {
	date := startOfDay(time.Now()).AddDate(0, 0, b.daysAhead)

	reservation, err := svc.Create(ctx, ReservationCreateRequest{
		Customer:    b.customer,
		BranchID:    SeedBranchID(b.branchSlug),
		TableNumber: b.tableNumber,
		Date:        FormatDate(date),
		Time:        b.time,
		PartySize:   b.partySize,
		Duration:    b.duration,
		Source:      SourcePhone,
	})
	if err != nil {
		return fmt.Errorf("book demo reservation: %w", err)
	}

	if b.status == StatusConfirmed {
		if _, err := svc.TransitionStatus(ctx, reservation.ID, ReservationStatusRequest{Status: StatusConfirmed}); err != nil {
			return fmt.Errorf("confirm demo reservation: %w", err)
		}
	}

	logger.Info("Demo reservation booked", "code", reservation.ReservationCode, "branch", b.branchSlug)
	return nil
}

// DemoSeedingFunc is the demo counterpart of SeedingFunc.
func DemoSeedingFunc(seedCtx context.Context, repo BranchRepo, svc *ReservationService, seedFS embed.FS, logger aqm.Logger) func(ctx context.Context) error {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}

	return func(ctx context.Context) error {
		logger.Info("Starting demo seeding in background")
		go func() {
			if err := ApplyDemoSeeds(seedCtx, repo, svc, seedFS, logger); err != nil && !errors.Is(err, context.Canceled) {
				logger.Errorf("Demo seeds failed: %v", err)
			} else if err == nil {
				logger.Info("Demo seeding completed")
			}
		}()
		return nil
	}
}
