package syncer

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/spiceflow/internal/common"
	"github.com/Veraticus/spiceflow/internal/model"
	"github.com/Veraticus/spiceflow/internal/service"
)

// Seeding limits. The sandbox only accepts custom transactions dated within
// the last two weeks.
const (
	DefaultSeedCount = 30
	MaxSeedCount     = 100
	seedWindowDays   = 14
)

type seedMerchant struct {
	description string
	min, max    int64 // whole currency units
}

var seedMerchants = []seedMerchant{
	{"STARBUCKS", 4, 15},
	{"WHOLE FOODS", 20, 120},
	{"UBER TRIP", 8, 45},
	{"SHELL OIL", 25, 80},
	{"NETFLIX.COM", 9, 25},
	{"SPOTIFY", 10, 15},
	{"AMAZON MARKETPLACE", 10, 220},
	{"TARGET", 15, 180},
	{"DELTA AIR LINES", 120, 600},
	{"CHIPOTLE", 9, 25},
	{"CVS PHARMACY", 8, 60},
	{"APPLE.COM/BILL", 1, 35},
}

// SeedOutcome reports seeding and the follow-up sync for one item.
type SeedOutcome struct {
	Sync    *SyncResult `json:"sync,omitempty"`
	Err     error       `json:"-"`
	ItemID  int64       `json:"item_id"`
	Created int         `json:"created"`
}

// Seeder fills sandbox items with synthetic spending and syncs them.
type Seeder struct {
	provider    service.Provider
	coordinator *Coordinator
	now         func() time.Time

	mu   sync.Mutex // guards rand; seed requests may run concurrently
	rand *rand.Rand
}

// NewSeeder creates a seeder that syncs through coordinator.
func NewSeeder(provider service.Provider, coordinator *Coordinator) *Seeder {
	return &Seeder{
		provider:    provider,
		coordinator: coordinator,
		rand:        rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x5eed)),
		now:         time.Now,
	}
}

// Seed creates count random transactions in each target item, then syncs
// it. A zero count means DefaultSeedCount.
func (s *Seeder) Seed(ctx context.Context, itemID *int64, count int) ([]SeedOutcome, error) {
	if count == 0 {
		count = DefaultSeedCount
	}
	if count < 1 || count > MaxSeedCount {
		return nil, common.NewValidationError("count", fmt.Sprintf("must be between 1 and %d", MaxSeedCount))
	}

	items, err := s.coordinator.targets(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, common.NewValidationError("items", "no linked items found, connect an account first")
	}

	outcomes := make([]SeedOutcome, 0, len(items))
	for i := range items {
		item := &items[i]
		outcome := SeedOutcome{ItemID: item.ID}

		txns := s.generate(count)
		if err := s.provider.CreateSandboxTransactions(ctx, item.AccessToken, txns); err != nil {
			outcome.Err = err
			outcomes = append(outcomes, outcome)
			continue
		}
		outcome.Created = len(txns)

		outcome.Sync, outcome.Err = s.coordinator.SyncItem(ctx, item)
		outcomes = append(outcomes, outcome)
	}
	return outcomes, nil
}

func (s *Seeder) generate(count int) []model.SandboxTransaction {
	today := s.now().UTC()
	txns := make([]model.SandboxTransaction, 0, count)

	s.mu.Lock()
	defer s.mu.Unlock()

	for range count {
		m := seedMerchants[s.rand.IntN(len(seedMerchants))]
		day := today.AddDate(0, 0, -s.rand.IntN(seedWindowDays)).Format(model.DateLayout)
		cents := m.min*100 + s.rand.Int64N((m.max-m.min)*100+1)

		txns = append(txns, model.SandboxTransaction{
			DateTransacted: day,
			DatePosted:     day,
			Description:    m.description,
			CurrencyCode:   "USD",
			Amount:         decimal.New(cents, -2),
		})
	}
	return txns
}
