package service

import (
	"strings"
	"testing"

	"wagerledger/fairness"
	"wagerledger/lock"
	"wagerledger/models"
	"wagerledger/payout"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type serviceMocks struct {
	factory *MockUnitOfWorkFactory
	uow     *MockUnitOfWork
	seeds   *MockSeedPairRepository
	rounds  *MockRoundRepository
	ledger  *MockLedgerRepository
	bus     *MockEventPublisher
	metrics *MockMetrics
}

// newServiceMocks wires a unit of work whose Begin and Rollback always succeed.
// Commit expectations are left to each test.
func newServiceMocks() *serviceMocks {
	m := &serviceMocks{
		factory: new(MockUnitOfWorkFactory),
		uow:     new(MockUnitOfWork),
		seeds:   new(MockSeedPairRepository),
		rounds:  new(MockRoundRepository),
		ledger:  new(MockLedgerRepository),
		bus:     new(MockEventPublisher),
		metrics: new(MockMetrics),
	}
	m.uow.SetRepositories(m.seeds, m.rounds, m.ledger, m.bus)
	m.factory.On("Create").Return(m.uow)
	m.uow.On("Begin", mock.Anything).Return(nil)
	m.uow.On("Rollback").Return(nil)
	return m
}

func (m *serviceMocks) assertExpectations(t *testing.T) {
	t.Helper()
	m.seeds.AssertExpectations(t)
	m.rounds.AssertExpectations(t)
	m.ledger.AssertExpectations(t)
	m.bus.AssertExpectations(t)
	m.metrics.AssertExpectations(t)
	m.uow.AssertExpectations(t)
}

func newTestLocker(t *testing.T) *lock.Coordinator {
	t.Helper()
	c, err := lock.NewCoordinator([]lock.Store{lock.NewMemoryStore()})
	require.NoError(t, err)
	return c
}

func testEdges(t *testing.T) *payout.EdgeTable {
	t.Helper()
	edges, err := payout.NewEdgeTable(map[models.GameType]payout.GameEdges{
		models.GameTypeDice:      {Default: dec("1")},
		models.GameTypeLimbo:     {Default: dec("1")},
		models.GameTypePlinko:    {Default: dec("1")},
		models.GameTypeRoulette:  {Default: dec("2.7027")},
		models.GameTypeBlackjack: {
			Default:  dec("0.5"),
			BetTypes: map[string]decimal.Decimal{
				"perfect_pairs":         dec("4.1"),
				"twenty_one_plus_three": dec("3.24"),
				"insurance":             dec("7.4"),
			},
		},
	})
	require.NoError(t, err)
	return edges
}

func testLimits() StakeLimits {
	return StakeLimits{Min: dec("0.00000001"), Max: dec("1000000")}
}

func testSeedPair(userID int64) *models.SeedPair {
	serverSeed := strings.Repeat("ab", 32)
	return &models.SeedPair{
		ID:             7,
		UserID:         userID,
		ServerSeed:     serverSeed,
		ServerSeedHash: fairness.HashServerSeed(serverSeed),
		ClientSeed:     "client-seed",
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// decEq matches a decimal argument by value rather than representation
func decEq(s string) any {
	want := dec(s)
	return mock.MatchedBy(func(d decimal.Decimal) bool {
		return d.Equal(want)
	})
}
