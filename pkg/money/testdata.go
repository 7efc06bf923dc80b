package money

import (
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/shopspring/decimal"
)

// TestDataGenerator generates realistic brokerage test data using gofakeit.
type TestDataGenerator struct {
	faker *gofakeit.Faker
}

// NewTestDataGenerator creates a new test data generator with a random seed.
func NewTestDataGenerator() *TestDataGenerator {
	return &TestDataGenerator{faker: gofakeit.New(0)}
}

// NewTestDataGeneratorWithSeed creates a generator with a specific seed for reproducibility.
func NewTestDataGeneratorWithSeed(seed int64) *TestDataGenerator {
	return &TestDataGenerator{faker: gofakeit.New(seed)}
}

var tickers = []string{"AAPL", "AMZN", "FSLY", "MSFT", "NVDA", "T", "TWLO", "VTI", "VZ", "XOM"}

// generated dates stay inside this window so seeded runs are reproducible
var (
	windowStart = time.Date(2019, time.January, 1, 0, 0, 0, 0, time.UTC)
	windowEnd   = time.Date(2021, time.December, 31, 0, 0, 0, 0, time.UTC)
)

// TestLot is a closed position with statement-formatted amounts.
type TestLot struct {
	Symbol            string
	Quantity          string
	AcquisitionDate   time.Time
	AcquisitionAmount string
	LiquidationDate   time.Time
	LiquidationAmount string
}

// Symbol returns a ticker from a small fixed universe.
func (g *TestDataGenerator) Symbol() string {
	return g.faker.RandomString(tickers)
}

// Amount returns a USD amount between min and max dollars.
func (g *TestDataGenerator) Amount(minDollars, maxDollars float64) *Money {
	d := decimal.NewFromFloat(g.faker.Float64Range(minDollars, maxDollars))
	return NewFromDecimal(d, USD)
}

// Lot generates a single realized lot. Gains and losses are both possible.
func (g *TestDataGenerator) Lot() TestLot {
	acquired := g.faker.DateRange(windowStart, windowEnd.AddDate(0, -3, 0))
	liquidated := g.faker.DateRange(acquired, windowEnd)
	cost := g.Amount(100, 25000)
	proceeds := NewFromDecimal(cost.ToDecimal().Mul(decimal.NewFromFloat(g.faker.Float64Range(0.6, 1.6))), USD)

	return TestLot{
		Symbol:            g.Symbol(),
		Quantity:          decimal.NewFromInt(int64(g.faker.Number(1, 500))).String(),
		AcquisitionDate:   acquired,
		AcquisitionAmount: cost.Display(),
		LiquidationDate:   liquidated,
		LiquidationAmount: proceeds.Display(),
	}
}

// Lots generates count realized lots.
func (g *TestDataGenerator) Lots(count int) []TestLot {
	lots := make([]TestLot, count)
	for i := range lots {
		lots[i] = g.Lot()
	}
	return lots
}
