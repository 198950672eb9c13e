package scheduler

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/facturo/facturo/internal/clock"
	"github.com/facturo/facturo/internal/config"
	customerdomain "github.com/facturo/facturo/internal/customer/domain"
	customersvc "github.com/facturo/facturo/internal/customer/service"
	invoicedomain "github.com/facturo/facturo/internal/invoice/domain"
	invoicesvc "github.com/facturo/facturo/internal/invoice/service"
	"github.com/facturo/facturo/internal/orgcontext"
	recurringdomain "github.com/facturo/facturo/internal/recurring/domain"
	recurringsvc "github.com/facturo/facturo/internal/recurring/service"
	"github.com/facturo/facturo/internal/sequence"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

type fixture struct {
	sched      *Scheduler
	svc        recurringdomain.Service
	invoiceSvc invoicedomain.Service
	db         *gorm.DB
	clock      *clock.FakeClock
	customer   customerdomain.Customer
	source     invoicedomain.Invoice
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func orgCtx(orgID int64) context.Context {
	return orgcontext.WithOrgID(context.Background(), snowflake.ID(orgID))
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func setup(t *testing.T) *fixture {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&customerdomain.Customer{},
		&invoicedomain.Invoice{},
		&invoicedomain.LineItem{},
		&recurringdomain.RecurringProfile{},
		&recurringdomain.GeneratedInvoiceRecord{},
		&sequence.InvoiceSequence{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	log := zaptest.NewLogger(t)
	fakeClock := clock.NewFakeClock(date(2024, time.January, 15))
	alloc := sequence.NewAllocator()
	cfg := config.Config{DefaultPaymentTerms: 30}

	customerSvc := customersvc.NewService(customersvc.ServiceParam{
		DB:    db,
		Log:   log,
		GenID: node,
	})
	invoiceSvc := invoicesvc.NewService(invoicesvc.ServiceParam{
		DB:          db,
		Log:         log,
		GenID:       node,
		Clock:       fakeClock,
		Cfg:         cfg,
		Allocator:   alloc,
		CustomerSvc: customerSvc,
	})
	svc := recurringsvc.NewService(recurringsvc.ServiceParam{
		DB:          db,
		Log:         log,
		GenID:       node,
		Clock:       fakeClock,
		Cfg:         cfg,
		Allocator:   alloc,
		CustomerSvc: customerSvc,
	})

	sched, err := New(Params{
		Log:          log,
		Clock:        fakeClock,
		RecurringSvc: svc,
	})
	require.NoError(t, err)

	customer, err := customerSvc.Create(orgCtx(1), customerdomain.CreateCustomerRequest{Name: "Acme"})
	require.NoError(t, err)

	source, err := invoiceSvc.Create(orgCtx(1), invoicedomain.CreateInvoiceRequest{
		CustomerID: customer.ID.String(),
		Currency:   "EUR",
		Items: []invoicedomain.LineItemInput{
			{Description: "Consulting", Quantity: dec("2"), UnitPrice: dec("100"), TaxRate: dec("10")},
		},
	})
	require.NoError(t, err)

	return &fixture{
		sched:      sched,
		svc:        svc,
		invoiceSvc: invoiceSvc,
		db:         db,
		clock:      fakeClock,
		customer:   customer,
		source:     source,
	}
}

func (f *fixture) createProfile(t *testing.T, endDate *time.Time) recurringdomain.RecurringProfile {
	t.Helper()
	profile, err := f.svc.CreateFromInvoice(orgCtx(1), recurringdomain.CreateProfileRequest{
		InvoiceID: f.source.ID.String(),
		Frequency: recurringdomain.FrequencyMonthly,
		StartDate: date(2024, time.January, 15),
		EndDate:   endDate,
	})
	require.NoError(t, err)
	return profile
}

func (f *fixture) generatedCount(t *testing.T, profileID snowflake.ID) int64 {
	t.Helper()
	var count int64
	require.NoError(t, f.db.Model(&invoicedomain.Invoice{}).
		Where("recurring_profile_id = ?", profileID).Count(&count).Error)
	return count
}

func TestRunOnce_GeneratesAndAdvances(t *testing.T) {
	f := setup(t)
	profile := f.createProfile(t, nil)

	summary, err := f.sched.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, PassSummary{Succeeded: 1}, summary)
	assert.EqualValues(t, 1, f.generatedCount(t, profile.ID))

	refreshed, err := f.svc.GetByID(orgCtx(1), profile.ID.String())
	require.NoError(t, err)
	assert.WithinDuration(t, date(2024, time.February, 15), refreshed.NextGenerationDate, time.Second)

	// Re-running the pass on the same day finds nothing due.
	summary, err = f.sched.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, PassSummary{}, summary)
	assert.EqualValues(t, 1, f.generatedCount(t, profile.ID))
}

func TestRunOnce_GeneratesAgainWhenNextDateArrives(t *testing.T) {
	f := setup(t)
	profile := f.createProfile(t, nil)

	_, err := f.sched.RunOnce(context.Background())
	require.NoError(t, err)

	f.clock.Set(date(2024, time.February, 15))
	summary, err := f.sched.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, PassSummary{Succeeded: 1}, summary)
	assert.EqualValues(t, 2, f.generatedCount(t, profile.ID))
}

func TestRunOnce_CatchesUpAfterDowntimeWithoutDrift(t *testing.T) {
	f := setup(t)
	profile := f.createProfile(t, nil)

	// The pass runs three days late; the cadence stays anchored to the 15th.
	f.clock.Set(date(2024, time.January, 18))
	summary, err := f.sched.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, PassSummary{Succeeded: 1}, summary)

	refreshed, err := f.svc.GetByID(orgCtx(1), profile.ID.String())
	require.NoError(t, err)
	assert.WithinDuration(t, date(2024, time.February, 15), refreshed.NextGenerationDate, time.Second)
	require.NotNil(t, refreshed.LastGeneratedDate)
	assert.WithinDuration(t, date(2024, time.January, 18), *refreshed.LastGeneratedDate, time.Second)
}

func TestRunOnce_FinishesProfileAtEndDate(t *testing.T) {
	f := setup(t)
	end := date(2024, time.January, 31)
	profile := f.createProfile(t, &end)

	summary, err := f.sched.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, PassSummary{Succeeded: 1}, summary)

	refreshed, err := f.svc.GetByID(orgCtx(1), profile.ID.String())
	require.NoError(t, err)
	assert.Equal(t, recurringdomain.ProfileStatusFinished, refreshed.Status)

	// Later passes leave the finished profile alone.
	f.clock.Set(date(2024, time.March, 15))
	summary, err = f.sched.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, PassSummary{}, summary)
	assert.EqualValues(t, 1, f.generatedCount(t, profile.ID))
}

func TestRunOnce_SkipsStaleScheduleInsteadOfDuplicating(t *testing.T) {
	f := setup(t)
	profile := f.createProfile(t, nil)

	_, err := f.sched.RunOnce(context.Background())
	require.NoError(t, err)

	// Simulate a crash after the generation record was written but before the
	// schedule advanced.
	err = f.db.Model(&recurringdomain.RecurringProfile{}).
		Where("id = ?", profile.ID).
		Update("next_generation_date", date(2024, time.January, 15)).Error
	require.NoError(t, err)

	summary, err := f.sched.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, PassSummary{Skipped: 1}, summary)
	assert.EqualValues(t, 1, f.generatedCount(t, profile.ID))
}

func TestRunOnce_IsolatesProfileFailures(t *testing.T) {
	f := setup(t)
	broken := f.createProfile(t, nil)
	healthy := f.createProfile(t, nil)

	err := f.db.Model(&recurringdomain.RecurringProfile{}).
		Where("id = ?", broken.ID).
		Update("template", "not json").Error
	require.NoError(t, err)

	summary, err := f.sched.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, PassSummary{Succeeded: 1, Failed: 1}, summary)
	assert.EqualValues(t, 1, f.generatedCount(t, healthy.ID))
	assert.EqualValues(t, 0, f.generatedCount(t, broken.ID))
}

func TestRunOnce_HonorsBatchSize(t *testing.T) {
	f := setup(t)
	for i := 0; i < 3; i++ {
		f.createProfile(t, nil)
	}

	sched, err := New(Params{
		Log:          zaptest.NewLogger(t),
		Clock:        f.clock,
		RecurringSvc: f.svc,
		Config:       Config{RunInterval: time.Minute, BatchSize: 2},
	})
	require.NoError(t, err)

	summary, err := sched.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, PassSummary{Succeeded: 2}, summary)

	summary, err = sched.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, PassSummary{Succeeded: 1}, summary)
}

func TestNew_RequiresDependencies(t *testing.T) {
	_, err := New(Params{})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
