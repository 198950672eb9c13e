package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/facturo/facturo/internal/clock"
	"github.com/facturo/facturo/internal/config"
	customerdomain "github.com/facturo/facturo/internal/customer/domain"
	"github.com/facturo/facturo/internal/invoice/calc"
	invoicedomain "github.com/facturo/facturo/internal/invoice/domain"
	"github.com/facturo/facturo/internal/orgcontext"
	recurringdomain "github.com/facturo/facturo/internal/recurring/domain"
	"github.com/facturo/facturo/internal/recurring/schedule"
	"github.com/facturo/facturo/internal/sequence"
	"github.com/facturo/facturo/pkg/db"
	"github.com/facturo/facturo/pkg/repository"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Cfg         config.Config
	Allocator   sequence.Allocator
	CustomerSvc customerdomain.Service
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	allocator   sequence.Allocator
	customerSvc customerdomain.Service

	defaultTermsDays int

	profiles repository.Repository[recurringdomain.RecurringProfile]
	records  repository.Repository[recurringdomain.GeneratedInvoiceRecord]
}

func NewService(p ServiceParam) recurringdomain.Service {
	terms := p.Cfg.DefaultPaymentTerms
	if terms <= 0 {
		terms = 30
	}
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("recurring.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		allocator:   p.Allocator,
		customerSvc: p.CustomerSvc,

		defaultTermsDays: terms,

		profiles: repository.ProvideStore[recurringdomain.RecurringProfile](p.DB),
		records:  repository.ProvideStore[recurringdomain.GeneratedInvoiceRecord](p.DB),
	}
}

func (s *Service) CreateFromInvoice(ctx context.Context, req recurringdomain.CreateProfileRequest) (recurringdomain.RecurringProfile, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return recurringdomain.RecurringProfile{}, recurringdomain.ErrInvalidOrganization
	}

	invoiceID, err := snowflake.ParseString(strings.TrimSpace(req.InvoiceID))
	if err != nil {
		return recurringdomain.RecurringProfile{}, invoicedomain.ErrInvalidInvoiceID
	}
	if !req.Frequency.Valid() {
		return recurringdomain.RecurringProfile{}, recurringdomain.ErrInvalidFrequency
	}
	if req.StartDate.IsZero() {
		return recurringdomain.RecurringProfile{}, recurringdomain.ErrInvalidStartDate
	}
	startDate := schedule.DateOnly(req.StartDate)

	var endDate *time.Time
	if req.EndDate != nil {
		end := schedule.DateOnly(*req.EndDate)
		if end.Before(startDate) {
			return recurringdomain.RecurringProfile{}, recurringdomain.ErrInvalidEndDate
		}
		endDate = &end
	}

	var source invoicedomain.Invoice
	err = s.db.WithContext(ctx).
		Preload("Items").
		Where(&invoicedomain.Invoice{ID: invoiceID, OrgID: orgID}).
		First(&source).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return recurringdomain.RecurringProfile{}, invoicedomain.ErrNotFound
		}
		return recurringdomain.RecurringProfile{}, err
	}
	if len(source.Items) == 0 {
		return recurringdomain.RecurringProfile{}, invoicedomain.ErrNoItems
	}

	template, err := snapshotTemplate(source).Encode()
	if err != nil {
		return recurringdomain.RecurringProfile{}, err
	}

	now := s.clock.Now()
	profile := recurringdomain.RecurringProfile{
		ID:                 s.genID.Generate(),
		OrgID:              orgID,
		CustomerID:         source.CustomerID,
		Frequency:          req.Frequency,
		StartDate:          startDate,
		EndDate:            endDate,
		NextGenerationDate: startDate,
		Status:             recurringdomain.ProfileStatusActive,
		Template:           template,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.profiles.Create(ctx, &profile); err != nil {
		return recurringdomain.RecurringProfile{}, err
	}
	return profile, nil
}

// snapshotTemplate captures the invoice's billing fields as a value object.
// The profile never holds a live reference to the invoice or customer it was
// derived from.
func snapshotTemplate(source invoicedomain.Invoice) recurringdomain.InvoiceTemplate {
	items := make([]recurringdomain.TemplateItem, 0, len(source.Items))
	for _, item := range source.Items {
		items = append(items, recurringdomain.TemplateItem{
			Description:    item.Description,
			Quantity:       item.Quantity,
			UnitPrice:      item.UnitPrice,
			TaxRate:        item.TaxRate,
			DiscountType:   item.DiscountType,
			DiscountAmount: item.DiscountAmount,
		})
	}
	return recurringdomain.InvoiceTemplate{
		Currency:       source.Currency,
		Notes:          source.Notes,
		DiscountType:   source.DiscountType,
		DiscountAmount: source.DiscountAmount,
		ShippingCost:   source.ShippingCost,
		Items:          items,
	}
}

func (s *Service) GetByID(ctx context.Context, id string) (recurringdomain.RecurringProfile, error) {
	profile, err := s.loadOrgProfile(ctx, id)
	if err != nil {
		return recurringdomain.RecurringProfile{}, err
	}
	return *profile, nil
}

func (s *Service) List(ctx context.Context, req recurringdomain.ListProfileRequest) (recurringdomain.ListProfileResponse, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return recurringdomain.ListProfileResponse{}, recurringdomain.ErrInvalidOrganization
	}

	filter := &recurringdomain.RecurringProfile{OrgID: orgID}
	if req.Status != nil {
		filter.Status = *req.Status
	}
	items, err := s.profiles.Find(ctx, filter)
	if err != nil {
		return recurringdomain.ListProfileResponse{}, err
	}

	profiles := make([]recurringdomain.RecurringProfile, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		profiles = append(profiles, *item)
	}
	return recurringdomain.ListProfileResponse{Profiles: profiles}, nil
}

func (s *Service) Pause(ctx context.Context, id string) (recurringdomain.RecurringProfile, error) {
	return s.transition(ctx, id, recurringdomain.ProfileStatusPaused, recurringdomain.ProfileStatusActive)
}

func (s *Service) Resume(ctx context.Context, id string) (recurringdomain.RecurringProfile, error) {
	return s.transition(ctx, id, recurringdomain.ProfileStatusActive, recurringdomain.ProfileStatusPaused)
}

func (s *Service) Cancel(ctx context.Context, id string) (recurringdomain.RecurringProfile, error) {
	return s.transition(ctx, id, recurringdomain.ProfileStatusCancelled,
		recurringdomain.ProfileStatusActive, recurringdomain.ProfileStatusPaused)
}

func (s *Service) transition(ctx context.Context, id string, to recurringdomain.ProfileStatus, from ...recurringdomain.ProfileStatus) (recurringdomain.RecurringProfile, error) {
	profile, err := s.loadOrgProfile(ctx, id)
	if err != nil {
		return recurringdomain.RecurringProfile{}, err
	}

	allowed := false
	for _, status := range from {
		if profile.Status == status {
			allowed = true
			break
		}
	}
	if !allowed {
		return recurringdomain.RecurringProfile{}, recurringdomain.ErrInvalidTransition
	}

	now := s.clock.Now()
	err = s.db.WithContext(ctx).
		Model(&recurringdomain.RecurringProfile{}).
		Where("id = ?", profile.ID).
		Updates(map[string]any{"status": to, "updated_at": now}).Error
	if err != nil {
		return recurringdomain.RecurringProfile{}, err
	}

	profile.Status = to
	profile.UpdatedAt = now
	return *profile, nil
}

func (s *Service) GenerateNow(ctx context.Context, id string) (recurringdomain.GenerationResult, error) {
	profile, err := s.loadOrgProfile(ctx, id)
	if err != nil {
		return recurringdomain.GenerationResult{}, err
	}
	return s.GenerateForProfile(ctx, *profile, s.clock.Now())
}

func (s *Service) ListDue(ctx context.Context, asOf time.Time) ([]recurringdomain.RecurringProfile, error) {
	var profiles []recurringdomain.RecurringProfile
	err := s.db.WithContext(ctx).
		Where("status = ? AND next_generation_date <= ?",
			recurringdomain.ProfileStatusActive, schedule.DateOnly(asOf)).
		Order("next_generation_date").
		Find(&profiles).Error
	if err != nil {
		return nil, err
	}
	return profiles, nil
}

func (s *Service) GenerateForProfile(ctx context.Context, profile recurringdomain.RecurringProfile, today time.Time) (recurringdomain.GenerationResult, error) {
	if profile.Status != recurringdomain.ProfileStatusActive {
		return recurringdomain.GenerationResult{}, recurringdomain.ErrProfileNotActive
	}
	if !profile.Frequency.Valid() {
		return recurringdomain.GenerationResult{}, recurringdomain.ErrInvalidFrequency
	}

	dueDate := schedule.DateOnly(profile.NextGenerationDate)

	// Double-generation guard: a record for this due date means a previous run
	// generated but did not advance the schedule. Skip rather than duplicate;
	// the inconsistency is surfaced in logs for recovery.
	existing, err := s.records.FindOne(ctx, &recurringdomain.GeneratedInvoiceRecord{
		RecurringProfileID: profile.ID,
		DueDate:            dueDate,
	})
	if err != nil {
		return recurringdomain.GenerationResult{}, err
	}
	if existing != nil {
		s.log.Warn("inconsistent schedule: generation record exists but next_generation_date was not advanced, skipping",
			zap.String("profile_id", profile.ID.String()),
			zap.String("invoice_id", existing.GeneratedInvoiceID.String()),
			zap.Time("due_date", dueDate),
		)
		return recurringdomain.GenerationResult{
			InvoiceID: existing.GeneratedInvoiceID,
			Skipped:   true,
		}, nil
	}

	template, err := profile.DecodeTemplate()
	if err != nil {
		return recurringdomain.GenerationResult{}, err
	}

	outstanding, err := s.customerSvc.OutstandingBalance(ctx, profile.CustomerID)
	if err != nil {
		return recurringdomain.GenerationResult{}, err
	}

	var invoice invoicedomain.Invoice
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		number, err := s.allocator.Allocate(ctx, tx, profile.OrgID)
		if err != nil {
			return err
		}

		built, err := s.materializeInvoice(profile, template, number, today, outstanding)
		if err != nil {
			return err
		}
		if err := tx.Create(&built).Error; err != nil {
			return &recurringdomain.PersistenceError{
				Stage:     recurringdomain.StageInvoiceInsert,
				ProfileID: profile.ID,
				Err:       err,
			}
		}

		record := recurringdomain.GeneratedInvoiceRecord{
			ID:                 s.genID.Generate(),
			OrgID:              profile.OrgID,
			RecurringProfileID: profile.ID,
			GeneratedInvoiceID: built.ID,
			DueDate:            dueDate,
			GeneratedAt:        s.clock.Now(),
		}
		if err := tx.Create(&record).Error; err != nil {
			return &recurringdomain.PersistenceError{
				Stage:     recurringdomain.StageRecordInsert,
				ProfileID: profile.ID,
				Err:       err,
			}
		}

		invoice = built
		return nil
	})
	if err != nil {
		// Two generation passes racing on the same profile collide on the
		// record's (profile, due date) unique index. The loser rolls back its
		// invoice and number with the transaction and reports a skip.
		var perr *recurringdomain.PersistenceError
		if errors.As(err, &perr) && perr.Stage == recurringdomain.StageRecordInsert && db.IsDuplicateKeyErr(perr.Err) {
			s.log.Warn("concurrent generation detected, skipping",
				zap.String("profile_id", profile.ID.String()),
				zap.Time("due_date", dueDate),
			)
			return recurringdomain.GenerationResult{Skipped: true}, nil
		}
		return recurringdomain.GenerationResult{}, err
	}

	// The cadence anchor is the previous next_generation_date, not today:
	// advancing from the processing date would drift the schedule after any
	// delayed run.
	next, err := schedule.Next(profile.NextGenerationDate, profile.Frequency)
	if err != nil {
		return recurringdomain.GenerationResult{}, err
	}

	finished := profile.EndDate != nil && schedule.After(next, *profile.EndDate)
	updates := map[string]any{
		"last_generated_date": schedule.DateOnly(today),
		"updated_at":          s.clock.Now(),
	}
	if finished {
		updates["status"] = recurringdomain.ProfileStatusFinished
	} else {
		updates["next_generation_date"] = schedule.DateOnly(next)
	}

	// The schedule advance runs outside the generation transaction. If it
	// fails, the generation record above keeps the next pass from creating a
	// duplicate for the same due date.
	err = s.db.WithContext(ctx).
		Model(&recurringdomain.RecurringProfile{}).
		Where("id = ?", profile.ID).
		Updates(updates).Error
	if err != nil {
		advanceErr := &recurringdomain.PersistenceError{
			Stage:     recurringdomain.StageProfileUpdate,
			ProfileID: profile.ID,
			Err:       err,
		}
		s.log.Error("generated invoice but failed to advance schedule, profile left stale",
			zap.String("profile_id", profile.ID.String()),
			zap.String("invoice_id", invoice.ID.String()),
			zap.Time("due_date", dueDate),
			zap.Error(err),
		)
		return recurringdomain.GenerationResult{InvoiceID: invoice.ID, InvoiceNumber: invoice.InvoiceNumber}, advanceErr
	}

	return recurringdomain.GenerationResult{
		InvoiceID:     invoice.ID,
		InvoiceNumber: invoice.InvoiceNumber,
		Finished:      finished,
	}, nil
}

// materializeInvoice instantiates a draft invoice from the profile's template
// snapshot with totals computed by the calculator.
func (s *Service) materializeInvoice(
	profile recurringdomain.RecurringProfile,
	template recurringdomain.InvoiceTemplate,
	number string,
	today time.Time,
	outstanding decimal.Decimal,
) (invoicedomain.Invoice, error) {
	calcItems := make([]calc.LineItem, 0, len(template.Items))
	for _, item := range template.Items {
		calcItems = append(calcItems, calc.LineItem{
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			TaxRate:     item.TaxRate,
			Discount:    calc.Discount{Type: item.DiscountType, Amount: item.DiscountAmount},
		})
	}

	totals, err := calc.ComputeTotals(calc.TotalsInput{
		Items:              calcItems,
		ShippingCost:       template.ShippingCost,
		OverallDiscount:    calc.Discount{Type: template.DiscountType, Amount: template.DiscountAmount},
		OutstandingBalance: outstanding,
	})
	if err != nil {
		return invoicedomain.Invoice{}, err
	}

	termsDays := s.defaultTermsDays
	if template.PaymentTermsDays != nil && *template.PaymentTermsDays > 0 {
		termsDays = *template.PaymentTermsDays
	}

	issueDate := schedule.DateOnly(today)
	now := s.clock.Now()
	profileID := profile.ID
	invoiceID := s.genID.Generate()

	items := make([]invoicedomain.LineItem, 0, len(template.Items))
	for _, item := range template.Items {
		items = append(items, invoicedomain.LineItem{
			ID:             s.genID.Generate(),
			OrgID:          profile.OrgID,
			InvoiceID:      invoiceID,
			Description:    item.Description,
			Quantity:       item.Quantity,
			UnitPrice:      item.UnitPrice,
			TaxRate:        item.TaxRate,
			DiscountType:   item.DiscountType,
			DiscountAmount: item.DiscountAmount,
			CreatedAt:      now,
		})
	}

	return invoicedomain.Invoice{
		ID:                 invoiceID,
		OrgID:              profile.OrgID,
		CustomerID:         profile.CustomerID,
		RecurringProfileID: &profileID,
		InvoiceNumber:      number,
		Status:             invoicedomain.InvoiceStatusDraft,
		Currency:           template.Currency,
		IssueDate:          issueDate,
		DueDate:            issueDate.AddDate(0, 0, termsDays),
		Notes:              template.Notes,
		DiscountType:       template.DiscountType,
		DiscountAmount:     template.DiscountAmount,
		ShippingCost:       template.ShippingCost,
		Subtotal:           totals.Subtotal,
		ItemDiscountTotal:  totals.ItemDiscountTotal,
		TaxTotal:           totals.TaxTotal,
		OverallDiscount:    totals.OverallDiscount,
		GrandTotal:         totals.GrandTotal,
		BalanceDue:         totals.BalanceDue,
		Items:              items,
		CreatedAt:          now,
		UpdatedAt:          now,
	}, nil
}

func (s *Service) loadOrgProfile(ctx context.Context, id string) (*recurringdomain.RecurringProfile, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, recurringdomain.ErrInvalidOrganization
	}

	profileID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil {
		return nil, recurringdomain.ErrInvalidProfileID
	}

	profile, err := s.profiles.FindOne(ctx, &recurringdomain.RecurringProfile{ID: profileID, OrgID: orgID})
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, recurringdomain.ErrNotFound
	}
	return profile, nil
}
