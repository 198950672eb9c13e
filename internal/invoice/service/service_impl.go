package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/facturo/facturo/internal/clock"
	"github.com/facturo/facturo/internal/config"
	customerdomain "github.com/facturo/facturo/internal/customer/domain"
	"github.com/facturo/facturo/internal/invoice/calc"
	invoicedomain "github.com/facturo/facturo/internal/invoice/domain"
	"github.com/facturo/facturo/internal/orgcontext"
	"github.com/facturo/facturo/internal/sequence"
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
}

func NewService(p ServiceParam) invoicedomain.Service {
	terms := p.Cfg.DefaultPaymentTerms
	if terms <= 0 {
		terms = 30
	}
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("invoice.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		allocator:   p.Allocator,
		customerSvc: p.CustomerSvc,

		defaultTermsDays: terms,
	}
}

func (s *Service) Create(ctx context.Context, req invoicedomain.CreateInvoiceRequest) (invoicedomain.Invoice, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return invoicedomain.Invoice{}, invoicedomain.ErrInvalidOrganization
	}

	customerID, err := snowflake.ParseString(strings.TrimSpace(req.CustomerID))
	if err != nil {
		return invoicedomain.Invoice{}, invoicedomain.ErrInvalidCustomer
	}
	if len(req.Items) == 0 {
		return invoicedomain.Invoice{}, invoicedomain.ErrNoItems
	}

	customer, err := s.customerSvc.GetByID(ctx, customerID.String())
	if err != nil {
		return invoicedomain.Invoice{}, err
	}

	totals, err := computeTotals(req.Items, req.ShippingCost,
		calc.Discount{Type: req.DiscountType, Amount: req.DiscountAmount},
		customer.OutstandingBalance)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}

	termsDays := s.defaultTermsDays
	if req.DueInDays != nil && *req.DueInDays > 0 {
		termsDays = *req.DueInDays
	}

	now := s.clock.Now()
	issueDate := dateOnly(now)
	invoiceID := s.genID.Generate()

	invoice := invoicedomain.Invoice{
		ID:                invoiceID,
		OrgID:             orgID,
		CustomerID:        customer.ID,
		Status:            invoicedomain.InvoiceStatusDraft,
		Currency:          strings.ToUpper(strings.TrimSpace(req.Currency)),
		IssueDate:         issueDate,
		DueDate:           issueDate.AddDate(0, 0, termsDays),
		Notes:             req.Notes,
		DiscountType:      req.DiscountType,
		DiscountAmount:    req.DiscountAmount,
		ShippingCost:      req.ShippingCost,
		Subtotal:          totals.Subtotal,
		ItemDiscountTotal: totals.ItemDiscountTotal,
		TaxTotal:          totals.TaxTotal,
		OverallDiscount:   totals.OverallDiscount,
		GrandTotal:        totals.GrandTotal,
		BalanceDue:        totals.BalanceDue,
		Items:             s.buildItems(orgID, invoiceID, req.Items, now),
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		number, err := s.allocator.Allocate(ctx, tx, orgID)
		if err != nil {
			return err
		}
		invoice.InvoiceNumber = number
		return tx.Create(&invoice).Error
	})
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	return invoice, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (invoicedomain.Invoice, error) {
	invoice, err := s.loadOrgInvoice(ctx, id)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	return *invoice, nil
}

func (s *Service) List(ctx context.Context, req invoicedomain.ListInvoiceRequest) (invoicedomain.ListInvoiceResponse, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return invoicedomain.ListInvoiceResponse{}, invoicedomain.ErrInvalidOrganization
	}

	filter := &invoicedomain.Invoice{OrgID: orgID}
	if req.Status != nil {
		filter.Status = *req.Status
	}
	if req.CustomerID != nil {
		filter.CustomerID = *req.CustomerID
	}

	var invoices []invoicedomain.Invoice
	err := s.db.WithContext(ctx).
		Where(filter).
		Order("created_at DESC").
		Find(&invoices).Error
	if err != nil {
		return invoicedomain.ListInvoiceResponse{}, err
	}
	return invoicedomain.ListInvoiceResponse{Invoices: invoices}, nil
}

func (s *Service) UpdateDraft(ctx context.Context, id string, req invoicedomain.UpdateDraftRequest) (invoicedomain.Invoice, error) {
	invoice, err := s.loadOrgInvoice(ctx, id)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	if !invoice.IsDraft() {
		return invoicedomain.Invoice{}, invoicedomain.ErrNotDraft
	}
	if len(req.Items) == 0 {
		return invoicedomain.Invoice{}, invoicedomain.ErrNoItems
	}

	customer, err := s.customerSvc.GetByID(ctx, invoice.CustomerID.String())
	if err != nil {
		return invoicedomain.Invoice{}, err
	}

	totals, err := computeTotals(req.Items, req.ShippingCost,
		calc.Discount{Type: req.DiscountType, Amount: req.DiscountAmount},
		customer.OutstandingBalance)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}

	now := s.clock.Now()
	items := s.buildItems(invoice.OrgID, invoice.ID, req.Items, now)

	updates := map[string]any{
		"discount_type":       req.DiscountType,
		"discount_amount":     req.DiscountAmount,
		"shipping_cost":       req.ShippingCost,
		"subtotal":            totals.Subtotal,
		"item_discount_total": totals.ItemDiscountTotal,
		"tax_total":           totals.TaxTotal,
		"overall_discount":    totals.OverallDiscount,
		"grand_total":         totals.GrandTotal,
		"balance_due":         totals.BalanceDue,
		"updated_at":          now,
	}
	if req.Notes != nil {
		updates["notes"] = *req.Notes
	}
	if req.DueInDays != nil && *req.DueInDays > 0 {
		updates["due_date"] = invoice.IssueDate.AddDate(0, 0, *req.DueInDays)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("invoice_id = ?", invoice.ID).Delete(&invoicedomain.LineItem{}).Error; err != nil {
			return err
		}
		if err := tx.Create(&items).Error; err != nil {
			return err
		}
		return tx.Model(&invoicedomain.Invoice{}).Where("id = ?", invoice.ID).Updates(updates).Error
	})
	if err != nil {
		return invoicedomain.Invoice{}, err
	}

	return s.GetByID(ctx, id)
}

func (s *Service) MarkSent(ctx context.Context, id string) (invoicedomain.Invoice, error) {
	invoice, err := s.loadOrgInvoice(ctx, id)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}
	if !invoice.IsDraft() {
		return invoicedomain.Invoice{}, invoicedomain.ErrInvalidStatus
	}

	now := s.clock.Now()
	err = s.db.WithContext(ctx).
		Model(&invoicedomain.Invoice{}).
		Where("id = ?", invoice.ID).
		Updates(map[string]any{"status": invoicedomain.InvoiceStatusSent, "updated_at": now}).Error
	if err != nil {
		return invoicedomain.Invoice{}, err
	}

	invoice.Status = invoicedomain.InvoiceStatusSent
	invoice.UpdatedAt = now
	return *invoice, nil
}

func (s *Service) buildItems(orgID, invoiceID snowflake.ID, inputs []invoicedomain.LineItemInput, now time.Time) []invoicedomain.LineItem {
	items := make([]invoicedomain.LineItem, 0, len(inputs))
	for _, input := range inputs {
		items = append(items, invoicedomain.LineItem{
			ID:             s.genID.Generate(),
			OrgID:          orgID,
			InvoiceID:      invoiceID,
			Description:    input.Description,
			Quantity:       input.Quantity,
			UnitPrice:      input.UnitPrice,
			TaxRate:        input.TaxRate,
			DiscountType:   input.DiscountType,
			DiscountAmount: input.DiscountAmount,
			CreatedAt:      now,
		})
	}
	return items
}

func (s *Service) loadOrgInvoice(ctx context.Context, id string) (*invoicedomain.Invoice, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, invoicedomain.ErrInvalidOrganization
	}

	invoiceID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil {
		return nil, invoicedomain.ErrInvalidInvoiceID
	}

	var invoice invoicedomain.Invoice
	err = s.db.WithContext(ctx).
		Preload("Items").
		Where(&invoicedomain.Invoice{ID: invoiceID, OrgID: orgID}).
		First(&invoice).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, invoicedomain.ErrNotFound
		}
		return nil, err
	}
	return &invoice, nil
}

func computeTotals(
	inputs []invoicedomain.LineItemInput,
	shipping decimal.Decimal,
	overall calc.Discount,
	outstanding decimal.Decimal,
) (calc.Totals, error) {
	items := make([]calc.LineItem, 0, len(inputs))
	for _, input := range inputs {
		items = append(items, calc.LineItem{
			Description: input.Description,
			Quantity:    input.Quantity,
			UnitPrice:   input.UnitPrice,
			TaxRate:     input.TaxRate,
			Discount:    calc.Discount{Type: input.DiscountType, Amount: input.DiscountAmount},
		})
	}
	return calc.ComputeTotals(calc.TotalsInput{
		Items:              items,
		ShippingCost:       shipping,
		OverallDiscount:    overall,
		OutstandingBalance: outstanding,
	})
}

func dateOnly(t time.Time) time.Time {
	year, month, day := t.UTC().Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
