package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/facturo/facturo/internal/invoice/calc"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound            = errors.New("invoice_not_found")
	ErrNotDraft            = errors.New("invoice_not_draft")
	ErrNoItems             = errors.New("invoice_has_no_items")
	ErrInvalidInvoiceID    = errors.New("invalid_invoice_id")
	ErrInvalidCustomer     = errors.New("invalid_customer")
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidStatus       = errors.New("invalid_status_transition")
)

// LineItemInput is a line item as submitted by a caller.
type LineItemInput struct {
	Description    string            `json:"description"`
	Quantity       decimal.Decimal   `json:"quantity"`
	UnitPrice      decimal.Decimal   `json:"unit_price"`
	TaxRate        decimal.Decimal   `json:"tax_rate"`
	DiscountType   calc.DiscountType `json:"discount_type"`
	DiscountAmount decimal.Decimal   `json:"discount_amount"`
}

// CreateInvoiceRequest creates a draft invoice.
type CreateInvoiceRequest struct {
	CustomerID     string            `json:"customer_id"`
	Currency       string            `json:"currency"`
	Notes          string            `json:"notes"`
	DueInDays      *int              `json:"due_in_days"`
	DiscountType   calc.DiscountType `json:"discount_type"`
	DiscountAmount decimal.Decimal   `json:"discount_amount"`
	ShippingCost   decimal.Decimal   `json:"shipping_cost"`
	Items          []LineItemInput   `json:"items"`
}

// UpdateDraftRequest replaces a draft invoice's items and adjustments.
type UpdateDraftRequest struct {
	Notes          *string           `json:"notes"`
	DueInDays      *int              `json:"due_in_days"`
	DiscountType   calc.DiscountType `json:"discount_type"`
	DiscountAmount decimal.Decimal   `json:"discount_amount"`
	ShippingCost   decimal.Decimal   `json:"shipping_cost"`
	Items          []LineItemInput   `json:"items"`
}

// ListInvoiceRequest filters the org-scoped invoice list.
type ListInvoiceRequest struct {
	Status     *InvoiceStatus
	CustomerID *snowflake.ID
}

type ListInvoiceResponse struct {
	Invoices []Invoice `json:"invoices"`
}

type Service interface {
	Create(ctx context.Context, req CreateInvoiceRequest) (Invoice, error)
	GetByID(ctx context.Context, id string) (Invoice, error)
	List(ctx context.Context, req ListInvoiceRequest) (ListInvoiceResponse, error)
	UpdateDraft(ctx context.Context, id string, req UpdateDraftRequest) (Invoice, error)
	MarkSent(ctx context.Context, id string) (Invoice, error)
}
