// Package domain contains persistence models for invoicing.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/facturo/facturo/internal/invoice/calc"
	"github.com/shopspring/decimal"
)

// InvoiceStatus represents invoice lifecycle states. Transitions past draft
// are driven externally (send action, payment events).
type InvoiceStatus string

const (
	InvoiceStatusDraft     InvoiceStatus = "draft"
	InvoiceStatusSent      InvoiceStatus = "sent"
	InvoiceStatusPaid      InvoiceStatus = "paid"
	InvoiceStatusOverdue   InvoiceStatus = "overdue"
	InvoiceStatusCancelled InvoiceStatus = "cancelled"
)

// Invoice represents an issued or draft invoice. Monetary columns hold the
// totals as computed by calc.ComputeTotals at the last mutation.
type Invoice struct {
	ID                 snowflake.ID      `gorm:"primaryKey" json:"id"`
	OrgID              snowflake.ID      `gorm:"not null;index;uniqueIndex:ux_invoices_org_number" json:"org_id"`
	CustomerID         snowflake.ID      `gorm:"not null;index" json:"customer_id"`
	RecurringProfileID *snowflake.ID     `gorm:"index" json:"recurring_profile_id,omitempty"`
	InvoiceNumber      string            `gorm:"type:text;not null;uniqueIndex:ux_invoices_org_number" json:"invoice_number"`
	Status             InvoiceStatus     `gorm:"type:text;not null;default:'draft'" json:"status"`
	Currency           string            `gorm:"type:text;not null" json:"currency"`
	IssueDate          time.Time         `gorm:"not null" json:"issue_date"`
	DueDate            time.Time         `gorm:"not null" json:"due_date"`
	Notes              string            `gorm:"type:text" json:"notes,omitempty"`
	DiscountType       calc.DiscountType `gorm:"type:text" json:"discount_type,omitempty"`
	DiscountAmount     decimal.Decimal   `gorm:"type:numeric;not null;default:0" json:"discount_amount"`
	ShippingCost       decimal.Decimal   `gorm:"type:numeric;not null;default:0" json:"shipping_cost"`

	Subtotal          decimal.Decimal `gorm:"type:numeric;not null;default:0" json:"subtotal"`
	ItemDiscountTotal decimal.Decimal `gorm:"type:numeric;not null;default:0" json:"item_discount_total"`
	TaxTotal          decimal.Decimal `gorm:"type:numeric;not null;default:0" json:"tax_total"`
	OverallDiscount   decimal.Decimal `gorm:"type:numeric;not null;default:0" json:"overall_discount"`
	GrandTotal        decimal.Decimal `gorm:"type:numeric;not null;default:0" json:"grand_total"`
	BalanceDue        decimal.Decimal `gorm:"type:numeric;not null;default:0" json:"balance_due"`

	Items []LineItem `gorm:"foreignKey:InvoiceID" json:"items"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (Invoice) TableName() string { return "invoices" }

// OverallDiscountSpec returns the invoice-level discount as a calc variant.
func (i Invoice) OverallDiscountSpec() calc.Discount {
	return calc.Discount{Type: i.DiscountType, Amount: i.DiscountAmount}
}

// IsDraft reports whether line items and adjustments may still be mutated.
func (i Invoice) IsDraft() bool { return i.Status == InvoiceStatusDraft }

// LineItem represents a line on an invoice. Immutable once the invoice left
// draft.
type LineItem struct {
	ID             snowflake.ID      `gorm:"primaryKey" json:"id"`
	OrgID          snowflake.ID      `gorm:"not null;index" json:"org_id"`
	InvoiceID      snowflake.ID      `gorm:"not null;index" json:"invoice_id"`
	Description    string            `gorm:"type:text" json:"description"`
	Quantity       decimal.Decimal   `gorm:"type:numeric;not null" json:"quantity"`
	UnitPrice      decimal.Decimal   `gorm:"type:numeric;not null" json:"unit_price"`
	TaxRate        decimal.Decimal   `gorm:"type:numeric;not null;default:0" json:"tax_rate"`
	DiscountType   calc.DiscountType `gorm:"type:text" json:"discount_type,omitempty"`
	DiscountAmount decimal.Decimal   `gorm:"type:numeric;not null;default:0" json:"discount_amount"`
	CreatedAt      time.Time         `gorm:"not null" json:"created_at"`
}

// TableName sets the database table name.
func (LineItem) TableName() string { return "invoice_line_items" }

// CalcItem converts the stored row into calculator input.
func (l LineItem) CalcItem() calc.LineItem {
	return calc.LineItem{
		Description: l.Description,
		Quantity:    l.Quantity,
		UnitPrice:   l.UnitPrice,
		TaxRate:     l.TaxRate,
		Discount:    calc.Discount{Type: l.DiscountType, Amount: l.DiscountAmount},
	}
}
