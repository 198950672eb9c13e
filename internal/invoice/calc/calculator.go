// Package calc computes invoice totals. It is pure: no I/O, no clock, no
// persistence. Given the same input it always produces the same Totals.
package calc

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// DiscountType selects how a discount amount is interpreted.
type DiscountType string

const (
	DiscountFixed      DiscountType = "fixed"
	DiscountPercentage DiscountType = "percentage"
)

// Discount is a tagged variant: a fixed amount or a percentage of the base it
// applies to. The zero value is no discount.
type Discount struct {
	Type   DiscountType    `json:"type"`
	Amount decimal.Decimal `json:"amount"`
}

// AmountFor returns the monetary discount for the given base. The result is
// intentionally not clamped to the base; a fixed discount larger than the base
// yields a negative taxable amount.
func (d Discount) AmountFor(base decimal.Decimal) decimal.Decimal {
	switch d.Type {
	case DiscountPercentage:
		return base.Mul(d.Amount).Div(hundred)
	case DiscountFixed:
		return d.Amount
	default:
		return decimal.Zero
	}
}

// IsZero reports whether the discount has no effect.
func (d Discount) IsZero() bool {
	return d.Type == "" || d.Amount.IsZero()
}

// LineItem is one billable row.
type LineItem struct {
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TaxRate     decimal.Decimal `json:"tax_rate"` // percent, 0..100
	Discount    Discount        `json:"discount"`
}

// TotalsInput is everything the calculator needs.
type TotalsInput struct {
	Items              []LineItem
	ShippingCost       decimal.Decimal
	OverallDiscount    Discount
	OutstandingBalance decimal.Decimal
}

// Totals is the derived monetary breakdown of an invoice.
type Totals struct {
	Subtotal          decimal.Decimal `json:"subtotal"`
	ItemDiscountTotal decimal.Decimal `json:"item_discount_total"`
	TaxTotal          decimal.Decimal `json:"tax_total"`
	ShippingCost      decimal.Decimal `json:"shipping_cost"`
	OverallDiscount   decimal.Decimal `json:"overall_discount"`
	GrandTotal        decimal.Decimal `json:"grand_total"`
	BalanceDue        decimal.Decimal `json:"balance_due"`
}

// ValidationError describes a rejected calculator input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func newValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// ComputeTotals derives the invoice totals. The application order is fixed:
// per-item base, per-item discount, per-item tax on the discounted base,
// accumulation, shipping, overall discount on the pre-discount total, carried
// outstanding balance last. Reordering changes the numeric result.
func ComputeTotals(in TotalsInput) (Totals, error) {
	if err := validateInput(in); err != nil {
		return Totals{}, err
	}

	subtotal := decimal.Zero
	itemDiscount := decimal.Zero
	tax := decimal.Zero

	for _, item := range in.Items {
		base := item.Quantity.Mul(item.UnitPrice)
		discount := item.Discount.AmountFor(base)
		taxable := base.Sub(discount)

		subtotal = subtotal.Add(base)
		itemDiscount = itemDiscount.Add(discount)
		tax = tax.Add(taxable.Mul(item.TaxRate).Div(hundred))
	}

	preDiscountTotal := subtotal.Sub(itemDiscount).Add(tax).Add(in.ShippingCost)
	overallDiscount := in.OverallDiscount.AmountFor(preDiscountTotal)
	grandTotal := preDiscountTotal.Sub(overallDiscount)

	return Totals{
		Subtotal:          subtotal,
		ItemDiscountTotal: itemDiscount,
		TaxTotal:          tax,
		ShippingCost:      in.ShippingCost,
		OverallDiscount:   overallDiscount,
		GrandTotal:        grandTotal,
		BalanceDue:        grandTotal.Add(in.OutstandingBalance),
	}, nil
}

func validateInput(in TotalsInput) error {
	for i, item := range in.Items {
		if err := validateItem(i, item); err != nil {
			return err
		}
	}
	if in.ShippingCost.IsNegative() {
		return newValidationError("shipping_cost", "must not be negative")
	}
	if in.OverallDiscount.Amount.IsNegative() {
		return newValidationError("discount_amount", "must not be negative")
	}
	if in.OutstandingBalance.IsNegative() {
		return newValidationError("outstanding_balance", "must not be negative")
	}
	return nil
}

func validateItem(index int, item LineItem) error {
	field := func(name string) string {
		return fmt.Sprintf("items[%d].%s", index, name)
	}
	if item.Quantity.IsNegative() {
		return newValidationError(field("quantity"), "must not be negative")
	}
	if item.UnitPrice.IsNegative() {
		return newValidationError(field("unit_price"), "must not be negative")
	}
	if item.TaxRate.IsNegative() || item.TaxRate.GreaterThan(hundred) {
		return newValidationError(field("tax_rate"), "must be between 0 and 100")
	}
	if item.Discount.Amount.IsNegative() {
		return newValidationError(field("discount_amount"), "must not be negative")
	}
	return nil
}
