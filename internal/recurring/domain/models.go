// Package domain contains recurring-invoice persistence models and contracts.
package domain

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/facturo/facturo/internal/invoice/calc"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Frequency is the recurrence cadence.
type Frequency string

const (
	FrequencyDaily     Frequency = "daily"
	FrequencyWeekly    Frequency = "weekly"
	FrequencyMonthly   Frequency = "monthly"
	FrequencyQuarterly Frequency = "quarterly"
	FrequencyYearly    Frequency = "yearly"
)

// Valid reports whether f is a known cadence.
func (f Frequency) Valid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyQuarterly, FrequencyYearly:
		return true
	}
	return false
}

// ProfileStatus represents recurring-profile lifecycle states.
type ProfileStatus string

const (
	ProfileStatusActive    ProfileStatus = "active"
	ProfileStatusPaused    ProfileStatus = "paused"
	ProfileStatusCancelled ProfileStatus = "cancelled"
	ProfileStatusFinished  ProfileStatus = "finished"
)

// Terminal reports whether the profile can never generate again.
func (s ProfileStatus) Terminal() bool {
	return s == ProfileStatusCancelled || s == ProfileStatusFinished
}

// RecurringProfile is a template plus a schedule that periodically produces
// invoices. Schedule dates are stored at day granularity (midnight UTC).
type RecurringProfile struct {
	ID                 snowflake.ID   `gorm:"primaryKey" json:"id"`
	OrgID              snowflake.ID   `gorm:"not null;index" json:"org_id"`
	CustomerID         snowflake.ID   `gorm:"not null;index" json:"customer_id"`
	Frequency          Frequency      `gorm:"type:text;not null" json:"frequency"`
	StartDate          time.Time      `gorm:"not null" json:"start_date"`
	EndDate            *time.Time     `json:"end_date,omitempty"`
	LastGeneratedDate  *time.Time     `json:"last_generated_date,omitempty"`
	NextGenerationDate time.Time      `gorm:"not null;index" json:"next_generation_date"`
	Status             ProfileStatus  `gorm:"type:text;not null;default:'active';index" json:"status"`
	Template           datatypes.JSON `gorm:"type:jsonb;not null" json:"template"`
	CreatedAt          time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt          time.Time      `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (RecurringProfile) TableName() string { return "recurring_profiles" }

// DecodeTemplate unmarshals the stored template snapshot.
func (p RecurringProfile) DecodeTemplate() (InvoiceTemplate, error) {
	var tpl InvoiceTemplate
	if len(p.Template) == 0 {
		return InvoiceTemplate{}, ErrInvalidTemplate
	}
	if err := json.Unmarshal(p.Template, &tpl); err != nil {
		return InvoiceTemplate{}, errors.Join(ErrInvalidTemplate, err)
	}
	return tpl, nil
}

// InvoiceTemplate is the value-object snapshot of invoice fields captured when
// recurrence was set up. Generations never re-fetch live customer data.
type InvoiceTemplate struct {
	Currency         string            `json:"currency"`
	Notes            string            `json:"notes,omitempty"`
	BillToName       string            `json:"bill_to_name,omitempty"`
	BillToAddress    string            `json:"bill_to_address,omitempty"`
	PaymentTermsDays *int              `json:"payment_terms_days,omitempty"`
	DiscountType     calc.DiscountType `json:"discount_type,omitempty"`
	DiscountAmount   decimal.Decimal   `json:"discount_amount"`
	ShippingCost     decimal.Decimal   `json:"shipping_cost"`
	Items            []TemplateItem    `json:"items"`
}

// TemplateItem is one snapshotted line item.
type TemplateItem struct {
	Description    string            `json:"description"`
	Quantity       decimal.Decimal   `json:"quantity"`
	UnitPrice      decimal.Decimal   `json:"unit_price"`
	TaxRate        decimal.Decimal   `json:"tax_rate"`
	DiscountType   calc.DiscountType `json:"discount_type,omitempty"`
	DiscountAmount decimal.Decimal   `json:"discount_amount"`
}

// Encode marshals the template for storage.
func (t InvoiceTemplate) Encode() (datatypes.JSON, error) {
	raw, err := json.Marshal(t)
	if err != nil {
		return nil, errors.Join(ErrInvalidTemplate, err)
	}
	return datatypes.JSON(raw), nil
}

// GeneratedInvoiceRecord is the append-only audit entry written once per
// successful generation. DueDate is the schedule date the generation
// satisfied; it anchors the double-generation guard.
type GeneratedInvoiceRecord struct {
	ID                 snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID              snowflake.ID `gorm:"not null;index" json:"org_id"`
	RecurringProfileID snowflake.ID `gorm:"not null;index;uniqueIndex:ux_generated_records_profile_due" json:"recurring_profile_id"`
	GeneratedInvoiceID snowflake.ID `gorm:"not null" json:"generated_invoice_id"`
	DueDate            time.Time    `gorm:"not null;uniqueIndex:ux_generated_records_profile_due" json:"due_date"`
	GeneratedAt        time.Time    `gorm:"not null" json:"generated_at"`
}

// TableName sets the database table name.
func (GeneratedInvoiceRecord) TableName() string { return "generated_invoice_records" }
