// Package domain contains customer persistence models and contracts.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound            = errors.New("customer_not_found")
	ErrInvalidCustomerID   = errors.New("invalid_customer_id")
	ErrInvalidName         = errors.New("invalid_customer_name")
	ErrInvalidOrganization = errors.New("invalid_organization")
)

// Customer is a billable party. OutstandingBalance is the carried-over unpaid
// amount from prior invoices; it is maintained by payment events outside this
// core and only read here.
type Customer struct {
	ID                 snowflake.ID    `gorm:"primaryKey" json:"id"`
	OrgID              snowflake.ID    `gorm:"not null;index" json:"org_id"`
	Name               string          `gorm:"type:text;not null" json:"name"`
	Email              string          `gorm:"type:text" json:"email,omitempty"`
	BillingAddress     string          `gorm:"type:text" json:"billing_address,omitempty"`
	OutstandingBalance decimal.Decimal `gorm:"type:numeric;not null;default:0" json:"outstanding_balance"`
	CreatedAt          time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt          time.Time       `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (Customer) TableName() string { return "customers" }

type CreateCustomerRequest struct {
	Name           string `json:"name"`
	Email          string `json:"email"`
	BillingAddress string `json:"billing_address"`
}

type ListCustomerResponse struct {
	Customers []Customer `json:"customers"`
}

type Service interface {
	Create(ctx context.Context, req CreateCustomerRequest) (Customer, error)
	GetByID(ctx context.Context, id string) (Customer, error)
	List(ctx context.Context) (ListCustomerResponse, error)
	// OutstandingBalance returns the customer's carried-over balance as of now.
	OutstandingBalance(ctx context.Context, customerID snowflake.ID) (decimal.Decimal, error)
}
