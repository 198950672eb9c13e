// Package sequence allocates per-organization invoice numbers. Numbers are
// strictly increasing and unique within an organization, including under
// concurrent manual and scheduler-driven creation.
package sequence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// ErrAllocation wraps any failure to hand out the next number.
var ErrAllocation = errors.New("allocation_failed")

// InvoiceSequence is the per-organization counter row.
type InvoiceSequence struct {
	OrgID     snowflake.ID `gorm:"primaryKey"`
	LastValue int64        `gorm:"not null;default:0"`
	UpdatedAt time.Time    `gorm:"not null"`
}

// TableName sets the database table name.
func (InvoiceSequence) TableName() string { return "invoice_sequences" }

// Allocator hands out the next invoice number for an organization. The
// increment must run inside the caller's transaction so a failed invoice
// insert rolls the number back with it.
type Allocator interface {
	Allocate(ctx context.Context, tx *gorm.DB, orgID snowflake.ID) (string, error)
}

type allocator struct{}

// NewAllocator returns the gorm-backed allocator.
func NewAllocator() Allocator {
	return &allocator{}
}

func (a *allocator) Allocate(ctx context.Context, tx *gorm.DB, orgID snowflake.ID) (string, error) {
	now := time.Now().UTC()

	if err := tx.WithContext(ctx).Exec(
		`INSERT INTO invoice_sequences (org_id, last_value, updated_at)
		 VALUES (?, 0, ?)
		 ON CONFLICT (org_id) DO NOTHING`,
		orgID, now,
	).Error; err != nil {
		return "", fmt.Errorf("%w: seed sequence: %v", ErrAllocation, err)
	}

	// Atomic increment serializes concurrent allocators on the row.
	if err := tx.WithContext(ctx).Exec(
		`UPDATE invoice_sequences
		 SET last_value = last_value + 1, updated_at = ?
		 WHERE org_id = ?`,
		now, orgID,
	).Error; err != nil {
		return "", fmt.Errorf("%w: increment sequence: %v", ErrAllocation, err)
	}

	var next int64
	if err := tx.WithContext(ctx).Raw(
		`SELECT last_value FROM invoice_sequences WHERE org_id = ?`,
		orgID,
	).Scan(&next).Error; err != nil {
		return "", fmt.Errorf("%w: read sequence: %v", ErrAllocation, err)
	}
	if next == 0 {
		return "", fmt.Errorf("%w: sequence row missing for org %s", ErrAllocation, orgID)
	}

	return Format(next), nil
}

// Format renders a sequence value as a display invoice number.
func Format(value int64) string {
	return fmt.Sprintf("INV-%06d", value)
}
