package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrNotFound            = errors.New("recurring_profile_not_found")
	ErrInvalidProfileID    = errors.New("invalid_recurring_profile_id")
	ErrInvalidFrequency    = errors.New("invalid_frequency")
	ErrInvalidStartDate    = errors.New("invalid_start_date")
	ErrInvalidEndDate      = errors.New("invalid_end_date")
	ErrInvalidTemplate     = errors.New("invalid_template")
	ErrInvalidTransition   = errors.New("invalid_profile_transition")
	ErrProfileNotActive    = errors.New("recurring_profile_not_active")
	ErrInvalidOrganization = errors.New("invalid_organization")
)

// Persistence stages, used to pinpoint where a generation failed.
const (
	StageInvoiceInsert = "invoice_insert"
	StageRecordInsert  = "record_insert"
	StageProfileUpdate = "profile_update"
)

// PersistenceError is a stage-tagged insert/update failure. It aborts
// processing of the owning profile only.
type PersistenceError struct {
	Stage     string
	ProfileID snowflake.ID
	Err       error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failed at %s for profile %s: %v", e.Stage, e.ProfileID, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// CreateProfileRequest opts an existing invoice into recurrence. The invoice's
// items, adjustments, currency and notes are snapshotted as the template.
type CreateProfileRequest struct {
	InvoiceID string     `json:"invoice_id"`
	Frequency Frequency  `json:"frequency"`
	StartDate time.Time  `json:"start_date"`
	EndDate   *time.Time `json:"end_date"`
}

type ListProfileRequest struct {
	Status *ProfileStatus
}

type ListProfileResponse struct {
	Profiles []RecurringProfile `json:"profiles"`
}

// GenerationResult describes the outcome for a single profile.
type GenerationResult struct {
	InvoiceID     snowflake.ID
	InvoiceNumber string
	// Skipped is set when a generation record already covered the profile's
	// current due date and regeneration was refused.
	Skipped bool
	// Finished is set when the advanced schedule passed the profile's end date.
	Finished bool
}

type Service interface {
	CreateFromInvoice(ctx context.Context, req CreateProfileRequest) (RecurringProfile, error)
	GetByID(ctx context.Context, id string) (RecurringProfile, error)
	List(ctx context.Context, req ListProfileRequest) (ListProfileResponse, error)

	Pause(ctx context.Context, id string) (RecurringProfile, error)
	Resume(ctx context.Context, id string) (RecurringProfile, error)
	Cancel(ctx context.Context, id string) (RecurringProfile, error)

	// GenerateNow runs the generation protocol for one profile regardless of
	// whether it is currently due.
	GenerateNow(ctx context.Context, id string) (GenerationResult, error)

	// ListDue returns active profiles whose next generation date is on or
	// before asOf (day granularity). Used by the scheduling pass.
	ListDue(ctx context.Context, asOf time.Time) ([]RecurringProfile, error)

	// GenerateForProfile runs the generation protocol for a single profile:
	// allocate number, materialize invoice from the template, append the
	// generation record, advance the schedule. today is the issue date.
	GenerateForProfile(ctx context.Context, profile RecurringProfile, today time.Time) (GenerationResult, error)
}
