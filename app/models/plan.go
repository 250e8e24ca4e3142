package models

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// Billing intervals a plan may use. A plan without an interval is a
// one-time purchase.
const (
	BillingIntervalMonthly = "monthly"
	BillingIntervalYearly  = "yearly"
	BillingIntervalWeekly  = "weekly"
	BillingIntervalDaily   = "daily"
)

// Plan is a purchasable subscription tier.
type Plan struct {
	ID              string    `gorm:"type:char(36);primaryKey" json:"id"`
	Name            string    `gorm:"type:varchar(150);uniqueIndex;not null" json:"name"`
	Slug            string    `gorm:"type:varchar(150);uniqueIndex;not null" json:"slug"`
	Description     string    `gorm:"type:text" json:"description"`
	Price           float64   `gorm:"type:decimal(10,2);not null;default:0" json:"price"`
	Currency        string    `gorm:"type:varchar(3);not null;default:'USD'" json:"currency"`
	BillingInterval *string   `gorm:"type:varchar(16)" json:"billing_interval"`
	IsActive        bool      `gorm:"default:true;index" json:"is_active"`
	SortOrder       int       `gorm:"not null;default:0;index" json:"sort_order"`
	Metadata        JSON      `gorm:"type:json" json:"metadata"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// CreatePlanInput carries the fields accepted when creating a plan.
type CreatePlanInput struct {
	Name            string  `json:"name" validate:"required,min=1,max=150"`
	Slug            string  `json:"slug" validate:"required,min=1,max=150"`
	Description     string  `json:"description" validate:"max=2000"`
	Price           float64 `json:"price" validate:"gte=0"`
	Currency        string  `json:"currency" validate:"omitempty,len=3"`
	BillingInterval *string `json:"billing_interval" validate:"omitempty,oneof=monthly yearly weekly daily"`
	IsActive        *bool   `json:"is_active"`
	SortOrder       *int    `json:"sort_order" validate:"omitempty,gte=0"`
	Metadata        JSON    `json:"metadata"`
}

// Validate checks field constraints before the input reaches storage.
func (in *CreatePlanInput) Validate() error {
	v := validator.New()
	if err := v.Struct(in); err != nil {
		return err
	}
	if !slugPattern.MatchString(in.Slug) {
		return errSlugFormat
	}
	return nil
}

// UpdatePlanInput carries a partial plan update. Nil fields are left
// untouched.
type UpdatePlanInput struct {
	Name            *string  `json:"name" validate:"omitempty,min=1,max=150"`
	Slug            *string  `json:"slug" validate:"omitempty,min=1,max=150"`
	Description     *string  `json:"description" validate:"omitempty,max=2000"`
	Price           *float64 `json:"price" validate:"omitempty,gte=0"`
	Currency        *string  `json:"currency" validate:"omitempty,len=3"`
	BillingInterval *string  `json:"billing_interval" validate:"omitempty,oneof=monthly yearly weekly daily"`
	IsActive        *bool    `json:"is_active"`
	SortOrder       *int     `json:"sort_order" validate:"omitempty,gte=0"`
	Metadata        JSON     `json:"metadata"`
}

// Validate checks field constraints before the update reaches storage.
func (in *UpdatePlanInput) Validate() error {
	v := validator.New()
	if err := v.Struct(in); err != nil {
		return err
	}
	if in.Slug != nil && !slugPattern.MatchString(*in.Slug) {
		return errSlugFormat
	}
	return nil
}
