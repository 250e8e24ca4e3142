package models

import (
	"errors"
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"
)

var (
	// keyNamePattern restricts feature keys to lowercase machine names.
	keyNamePattern = regexp.MustCompile(`^[a-z0-9_-]+$`)
	// slugPattern restricts plan slugs to URL-safe lowercase names.
	slugPattern = regexp.MustCompile(`^[a-z0-9-]+$`)

	errKeyNameFormat = errors.New("key_name must match ^[a-z0-9_-]+$")
	errSlugFormat    = errors.New("slug must match ^[a-z0-9-]+$")
)

// Feature is a capability that can be toggled (boolean) or parameterized
// with a quota/limit payload (non-boolean).
type Feature struct {
	ID               string    `gorm:"type:char(36);primaryKey" json:"id"`
	KeyName          string    `gorm:"type:varchar(100);uniqueIndex;not null" json:"key_name"`
	DisplayName      string    `gorm:"type:varchar(150);not null" json:"display_name"`
	Description      string    `gorm:"type:text" json:"description"`
	Category         *string   `gorm:"type:varchar(100);index" json:"category"`
	IsBoolean        bool      `gorm:"default:true" json:"is_boolean"`
	DefaultValue     JSON      `gorm:"type:json" json:"default_value"`
	ValidationSchema JSON      `gorm:"type:json" json:"validation_schema"`
	IsActive         bool      `gorm:"default:true;index" json:"is_active"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// CategoryOrDefault resolves the grouping category for aggregation.
func (f *Feature) CategoryOrDefault() string {
	if f.Category == nil || *f.Category == "" {
		return "Uncategorized"
	}
	return *f.Category
}

// CreateFeatureInput carries the fields accepted when creating a feature.
type CreateFeatureInput struct {
	KeyName          string  `json:"key_name" validate:"required,min=1,max=100"`
	DisplayName      string  `json:"display_name" validate:"required,min=1,max=150"`
	Description      string  `json:"description" validate:"max=2000"`
	Category         *string `json:"category" validate:"omitempty,max=100"`
	IsBoolean        *bool   `json:"is_boolean"`
	DefaultValue     JSON    `json:"default_value"`
	ValidationSchema JSON    `json:"validation_schema"`
	IsActive         *bool   `json:"is_active"`
}

// Validate checks field constraints before the input reaches storage.
func (in *CreateFeatureInput) Validate() error {
	v := validator.New()
	if err := v.Struct(in); err != nil {
		return err
	}
	if !keyNamePattern.MatchString(in.KeyName) {
		return errKeyNameFormat
	}
	return nil
}

// UpdateFeatureInput carries a partial feature update. Nil fields are left
// untouched. KeyName is immutable once created.
type UpdateFeatureInput struct {
	DisplayName      *string `json:"display_name" validate:"omitempty,min=1,max=150"`
	Description      *string `json:"description" validate:"omitempty,max=2000"`
	Category         *string `json:"category" validate:"omitempty,max=100"`
	IsBoolean        *bool   `json:"is_boolean"`
	DefaultValue     JSON    `json:"default_value"`
	ValidationSchema JSON    `json:"validation_schema"`
	IsActive         *bool   `json:"is_active"`
}

// Validate checks field constraints before the update reaches storage.
func (in *UpdateFeatureInput) Validate() error {
	v := validator.New()
	return v.Struct(in)
}
