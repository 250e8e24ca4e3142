package models

import "time"

// PlanFeature is the entitlement junction between a plan and a feature.
// At most one row may exist per (plan_id, feature_id) pair; the composite
// unique index is the authoritative guard against concurrent creates.
type PlanFeature struct {
	ID        string    `gorm:"type:char(36);primaryKey" json:"id"`
	PlanID    string    `gorm:"type:char(36);not null;uniqueIndex:uk_plan_feature,priority:1;index" json:"plan_id"`
	FeatureID string    `gorm:"type:char(36);not null;uniqueIndex:uk_plan_feature,priority:2;index" json:"feature_id"`
	IsEnabled bool      `gorm:"default:false;index" json:"is_enabled"`
	Value     JSON      `gorm:"type:json" json:"value"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	Plan    *Plan    `gorm:"foreignKey:PlanID;references:ID" json:"plan,omitempty"`
	Feature *Feature `gorm:"foreignKey:FeatureID;references:ID" json:"feature,omitempty"`
}
