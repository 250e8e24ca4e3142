package models

// Derived read models computed from the entitlement relationship set.
// None of these are persisted.

// PlanEntitlement is one plan's cell in a matrix row.
type PlanEntitlement struct {
	PlanFeatureID string `json:"plan_feature_id"`
	PlanID        string `json:"plan_id"`
	PlanName      string `json:"plan_name"`
	IsEnabled     bool   `json:"is_enabled"`
	Value         JSON   `json:"value"`
}

// EntitlementMatrixRow pivots the relationship set for one feature across
// all plans carrying it.
type EntitlementMatrixRow struct {
	FeatureID   string            `json:"feature_id"`
	KeyName     string            `json:"key_name"`
	DisplayName string            `json:"display_name"`
	Category    *string           `json:"category"`
	Plans       []PlanEntitlement `json:"plans"`
}

// CategoryBreakdown counts entitlements per feature category.
type CategoryBreakdown struct {
	Total   int `json:"total"`
	Enabled int `json:"enabled"`
}

// PlanEntitlementSummary is the rollup for a single plan.
type PlanEntitlementSummary struct {
	PlanID             string                       `json:"plan_id"`
	PlanName           string                       `json:"plan_name"`
	TotalFeatures      int                          `json:"total_features"`
	EnabledFeatures    int                          `json:"enabled_features"`
	DisabledFeatures   int                          `json:"disabled_features"`
	FeaturesWithValues int                          `json:"features_with_values"`
	FeaturesByCategory map[string]CategoryBreakdown `json:"features_by_category"`
}

// PlanCoverage reports how much of a plan's entitlement set is enabled.
type PlanCoverage struct {
	PlanID          string  `json:"plan_id"`
	PlanName        string  `json:"plan_name"`
	TotalFeatures   int     `json:"total_features"`
	EnabledFeatures int     `json:"enabled_features"`
	CoveragePercent float64 `json:"coverage_percent"`
}

// FeatureAdoption reports how many plans carrying a feature enable it.
type FeatureAdoption struct {
	FeatureID       string  `json:"feature_id"`
	KeyName         string  `json:"key_name"`
	DisplayName     string  `json:"display_name"`
	PlanCount       int     `json:"plan_count"`
	EnabledCount    int     `json:"enabled_count"`
	AdoptionPercent float64 `json:"adoption_percent"`
}

// EntitlementAnalytics is the global rollup across the whole matrix.
type EntitlementAnalytics struct {
	TotalPlans          int               `json:"total_plans"`
	TotalFeatures       int               `json:"total_features"`
	TotalEntitlements   int               `json:"total_entitlements"`
	EnabledEntitlements int               `json:"enabled_entitlements"`
	PlanCoverage        []PlanCoverage    `json:"plan_coverage"`
	FeatureAdoption     []FeatureAdoption `json:"feature_adoption"`
}

// MissingFeature identifies a feature not yet assigned to a plan.
type MissingFeature struct {
	FeatureID   string  `json:"feature_id"`
	KeyName     string  `json:"key_name"`
	DisplayName string  `json:"display_name"`
	Category    *string `json:"category"`
	IsActive    bool    `json:"is_active"`
}

// FeatureUsage reports where a feature is referenced.
type FeatureUsage struct {
	FeatureID        string          `json:"feature_id"`
	KeyName          string          `json:"key_name"`
	EntitlementCount int             `json:"entitlement_count"`
	EnabledCount     int             `json:"enabled_count"`
	Plans            []PlanUsageInfo `json:"plans"`
}

// PlanUsageInfo names one plan carrying a feature.
type PlanUsageInfo struct {
	PlanID    string `json:"plan_id"`
	PlanName  string `json:"plan_name"`
	IsEnabled bool   `json:"is_enabled"`
}
