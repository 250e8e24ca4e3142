package matrix

import (
	"context"
	"encoding/json"
	"math"

	"github.com/planmatrix/planmatrix/app/models"
	"github.com/planmatrix/planmatrix/app/repository"
)

// GetEntitlementMatrix pivots the entitlement set into one row per
// feature, each carrying its plan tuples. Row order follows the store's
// join order (plan name, then feature display name), deduplicated by
// feature. The unfiltered matrix is served from cache when available.
func (e *Engine) GetEntitlementMatrix(ctx context.Context, filter repository.MatrixFilter) ([]models.EntitlementMatrixRow, error) {
	cacheable := len(filter.PlanIDs) == 0 && len(filter.FeatureIDs) == 0 && filter.IsEnabled == nil
	if cacheable {
		var rows []models.EntitlementMatrixRow
		if e.cacheGet(ctx, CacheKeyMatrix, &rows) {
			return rows, nil
		}
	}

	entries, err := e.store.GetMatrix(filter)
	if err != nil {
		return nil, storageErr(err)
	}

	rows := make([]models.EntitlementMatrixRow, 0)
	index := make(map[string]int)
	for _, entry := range entries {
		i, ok := index[entry.FeatureID]
		if !ok {
			rows = append(rows, models.EntitlementMatrixRow{
				FeatureID:   entry.FeatureID,
				KeyName:     entry.FeatureKeyName,
				DisplayName: entry.FeatureDisplayName,
				Category:    entry.FeatureCategory,
				Plans:       []models.PlanEntitlement{},
			})
			i = len(rows) - 1
			index[entry.FeatureID] = i
		}
		rows[i].Plans = append(rows[i].Plans, models.PlanEntitlement{
			PlanFeatureID: entry.PlanFeatureID,
			PlanID:        entry.PlanID,
			PlanName:      entry.PlanName,
			IsEnabled:     entry.IsEnabled,
			Value:         entry.Value,
		})
	}

	if cacheable {
		e.cacheSet(ctx, CacheKeyMatrix, rows)
	}
	return rows, nil
}

// GetPlanEntitlementSummary rolls up one plan's entitlement set: totals,
// value-carrying rows and a per-category breakdown. Feature categories are
// resolved with a single batched lookup.
func (e *Engine) GetPlanEntitlementSummary(ctx context.Context, planID string) (*models.PlanEntitlementSummary, error) {
	plan, err := e.plans.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}

	cacheKey := CacheKeySummaryPrefix + planID
	var cached models.PlanEntitlementSummary
	if e.cacheGet(ctx, cacheKey, &cached) {
		return &cached, nil
	}

	pfs, err := e.store.GetByPlanID(planID)
	if err != nil {
		return nil, storageErr(err)
	}

	featureIDs := make([]string, 0, len(pfs))
	for _, pf := range pfs {
		featureIDs = appendUnique(featureIDs, pf.FeatureID)
	}
	featureMap, _ := e.lookupFeatures(ctx, featureIDs)

	summary := &models.PlanEntitlementSummary{
		PlanID:             plan.ID,
		PlanName:           plan.Name,
		TotalFeatures:      len(pfs),
		FeaturesByCategory: map[string]models.CategoryBreakdown{},
	}
	for _, pf := range pfs {
		if pf.IsEnabled {
			summary.EnabledFeatures++
		}
		if pf.Value.HasKeys() {
			summary.FeaturesWithValues++
		}
		category := "Uncategorized"
		if feature, ok := featureMap[pf.FeatureID]; ok {
			category = feature.CategoryOrDefault()
		}
		breakdown := summary.FeaturesByCategory[category]
		breakdown.Total++
		if pf.IsEnabled {
			breakdown.Enabled++
		}
		summary.FeaturesByCategory[category] = breakdown
	}
	summary.DisabledFeatures = summary.TotalFeatures - summary.EnabledFeatures

	e.cacheSet(ctx, cacheKey, summary)
	return summary, nil
}

// GetEntitlementAnalytics computes the global rollup: relationship counts,
// per-plan coverage and per-feature adoption. Plans or features with no
// entitlements report 0 percent rather than dividing by zero.
func (e *Engine) GetEntitlementAnalytics(ctx context.Context) (*models.EntitlementAnalytics, error) {
	var cached models.EntitlementAnalytics
	if e.cacheGet(ctx, CacheKeyAnalytics, &cached) {
		return &cached, nil
	}

	plans, err := e.plans.AllPlans(ctx)
	if err != nil {
		return nil, err
	}
	features, err := e.features.AllFeatures(ctx)
	if err != nil {
		return nil, err
	}
	pfs, err := e.store.GetAll()
	if err != nil {
		return nil, storageErr(err)
	}

	type tally struct{ total, enabled int }
	perPlan := make(map[string]*tally, len(plans))
	perFeature := make(map[string]*tally, len(features))

	analytics := &models.EntitlementAnalytics{
		TotalPlans:        len(plans),
		TotalFeatures:     len(features),
		TotalEntitlements: len(pfs),
		PlanCoverage:      make([]models.PlanCoverage, 0, len(plans)),
		FeatureAdoption:   make([]models.FeatureAdoption, 0, len(features)),
	}
	for _, pf := range pfs {
		if perPlan[pf.PlanID] == nil {
			perPlan[pf.PlanID] = &tally{}
		}
		if perFeature[pf.FeatureID] == nil {
			perFeature[pf.FeatureID] = &tally{}
		}
		perPlan[pf.PlanID].total++
		perFeature[pf.FeatureID].total++
		if pf.IsEnabled {
			analytics.EnabledEntitlements++
			perPlan[pf.PlanID].enabled++
			perFeature[pf.FeatureID].enabled++
		}
	}

	for _, plan := range plans {
		coverage := models.PlanCoverage{PlanID: plan.ID, PlanName: plan.Name}
		if t := perPlan[plan.ID]; t != nil {
			coverage.TotalFeatures = t.total
			coverage.EnabledFeatures = t.enabled
			coverage.CoveragePercent = percent(t.enabled, t.total)
		}
		analytics.PlanCoverage = append(analytics.PlanCoverage, coverage)
	}
	for _, feature := range features {
		adoption := models.FeatureAdoption{
			FeatureID:   feature.ID,
			KeyName:     feature.KeyName,
			DisplayName: feature.DisplayName,
		}
		if t := perFeature[feature.ID]; t != nil {
			adoption.PlanCount = t.total
			adoption.EnabledCount = t.enabled
			adoption.AdoptionPercent = percent(t.enabled, t.total)
		}
		analytics.FeatureAdoption = append(analytics.FeatureAdoption, adoption)
	}

	e.cacheSet(ctx, CacheKeyAnalytics, analytics)
	return analytics, nil
}

// GetMissingFeaturesForPlan returns every feature, active or inactive, not
// yet assigned to the plan.
func (e *Engine) GetMissingFeaturesForPlan(ctx context.Context, planID string) ([]models.MissingFeature, error) {
	if _, err := e.plans.GetPlan(ctx, planID); err != nil {
		return nil, err
	}
	features, err := e.features.AllFeatures(ctx)
	if err != nil {
		return nil, err
	}
	pfs, err := e.store.GetByPlanID(planID)
	if err != nil {
		return nil, storageErr(err)
	}

	assigned := make(map[string]struct{}, len(pfs))
	for _, pf := range pfs {
		assigned[pf.FeatureID] = struct{}{}
	}

	missing := make([]models.MissingFeature, 0)
	for _, feature := range features {
		if _, ok := assigned[feature.ID]; ok {
			continue
		}
		missing = append(missing, models.MissingFeature{
			FeatureID:   feature.ID,
			KeyName:     feature.KeyName,
			DisplayName: feature.DisplayName,
			Category:    feature.Category,
			IsActive:    feature.IsActive,
		})
	}
	return missing, nil
}

// GetEntitlementsForPlan returns a plan's raw entitlement rows, optionally
// only the enabled ones.
func (e *Engine) GetEntitlementsForPlan(ctx context.Context, planID string, enabledOnly bool) ([]models.PlanFeature, error) {
	if _, err := e.plans.GetPlan(ctx, planID); err != nil {
		return nil, err
	}
	var (
		pfs []models.PlanFeature
		err error
	)
	if enabledOnly {
		pfs, err = e.store.GetEnabledByPlanID(planID)
	} else {
		pfs, err = e.store.GetByPlanID(planID)
	}
	if err != nil {
		return nil, storageErr(err)
	}
	return pfs, nil
}

// percent computes enabled/total as a percentage rounded to 2 decimals,
// with 0 for an empty denominator.
func percent(enabled, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(enabled)/float64(total)*100*100) / 100
}

func (e *Engine) cacheGet(ctx context.Context, key string, out interface{}) bool {
	if e.cache == nil {
		return false
	}
	raw, err := e.cache.Get(ctx, key)
	if err != nil || raw == "" {
		return false
	}
	return json.Unmarshal([]byte(raw), out) == nil
}

func (e *Engine) cacheSet(ctx context.Context, key string, value interface{}) {
	if e.cache == nil {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	_ = e.cache.Set(ctx, key, string(raw), cacheTTL)
}
