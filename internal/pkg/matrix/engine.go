package matrix

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/planmatrix/planmatrix/app/models"
	"github.com/planmatrix/planmatrix/app/repository"
	"github.com/planmatrix/planmatrix/internal/pkg/apperrors"
)

// Cache keys for the derived read models. Every mutation invalidates the
// whole entitlement namespace.
const (
	CacheKeyMatrix        = "entitlement:matrix"
	CacheKeyAnalytics     = "entitlement:analytics"
	CacheKeySummaryPrefix = "entitlement:summary:"
	CacheKeyPattern       = "entitlement:*"

	cacheTTL = 5 * time.Minute
)

// PlanCatalog is the plan collaborator the engine validates against.
type PlanCatalog interface {
	GetPlan(ctx context.Context, id string) (*models.Plan, error)
	AllPlans(ctx context.Context) ([]models.Plan, error)
}

// FeatureCatalog is the feature collaborator the engine validates against.
type FeatureCatalog interface {
	GetFeature(ctx context.Context, id string) (*models.Feature, error)
	FeaturesByIDs(ctx context.Context, ids []string) ([]models.Feature, error)
	AllFeatures(ctx context.Context) ([]models.Feature, error)
}

// Cache stores serialized read models. A nil cache disables caching.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// Engine maintains the plan/feature entitlement matrix: relationship CRUD,
// bulk mutation, cross-plan copy and aggregate queries.
type Engine struct {
	store    repository.PlanFeatureRepository
	plans    PlanCatalog
	features FeatureCatalog
	cache    Cache
}

// NewEngine creates a matrix engine from its injected collaborators.
func NewEngine(store repository.PlanFeatureRepository, plans PlanCatalog, features FeatureCatalog, cache Cache) *Engine {
	return &Engine{store: store, plans: plans, features: features, cache: cache}
}

// CreatePlanFeatureInput carries one new entitlement.
type CreatePlanFeatureInput struct {
	PlanID    string      `json:"plan_id"`
	FeatureID string      `json:"feature_id"`
	IsEnabled bool        `json:"is_enabled"`
	Value     models.JSON `json:"value"`
}

// UpdatePlanFeatureInput carries a partial entitlement update. Nil fields
// retain their prior value.
type UpdatePlanFeatureInput struct {
	IsEnabled *bool       `json:"is_enabled"`
	Value     models.JSON `json:"value"`
}

// BulkUpdateEntry addresses one entitlement in a bulk update.
type BulkUpdateEntry struct {
	PlanFeatureID string      `json:"plan_feature_id"`
	IsEnabled     *bool       `json:"is_enabled"`
	Value         models.JSON `json:"value"`
}

// ReplaceEntry is one row of a wholesale plan entitlement replacement.
type ReplaceEntry struct {
	FeatureID string      `json:"feature_id"`
	IsEnabled bool        `json:"is_enabled"`
	Value     models.JSON `json:"value"`
}

// CreatePlanFeature assigns a feature to a plan. The storage unique index
// on (plan_id, feature_id) arbitrates concurrent creates; the loser gets
// PLAN_FEATURE_ALREADY_EXISTS.
func (e *Engine) CreatePlanFeature(ctx context.Context, in CreatePlanFeatureInput) (*models.PlanFeature, error) {
	if _, err := e.plans.GetPlan(ctx, in.PlanID); err != nil {
		return nil, err
	}
	feature, err := e.features.GetFeature(ctx, in.FeatureID)
	if err != nil {
		return nil, err
	}
	value, err := normalizeValue(feature, in.Value)
	if err != nil {
		return nil, err
	}

	pf := &models.PlanFeature{
		ID:        uuid.NewString(),
		PlanID:    in.PlanID,
		FeatureID: in.FeatureID,
		IsEnabled: in.IsEnabled,
		Value:     value,
	}
	if err := e.store.Create(pf); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperrors.Newf(apperrors.CodePlanFeatureAlreadyExists,
				"plan %s already has feature %s", in.PlanID, in.FeatureID)
		}
		return nil, storageErr(err)
	}
	e.invalidate(ctx)
	return pf, nil
}

// UpdatePlanFeature changes the enabled flag and/or value of an existing
// entitlement. Omitted fields are left untouched.
func (e *Engine) UpdatePlanFeature(ctx context.Context, id string, in UpdatePlanFeatureInput) (*models.PlanFeature, error) {
	pf, err := e.getPlanFeature(id)
	if err != nil {
		return nil, err
	}
	if in.IsEnabled != nil {
		pf.IsEnabled = *in.IsEnabled
	}
	if in.Value != nil {
		if !in.Value.IsObject() {
			return nil, apperrors.New(apperrors.CodeInvalidValue, "value must be a JSON object")
		}
		pf.Value = in.Value
	}
	if err := e.store.Update(pf); err != nil {
		return nil, storageErr(err)
	}
	e.invalidate(ctx)
	return pf, nil
}

// DeletePlanFeature removes a single entitlement.
func (e *Engine) DeletePlanFeature(ctx context.Context, id string) error {
	if _, err := e.getPlanFeature(id); err != nil {
		return err
	}
	if err := e.store.Delete(id); err != nil {
		return storageErr(err)
	}
	e.invalidate(ctx)
	return nil
}

// BulkCreatePlanFeatures inserts a batch of entitlements atomically. The
// whole batch is validated before any write: in-batch pair duplicates,
// missing plans or features, malformed values and pairs already present
// in storage each reject the batch.
func (e *Engine) BulkCreatePlanFeatures(ctx context.Context, inputs []CreatePlanFeatureInput) ([]models.PlanFeature, error) {
	if len(inputs) == 0 {
		return nil, nil
	}

	seen := make(map[string]struct{}, len(inputs))
	planIDs := make([]string, 0, len(inputs))
	featureIDs := make([]string, 0, len(inputs))
	for _, in := range inputs {
		key := in.PlanID + ":" + in.FeatureID
		if _, dup := seen[key]; dup {
			return nil, apperrors.Newf(apperrors.CodeDuplicateInBatch,
				"pair (%s, %s) appears more than once in the batch", in.PlanID, in.FeatureID)
		}
		seen[key] = struct{}{}
		planIDs = appendUnique(planIDs, in.PlanID)
		featureIDs = appendUnique(featureIDs, in.FeatureID)
	}

	featureMap, problems := e.lookupFeatures(ctx, featureIDs)
	for _, planID := range planIDs {
		if _, err := e.plans.GetPlan(ctx, planID); err != nil {
			if apperrors.IsCode(err, apperrors.CodePlanNotFound) {
				problems = append(problems, fmt.Sprintf("plan %s not found", planID))
				continue
			}
			return nil, err
		}
	}
	for _, in := range inputs {
		feature, ok := featureMap[in.FeatureID]
		if !ok {
			continue
		}
		if _, err := normalizeValue(feature, in.Value); err != nil {
			problems = append(problems, fmt.Sprintf("pair (%s, %s): %s", in.PlanID, in.FeatureID, err))
		}
	}
	if len(problems) > 0 {
		return nil, apperrors.New(apperrors.CodeBulkValidationError, strings.Join(problems, "; "))
	}

	existing, err := e.existingPairs(planIDs)
	if err != nil {
		return nil, err
	}
	var dups []string
	for _, in := range inputs {
		if _, ok := existing[in.PlanID+":"+in.FeatureID]; ok {
			dups = append(dups, fmt.Sprintf("(%s, %s)", in.PlanID, in.FeatureID))
		}
	}
	if len(dups) > 0 {
		return nil, apperrors.Newf(apperrors.CodeBulkDuplicateError,
			"pairs already exist: %s", strings.Join(dups, ", "))
	}

	rows := make([]models.PlanFeature, 0, len(inputs))
	for _, in := range inputs {
		value, _ := normalizeValue(featureMap[in.FeatureID], in.Value)
		rows = append(rows, models.PlanFeature{
			ID:        uuid.NewString(),
			PlanID:    in.PlanID,
			FeatureID: in.FeatureID,
			IsEnabled: in.IsEnabled,
			Value:     value,
		})
	}
	if err := e.store.CreateMany(rows); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperrors.New(apperrors.CodeBulkDuplicateError,
				"one or more pairs were created concurrently")
		}
		return nil, storageErr(err)
	}
	e.invalidate(ctx)
	return rows, nil
}

// BulkUpdatePlanFeatures applies UpdatePlanFeature semantics to each entry.
// Entry shape is validated for the whole batch up front; the updates
// themselves are applied independently, not as one atomic group, so a
// missing row fails that entry after earlier entries have been applied.
func (e *Engine) BulkUpdatePlanFeatures(ctx context.Context, entries []BulkUpdateEntry) ([]models.PlanFeature, error) {
	var problems []string
	for i, entry := range entries {
		if entry.PlanFeatureID == "" {
			problems = append(problems, fmt.Sprintf("entry %d: plan_feature_id is required", i))
		}
		if entry.Value != nil && !entry.Value.IsObject() {
			problems = append(problems, fmt.Sprintf("entry %d: value must be a JSON object", i))
		}
	}
	if len(problems) > 0 {
		return nil, apperrors.New(apperrors.CodeBulkUpdateValidation, strings.Join(problems, "; "))
	}

	updated := make([]models.PlanFeature, 0, len(entries))
	for _, entry := range entries {
		pf, err := e.UpdatePlanFeature(ctx, entry.PlanFeatureID, UpdatePlanFeatureInput{
			IsEnabled: entry.IsEnabled,
			Value:     entry.Value,
		})
		if err != nil {
			return updated, err
		}
		updated = append(updated, *pf)
	}
	return updated, nil
}

// ReplaceAllFeaturesForPlan atomically discards the plan's entire
// entitlement set and installs the given entries. Every referenced
// feature is validated before any mutation; an empty entry set is valid
// and leaves the plan with no entitlements.
func (e *Engine) ReplaceAllFeaturesForPlan(ctx context.Context, planID string, entries []ReplaceEntry) ([]models.PlanFeature, error) {
	if _, err := e.plans.GetPlan(ctx, planID); err != nil {
		return nil, err
	}

	featureIDs := make([]string, 0, len(entries))
	for _, entry := range entries {
		for _, seen := range featureIDs {
			if seen == entry.FeatureID {
				return nil, apperrors.Newf(apperrors.CodeDuplicateInBatch,
					"feature %s appears more than once in the entry set", entry.FeatureID)
			}
		}
		featureIDs = append(featureIDs, entry.FeatureID)
	}

	featureMap, problems := e.lookupFeatures(ctx, featureIDs)
	if len(problems) > 0 {
		return nil, apperrors.New(apperrors.CodeFeatureNotFound, strings.Join(problems, "; "))
	}

	rows := make([]models.PlanFeature, 0, len(entries))
	for _, entry := range entries {
		value, err := normalizeValue(featureMap[entry.FeatureID], entry.Value)
		if err != nil {
			return nil, err
		}
		rows = append(rows, models.PlanFeature{
			ID:        uuid.NewString(),
			PlanID:    planID,
			FeatureID: entry.FeatureID,
			IsEnabled: entry.IsEnabled,
			Value:     value,
		})
	}

	if err := e.store.ReplaceAllForPlan(planID, rows); err != nil {
		return nil, storageErr(err)
	}
	e.invalidate(ctx)
	return rows, nil
}

// CopyPlanEntitlements copies the source plan's entitlement set onto the
// target. With overwrite the target set becomes an exact copy of the
// source; in merge mode only features absent from the target are added and
// the newly created rows are returned.
func (e *Engine) CopyPlanEntitlements(ctx context.Context, sourcePlanID, targetPlanID string, overwrite bool) ([]models.PlanFeature, error) {
	if _, err := e.plans.GetPlan(ctx, sourcePlanID); err != nil {
		return nil, err
	}
	if _, err := e.plans.GetPlan(ctx, targetPlanID); err != nil {
		return nil, err
	}

	source, err := e.store.GetByPlanID(sourcePlanID)
	if err != nil {
		return nil, storageErr(err)
	}
	if len(source) == 0 {
		return nil, apperrors.Newf(apperrors.CodeNoFeaturesToCopy,
			"plan %s has no feature assignments to copy", sourcePlanID)
	}

	if overwrite {
		entries := make([]ReplaceEntry, 0, len(source))
		for _, pf := range source {
			entries = append(entries, ReplaceEntry{
				FeatureID: pf.FeatureID,
				IsEnabled: pf.IsEnabled,
				Value:     pf.Value,
			})
		}
		return e.ReplaceAllFeaturesForPlan(ctx, targetPlanID, entries)
	}

	target, err := e.store.GetByPlanID(targetPlanID)
	if err != nil {
		return nil, storageErr(err)
	}
	present := make(map[string]struct{}, len(target))
	for _, pf := range target {
		present[pf.FeatureID] = struct{}{}
	}

	rows := make([]models.PlanFeature, 0, len(source))
	for _, pf := range source {
		if _, ok := present[pf.FeatureID]; ok {
			continue
		}
		rows = append(rows, models.PlanFeature{
			ID:        uuid.NewString(),
			PlanID:    targetPlanID,
			FeatureID: pf.FeatureID,
			IsEnabled: pf.IsEnabled,
			Value:     pf.Value,
		})
	}
	if len(rows) == 0 {
		return rows, nil
	}
	if err := e.store.CreateMany(rows); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperrors.New(apperrors.CodeBulkDuplicateError,
				"one or more pairs were created concurrently")
		}
		return nil, storageErr(err)
	}
	e.invalidate(ctx)
	return rows, nil
}

// DeleteEntitlementsByPlan removes all entitlements of a plan, returning
// the number of rows removed.
func (e *Engine) DeleteEntitlementsByPlan(ctx context.Context, planID string) (int64, error) {
	if _, err := e.plans.GetPlan(ctx, planID); err != nil {
		return 0, err
	}
	count, err := e.store.DeleteByPlanID(planID)
	if err != nil {
		return 0, storageErr(err)
	}
	e.invalidate(ctx)
	return count, nil
}

// DeleteEntitlementsByFeature removes all entitlements referencing a
// feature, returning the number of rows removed.
func (e *Engine) DeleteEntitlementsByFeature(ctx context.Context, featureID string) (int64, error) {
	if _, err := e.features.GetFeature(ctx, featureID); err != nil {
		return 0, err
	}
	count, err := e.store.DeleteByFeatureID(featureID)
	if err != nil {
		return 0, storageErr(err)
	}
	e.invalidate(ctx)
	return count, nil
}

// GetPlanFeature retrieves one entitlement by ID.
func (e *Engine) GetPlanFeature(ctx context.Context, id string) (*models.PlanFeature, error) {
	_ = ctx
	return e.getPlanFeature(id)
}

// GetPlanFeatureByPair retrieves the entitlement for one plan/feature
// pair.
func (e *Engine) GetPlanFeatureByPair(ctx context.Context, planID, featureID string) (*models.PlanFeature, error) {
	_ = ctx
	pf, err := e.store.GetByPlanAndFeature(planID, featureID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.Newf(apperrors.CodePlanFeatureNotFound,
				"plan %s has no assignment for feature %s", planID, featureID)
		}
		return nil, storageErr(err)
	}
	return pf, nil
}

// SetPlanEntitlementsEnabled flips the enabled flag on every entitlement
// of a plan as one atomic batch and returns the plan's rows with the new
// flag. Rows already carrying the flag are left untouched.
func (e *Engine) SetPlanEntitlementsEnabled(ctx context.Context, planID string, enabled bool) ([]models.PlanFeature, error) {
	if _, err := e.plans.GetPlan(ctx, planID); err != nil {
		return nil, err
	}
	pfs, err := e.store.GetByPlanID(planID)
	if err != nil {
		return nil, storageErr(err)
	}

	changed := make([]models.PlanFeature, 0, len(pfs))
	for i := range pfs {
		if pfs[i].IsEnabled == enabled {
			continue
		}
		pfs[i].IsEnabled = enabled
		changed = append(changed, pfs[i])
	}
	if len(changed) == 0 {
		return pfs, nil
	}
	if err := e.store.UpdateMany(changed); err != nil {
		return nil, storageErr(err)
	}
	e.invalidate(ctx)
	return pfs, nil
}

func (e *Engine) getPlanFeature(id string) (*models.PlanFeature, error) {
	pf, err := e.store.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.Newf(apperrors.CodePlanFeatureNotFound, "plan feature %s not found", id)
		}
		return nil, storageErr(err)
	}
	return pf, nil
}

// lookupFeatures resolves a feature ID set in one batched query and
// reports the missing ones.
func (e *Engine) lookupFeatures(ctx context.Context, ids []string) (map[string]*models.Feature, []string) {
	featureMap := make(map[string]*models.Feature, len(ids))
	var problems []string
	features, err := e.features.FeaturesByIDs(ctx, ids)
	if err != nil {
		return featureMap, []string{err.Error()}
	}
	for i := range features {
		featureMap[features[i].ID] = &features[i]
	}
	for _, id := range ids {
		if _, ok := featureMap[id]; !ok {
			problems = append(problems, fmt.Sprintf("feature %s not found", id))
		}
	}
	return featureMap, problems
}

// existingPairs loads the stored (plan, feature) pairs for a plan ID set.
func (e *Engine) existingPairs(planIDs []string) (map[string]struct{}, error) {
	pairs := make(map[string]struct{})
	for _, planID := range planIDs {
		pfs, err := e.store.GetByPlanID(planID)
		if err != nil {
			return nil, storageErr(err)
		}
		for _, pf := range pfs {
			pairs[pf.PlanID+":"+pf.FeatureID] = struct{}{}
		}
	}
	return pairs, nil
}

// normalizeValue defaults an omitted value to the empty object and runs
// the structural checks: the value must be a JSON object, and when the
// feature declares required keys in its validation schema those keys must
// be present.
func normalizeValue(feature *models.Feature, value models.JSON) (models.JSON, error) {
	if value == nil {
		return models.EmptyObject(), nil
	}
	obj, ok := value.AsObject()
	if !ok {
		return nil, apperrors.New(apperrors.CodeInvalidValue, "value must be a JSON object")
	}
	if feature == nil || feature.IsBoolean {
		return value, nil
	}
	schema, ok := feature.ValidationSchema.AsObject()
	if !ok {
		return value, nil
	}
	required, _ := schema["required"].([]interface{})
	for _, raw := range required {
		key, _ := raw.(string)
		if key == "" {
			continue
		}
		if _, present := obj[key]; !present {
			return nil, apperrors.Newf(apperrors.CodeInvalidValue,
				"value is missing required key %q", key)
		}
	}
	return value, nil
}

func appendUnique(ids []string, id string) []string {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}

func (e *Engine) invalidate(ctx context.Context) {
	if e.cache == nil {
		return
	}
	// Cache invalidation is best-effort; a failed delete only shortens to
	// the TTL.
	_ = e.cache.DeleteByPattern(ctx, CacheKeyPattern)
}

func storageErr(err error) error {
	return apperrors.New(apperrors.CodeStorageFailure, err.Error())
}
