package featurecatalog

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/planmatrix/planmatrix/app/models"
	"github.com/planmatrix/planmatrix/app/repository"
	"github.com/planmatrix/planmatrix/internal/pkg/apperrors"
	"github.com/planmatrix/planmatrix/internal/pkg/matrix"
)

// Cache invalidates derived read models after catalog mutations. A nil
// cache disables invalidation.
type Cache interface {
	DeleteByPattern(ctx context.Context, pattern string) error
}

// Service provides feature catalog operations: CRUD, lifecycle, category
// grouping and usage lookup.
type Service struct {
	features     repository.FeatureRepository
	planFeatures repository.PlanFeatureRepository
	plans        repository.PlanRepository
	cache        Cache
}

// NewService creates a feature catalog service from injected repositories.
func NewService(features repository.FeatureRepository, planFeatures repository.PlanFeatureRepository, plans repository.PlanRepository, cache Cache) *Service {
	return &Service{features: features, planFeatures: planFeatures, plans: plans, cache: cache}
}

// GetFeature retrieves one feature by ID.
func (s *Service) GetFeature(ctx context.Context, id string) (*models.Feature, error) {
	_ = ctx
	feature, err := s.features.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.Newf(apperrors.CodeFeatureNotFound, "feature %s not found", id)
		}
		return nil, storageErr(err)
	}
	return feature, nil
}

// GetFeatureByKeyName retrieves one feature by its unique key name.
func (s *Service) GetFeatureByKeyName(ctx context.Context, keyName string) (*models.Feature, error) {
	_ = ctx
	feature, err := s.features.GetByKeyName(keyName)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.Newf(apperrors.CodeFeatureNotFound, "feature with key %q not found", keyName)
		}
		return nil, storageErr(err)
	}
	return feature, nil
}

// FeaturesByIDs retrieves all features matching the ID set in one query.
func (s *Service) FeaturesByIDs(ctx context.Context, ids []string) ([]models.Feature, error) {
	_ = ctx
	features, err := s.features.GetByIDs(ids)
	if err != nil {
		return nil, storageErr(err)
	}
	return features, nil
}

// AllFeatures retrieves every feature, active and inactive.
func (s *Service) AllFeatures(ctx context.Context) ([]models.Feature, error) {
	_ = ctx
	features, err := s.features.GetAll()
	if err != nil {
		return nil, storageErr(err)
	}
	return features, nil
}

// ListFeatures retrieves features matching the filter plus the total count.
func (s *Service) ListFeatures(ctx context.Context, opts repository.ListOptions) ([]models.Feature, int64, error) {
	_ = ctx
	features, total, err := s.features.List(opts)
	if err != nil {
		return nil, 0, storageErr(err)
	}
	return features, total, nil
}

// ListCategories returns the distinct categories currently in use.
func (s *Service) ListCategories(ctx context.Context) ([]string, error) {
	_ = ctx
	categories, err := s.features.Categories()
	if err != nil {
		return nil, storageErr(err)
	}
	return categories, nil
}

// CreateFeature validates and inserts a new feature. Key name uniqueness
// is pre-checked and enforced by the unique index, so a racing create
// still surfaces as DUPLICATE_KEY_NAME.
func (s *Service) CreateFeature(ctx context.Context, in models.CreateFeatureInput) (*models.Feature, error) {
	if err := in.Validate(); err != nil {
		return nil, apperrors.New(apperrors.CodeValidationError, err.Error())
	}
	if in.DefaultValue != nil && !in.DefaultValue.IsObject() {
		return nil, apperrors.New(apperrors.CodeInvalidValue, "default_value must be a JSON object")
	}
	if taken, err := s.features.KeyNameExists(in.KeyName, ""); err != nil {
		return nil, storageErr(err)
	} else if taken {
		return nil, apperrors.Newf(apperrors.CodeDuplicateKeyName, "feature key %q already exists", in.KeyName)
	}

	feature := &models.Feature{
		ID:               uuid.NewString(),
		KeyName:          in.KeyName,
		DisplayName:      in.DisplayName,
		Description:      in.Description,
		Category:         in.Category,
		IsBoolean:        true,
		DefaultValue:     in.DefaultValue,
		ValidationSchema: in.ValidationSchema,
		IsActive:         true,
	}
	if feature.DefaultValue == nil {
		feature.DefaultValue = models.EmptyObject()
	}
	if in.IsBoolean != nil {
		feature.IsBoolean = *in.IsBoolean
	}
	if in.IsActive != nil {
		feature.IsActive = *in.IsActive
	}

	if err := s.features.Create(feature); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperrors.Newf(apperrors.CodeDuplicateKeyName, "feature key %q already exists", in.KeyName)
		}
		return nil, storageErr(err)
	}
	s.invalidate(ctx)
	return feature, nil
}

// UpdateFeature merges the given fields into an existing feature.
func (s *Service) UpdateFeature(ctx context.Context, id string, in models.UpdateFeatureInput) (*models.Feature, error) {
	if err := in.Validate(); err != nil {
		return nil, apperrors.New(apperrors.CodeValidationError, err.Error())
	}
	feature, err := s.GetFeature(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.DisplayName != nil {
		feature.DisplayName = *in.DisplayName
	}
	if in.Description != nil {
		feature.Description = *in.Description
	}
	if in.Category != nil {
		feature.Category = in.Category
	}
	if in.IsBoolean != nil {
		feature.IsBoolean = *in.IsBoolean
	}
	if in.DefaultValue != nil {
		if !in.DefaultValue.IsObject() {
			return nil, apperrors.New(apperrors.CodeInvalidValue, "default_value must be a JSON object")
		}
		feature.DefaultValue = in.DefaultValue
	}
	if in.ValidationSchema != nil {
		feature.ValidationSchema = in.ValidationSchema
	}
	if in.IsActive != nil {
		feature.IsActive = *in.IsActive
	}

	if err := s.features.Update(feature); err != nil {
		return nil, storageErr(err)
	}
	s.invalidate(ctx)
	return feature, nil
}

// SetFeatureActive toggles the active flag of a feature. Deactivation is
// the soft-delete path for features still referenced by entitlements.
func (s *Service) SetFeatureActive(ctx context.Context, id string, active bool) (*models.Feature, error) {
	feature, err := s.GetFeature(ctx, id)
	if err != nil {
		return nil, err
	}
	if feature.IsActive == active {
		return feature, nil
	}
	feature.IsActive = active
	if err := s.features.Update(feature); err != nil {
		return nil, storageErr(err)
	}
	s.invalidate(ctx)
	return feature, nil
}

// DeleteFeature hard-deletes a feature. A feature still referenced by
// entitlements is rejected with FEATURE_IN_USE unless force is set, in
// which case the referencing entitlements are removed in the same
// transaction.
func (s *Service) DeleteFeature(ctx context.Context, id string, force bool) error {
	if _, err := s.GetFeature(ctx, id); err != nil {
		return err
	}
	if force {
		if err := s.features.DeleteWithEntitlements(id); err != nil {
			return storageErr(err)
		}
		s.invalidate(ctx)
		return nil
	}
	count, err := s.planFeatures.CountByFeatureID(id)
	if err != nil {
		return storageErr(err)
	}
	if count > 0 {
		return apperrors.Newf(apperrors.CodeFeatureInUse,
			"feature %s is assigned to %d plans; deactivate it or force the delete", id, count)
	}
	// The transactional guard re-counts inside the delete, so an
	// entitlement assigned after the pre-check still blocks the delete.
	refs, err := s.features.DeleteIfUnreferenced(id)
	if err != nil {
		return storageErr(err)
	}
	if refs > 0 {
		return apperrors.Newf(apperrors.CodeFeatureInUse,
			"feature %s is assigned to %d plans; deactivate it or force the delete", id, refs)
	}
	s.invalidate(ctx)
	return nil
}

// GetFeatureUsage reports which plans carry a feature and how.
func (s *Service) GetFeatureUsage(ctx context.Context, id string) (*models.FeatureUsage, error) {
	feature, err := s.GetFeature(ctx, id)
	if err != nil {
		return nil, err
	}
	pfs, err := s.planFeatures.GetByFeatureID(id)
	if err != nil {
		return nil, storageErr(err)
	}

	usage := &models.FeatureUsage{
		FeatureID:        feature.ID,
		KeyName:          feature.KeyName,
		EntitlementCount: len(pfs),
		Plans:            make([]models.PlanUsageInfo, 0, len(pfs)),
	}
	if len(pfs) == 0 {
		return usage, nil
	}

	plans, err := s.plans.GetAll()
	if err != nil {
		return nil, storageErr(err)
	}
	names := make(map[string]string, len(plans))
	for _, p := range plans {
		names[p.ID] = p.Name
	}

	for _, pf := range pfs {
		if pf.IsEnabled {
			usage.EnabledCount++
		}
		usage.Plans = append(usage.Plans, models.PlanUsageInfo{
			PlanID:    pf.PlanID,
			PlanName:  names[pf.PlanID],
			IsEnabled: pf.IsEnabled,
		})
	}
	return usage, nil
}

// invalidate drops the cached entitlement read models. Feature identity is
// baked into the matrix, summaries and analytics, so every catalog
// mutation flushes the namespace. Best-effort, same as the engine.
func (s *Service) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	_ = s.cache.DeleteByPattern(ctx, matrix.CacheKeyPattern)
}

func storageErr(err error) error {
	return apperrors.New(apperrors.CodeStorageFailure, err.Error())
}
