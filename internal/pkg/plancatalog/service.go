package plancatalog

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

// Service provides plan catalog operations: CRUD, lifecycle and
// duplication.
type Service struct {
	plans        repository.PlanRepository
	planFeatures repository.PlanFeatureRepository
	cache        Cache
}

// NewService creates a plan catalog service from injected repositories.
func NewService(plans repository.PlanRepository, planFeatures repository.PlanFeatureRepository, cache Cache) *Service {
	return &Service{plans: plans, planFeatures: planFeatures, cache: cache}
}

// GetPlan retrieves one plan by ID.
func (s *Service) GetPlan(ctx context.Context, id string) (*models.Plan, error) {
	_ = ctx
	plan, err := s.plans.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.Newf(apperrors.CodePlanNotFound, "plan %s not found", id)
		}
		return nil, storageErr(err)
	}
	return plan, nil
}

// GetPlanBySlug retrieves one plan by its unique slug.
func (s *Service) GetPlanBySlug(ctx context.Context, slug string) (*models.Plan, error) {
	_ = ctx
	plan, err := s.plans.GetBySlug(slug)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.Newf(apperrors.CodePlanNotFound, "plan with slug %q not found", slug)
		}
		return nil, storageErr(err)
	}
	return plan, nil
}

// AllPlans retrieves every plan ordered by sort position.
func (s *Service) AllPlans(ctx context.Context) ([]models.Plan, error) {
	_ = ctx
	plans, err := s.plans.GetAll()
	if err != nil {
		return nil, storageErr(err)
	}
	return plans, nil
}

// ListPlans retrieves plans matching the filter plus the total count.
func (s *Service) ListPlans(ctx context.Context, opts repository.ListOptions) ([]models.Plan, int64, error) {
	_ = ctx
	plans, total, err := s.plans.List(opts)
	if err != nil {
		return nil, 0, storageErr(err)
	}
	return plans, total, nil
}

// CreatePlan validates and inserts a new plan. Name and slug uniqueness is
// pre-checked and additionally enforced by the unique indexes, so a racing
// create still surfaces as the typed duplicate error.
func (s *Service) CreatePlan(ctx context.Context, in models.CreatePlanInput) (*models.Plan, error) {
	if err := in.Validate(); err != nil {
		return nil, apperrors.New(apperrors.CodeValidationError, err.Error())
	}
	if taken, err := s.plans.NameExists(in.Name, ""); err != nil {
		return nil, storageErr(err)
	} else if taken {
		return nil, apperrors.Newf(apperrors.CodePlanNameExists, "plan name %q already exists", in.Name)
	}
	if taken, err := s.plans.SlugExists(in.Slug, ""); err != nil {
		return nil, storageErr(err)
	} else if taken {
		return nil, apperrors.Newf(apperrors.CodePlanSlugExists, "plan slug %q already exists", in.Slug)
	}

	plan := &models.Plan{
		ID:              uuid.NewString(),
		Name:            in.Name,
		Slug:            in.Slug,
		Description:     in.Description,
		Price:           in.Price,
		Currency:        in.Currency,
		BillingInterval: in.BillingInterval,
		IsActive:        true,
		Metadata:        in.Metadata,
	}
	if plan.Currency == "" {
		plan.Currency = "USD"
	}
	if plan.Metadata == nil {
		plan.Metadata = models.EmptyObject()
	}
	if in.IsActive != nil {
		plan.IsActive = *in.IsActive
	}
	if in.SortOrder != nil {
		plan.SortOrder = *in.SortOrder
	}

	if err := s.plans.Create(plan); err != nil {
		return nil, s.mapDuplicate(err, plan.Name, plan.Slug, "")
	}
	s.invalidate(ctx)
	return plan, nil
}

// UpdatePlan merges the given fields into an existing plan.
func (s *Service) UpdatePlan(ctx context.Context, id string, in models.UpdatePlanInput) (*models.Plan, error) {
	if err := in.Validate(); err != nil {
		return nil, apperrors.New(apperrors.CodeValidationError, err.Error())
	}
	plan, err := s.GetPlan(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Name != nil && *in.Name != plan.Name {
		if taken, err := s.plans.NameExists(*in.Name, id); err != nil {
			return nil, storageErr(err)
		} else if taken {
			return nil, apperrors.Newf(apperrors.CodePlanNameExists, "plan name %q already exists", *in.Name)
		}
		plan.Name = *in.Name
	}
	if in.Slug != nil && *in.Slug != plan.Slug {
		if taken, err := s.plans.SlugExists(*in.Slug, id); err != nil {
			return nil, storageErr(err)
		} else if taken {
			return nil, apperrors.Newf(apperrors.CodePlanSlugExists, "plan slug %q already exists", *in.Slug)
		}
		plan.Slug = *in.Slug
	}
	if in.Description != nil {
		plan.Description = *in.Description
	}
	if in.Price != nil {
		plan.Price = *in.Price
	}
	if in.Currency != nil {
		plan.Currency = *in.Currency
	}
	if in.BillingInterval != nil {
		plan.BillingInterval = in.BillingInterval
	}
	if in.IsActive != nil {
		plan.IsActive = *in.IsActive
	}
	if in.SortOrder != nil {
		plan.SortOrder = *in.SortOrder
	}
	if in.Metadata != nil {
		plan.Metadata = in.Metadata
	}

	if err := s.plans.Update(plan); err != nil {
		return nil, s.mapDuplicate(err, plan.Name, plan.Slug, id)
	}
	s.invalidate(ctx)
	return plan, nil
}

// SetPlanActive toggles the active flag of a plan.
func (s *Service) SetPlanActive(ctx context.Context, id string, active bool) (*models.Plan, error) {
	plan, err := s.GetPlan(ctx, id)
	if err != nil {
		return nil, err
	}
	if plan.IsActive == active {
		return plan, nil
	}
	plan.IsActive = active
	if err := s.plans.Update(plan); err != nil {
		return nil, storageErr(err)
	}
	s.invalidate(ctx)
	return plan, nil
}

// DeletePlan hard-deletes a plan. A plan still carrying entitlements is
// only deleted when force is set, in which case the entitlement set is
// removed in the same transaction.
func (s *Service) DeletePlan(ctx context.Context, id string, force bool) error {
	if _, err := s.GetPlan(ctx, id); err != nil {
		return err
	}
	if force {
		if err := s.plans.DeleteWithEntitlements(id); err != nil {
			return storageErr(err)
		}
		s.invalidate(ctx)
		return nil
	}
	count, err := s.planFeatures.CountByPlanID(id)
	if err != nil {
		return storageErr(err)
	}
	if count > 0 {
		return apperrors.Newf(apperrors.CodePlanHasFeatures,
			"plan %s has %d feature assignments; deactivate it or force the delete", id, count)
	}
	// The transactional guard re-counts inside the delete, so an
	// entitlement assigned after the pre-check still blocks the delete.
	refs, err := s.plans.DeleteIfUnreferenced(id)
	if err != nil {
		return storageErr(err)
	}
	if refs > 0 {
		return apperrors.Newf(apperrors.CodePlanHasFeatures,
			"plan %s has %d feature assignments; deactivate it or force the delete", id, refs)
	}
	s.invalidate(ctx)
	return nil
}

// DuplicatePlan clones a plan together with its entire entitlement set
// under new identifiers. The clone starts inactive so it can be reviewed
// before being offered.
func (s *Service) DuplicatePlan(ctx context.Context, id, newName, newSlug string) (*models.Plan, error) {
	src, err := s.GetPlan(ctx, id)
	if err != nil {
		return nil, err
	}
	if newName == "" {
		newName = src.Name + " (Copy)"
	}
	if newSlug == "" {
		newSlug = src.Slug + "-copy"
	}
	if taken, err := s.plans.NameExists(newName, ""); err != nil {
		return nil, storageErr(err)
	} else if taken {
		return nil, apperrors.Newf(apperrors.CodePlanNameExists, "plan name %q already exists", newName)
	}
	if taken, err := s.plans.SlugExists(newSlug, ""); err != nil {
		return nil, storageErr(err)
	} else if taken {
		return nil, apperrors.Newf(apperrors.CodePlanSlugExists, "plan slug %q already exists", newSlug)
	}

	clone := &models.Plan{
		ID:              uuid.NewString(),
		Name:            newName,
		Slug:            newSlug,
		Description:     src.Description,
		Price:           src.Price,
		Currency:        src.Currency,
		BillingInterval: src.BillingInterval,
		IsActive:        false,
		SortOrder:       src.SortOrder,
		Metadata:        src.Metadata,
	}

	pfs, err := s.planFeatures.GetByPlanID(id)
	if err != nil {
		return nil, storageErr(err)
	}
	cloned := make([]models.PlanFeature, 0, len(pfs))
	for _, pf := range pfs {
		cloned = append(cloned, models.PlanFeature{
			ID:        uuid.NewString(),
			PlanID:    clone.ID,
			FeatureID: pf.FeatureID,
			IsEnabled: pf.IsEnabled,
			Value:     pf.Value,
		})
	}

	if err := s.plans.CreateWithEntitlements(clone, cloned); err != nil {
		return nil, s.mapDuplicate(err, newName, newSlug, "")
	}
	s.invalidate(ctx)
	return clone, nil
}

// ReorderPlans applies new sort positions to a set of plans atomically.
func (s *Service) ReorderPlans(ctx context.Context, orders []repository.PlanOrder) error {
	for _, o := range orders {
		if o.SortOrder < 0 {
			return apperrors.Newf(apperrors.CodeValidationError, "sort_order for plan %s must be >= 0", o.PlanID)
		}
		if _, err := s.GetPlan(ctx, o.PlanID); err != nil {
			return err
		}
	}
	if err := s.plans.UpdateSortOrders(orders); err != nil {
		return storageErr(err)
	}
	s.invalidate(ctx)
	return nil
}

// mapDuplicate converts a storage duplicate-key error into the typed
// name/slug conflict, checking which unique index lost the race.
func (s *Service) mapDuplicate(err error, name, slug, exceptID string) error {
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		return storageErr(err)
	}
	if taken, checkErr := s.plans.NameExists(name, exceptID); checkErr == nil && taken {
		return apperrors.Newf(apperrors.CodePlanNameExists, "plan name %q already exists", name)
	}
	return apperrors.Newf(apperrors.CodePlanSlugExists, "plan slug %q already exists", slug)
}

// invalidate drops the cached entitlement read models. Plan identity and
// ordering are baked into the matrix, summaries and analytics, so every
// catalog mutation flushes the namespace. Best-effort, same as the engine.
func (s *Service) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	_ = s.cache.DeleteByPattern(ctx, matrix.CacheKeyPattern)
}

func storageErr(err error) error {
	return apperrors.New(apperrors.CodeStorageFailure, err.Error())
}
