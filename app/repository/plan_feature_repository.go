package repository

import (
	"github.com/planmatrix/planmatrix/app/models"
	"gorm.io/gorm"
)

// planFeatureRepository implements the PlanFeatureRepository interface.
type planFeatureRepository struct {
	db *gorm.DB
}

// NewPlanFeatureRepository creates a new entitlement repository instance.
func NewPlanFeatureRepository(db *gorm.DB) PlanFeatureRepository {
	return &planFeatureRepository{db: db}
}

// GetByID retrieves an entitlement by its ID.
func (r *planFeatureRepository) GetByID(id string) (*models.PlanFeature, error) {
	var pf models.PlanFeature
	err := r.db.Where("id = ?", id).First(&pf).Error
	if err != nil {
		return nil, err
	}
	return &pf, nil
}

// GetByPlanAndFeature retrieves the entitlement for one plan/feature pair.
func (r *planFeatureRepository) GetByPlanAndFeature(planID, featureID string) (*models.PlanFeature, error) {
	var pf models.PlanFeature
	err := r.db.Where("plan_id = ? AND feature_id = ?", planID, featureID).First(&pf).Error
	if err != nil {
		return nil, err
	}
	return &pf, nil
}

// GetByPlanID retrieves all entitlements of a plan.
func (r *planFeatureRepository) GetByPlanID(planID string) ([]models.PlanFeature, error) {
	var pfs []models.PlanFeature
	err := r.db.Where("plan_id = ?", planID).Order("created_at ASC").Find(&pfs).Error
	return pfs, err
}

// GetByFeatureID retrieves all entitlements referencing a feature.
func (r *planFeatureRepository) GetByFeatureID(featureID string) ([]models.PlanFeature, error) {
	var pfs []models.PlanFeature
	err := r.db.Where("feature_id = ?", featureID).Order("created_at ASC").Find(&pfs).Error
	return pfs, err
}

// GetEnabledByPlanID retrieves the enabled entitlements of a plan.
func (r *planFeatureRepository) GetEnabledByPlanID(planID string) ([]models.PlanFeature, error) {
	var pfs []models.PlanFeature
	err := r.db.Where("plan_id = ? AND is_enabled = ?", planID, true).Order("created_at ASC").Find(&pfs).Error
	return pfs, err
}

// GetAll retrieves every entitlement row.
func (r *planFeatureRepository) GetAll() ([]models.PlanFeature, error) {
	var pfs []models.PlanFeature
	err := r.db.Find(&pfs).Error
	return pfs, err
}

// Create inserts one entitlement. The uk_plan_feature unique index is the
// authoritative duplicate check; violations surface as
// gorm.ErrDuplicatedKey.
func (r *planFeatureRepository) Create(pf *models.PlanFeature) error {
	return r.db.Create(pf).Error
}

// CreateMany inserts a batch of entitlements atomically.
func (r *planFeatureRepository) CreateMany(pfs []models.PlanFeature) error {
	if len(pfs) == 0 {
		return nil
	}
	return r.db.Transaction(func(tx *gorm.DB) error {
		return tx.Create(&pfs).Error
	})
}

// Update saves all fields of an existing entitlement.
func (r *planFeatureRepository) Update(pf *models.PlanFeature) error {
	return r.db.Save(pf).Error
}

// UpdateMany saves a batch of entitlements atomically.
func (r *planFeatureRepository) UpdateMany(pfs []models.PlanFeature) error {
	if len(pfs) == 0 {
		return nil
	}
	return r.db.Transaction(func(tx *gorm.DB) error {
		for i := range pfs {
			if err := tx.Save(&pfs[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// ReplaceAllForPlan deletes the plan's entire entitlement set and inserts
// the given rows as one atomic unit. An empty slice yields an empty set.
func (r *planFeatureRepository) ReplaceAllForPlan(planID string, pfs []models.PlanFeature) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("plan_id = ?", planID).Delete(&models.PlanFeature{}).Error; err != nil {
			return err
		}
		if len(pfs) == 0 {
			return nil
		}
		return tx.Create(&pfs).Error
	})
}

// Delete removes one entitlement by its ID.
func (r *planFeatureRepository) Delete(id string) error {
	return r.db.Where("id = ?", id).Delete(&models.PlanFeature{}).Error
}

// DeleteByPlanID removes all entitlements of a plan, returning the count.
func (r *planFeatureRepository) DeleteByPlanID(planID string) (int64, error) {
	res := r.db.Where("plan_id = ?", planID).Delete(&models.PlanFeature{})
	return res.RowsAffected, res.Error
}

// DeleteByFeatureID removes all entitlements referencing a feature,
// returning the count.
func (r *planFeatureRepository) DeleteByFeatureID(featureID string) (int64, error) {
	res := r.db.Where("feature_id = ?", featureID).Delete(&models.PlanFeature{})
	return res.RowsAffected, res.Error
}

// CountByPlanID returns the number of entitlements of a plan.
func (r *planFeatureRepository) CountByPlanID(planID string) (int64, error) {
	var count int64
	err := r.db.Model(&models.PlanFeature{}).Where("plan_id = ?", planID).Count(&count).Error
	return count, err
}

// CountByFeatureID returns the number of entitlements referencing a
// feature.
func (r *planFeatureRepository) CountByFeatureID(featureID string) (int64, error) {
	var count int64
	err := r.db.Model(&models.PlanFeature{}).Where("feature_id = ?", featureID).Count(&count).Error
	return count, err
}

// GetMatrix joins entitlements with plan and feature identity, ordered by
// plan name then feature display name.
func (r *planFeatureRepository) GetMatrix(filter MatrixFilter) ([]MatrixEntry, error) {
	q := r.db.Model(&models.PlanFeature{}).
		Select(`plan_features.id AS plan_feature_id,
			plan_features.plan_id,
			plans.name AS plan_name,
			plan_features.feature_id,
			features.key_name AS feature_key_name,
			features.display_name AS feature_display_name,
			features.category AS feature_category,
			plan_features.is_enabled,
			plan_features.value`).
		Joins("JOIN plans ON plans.id = plan_features.plan_id").
		Joins("JOIN features ON features.id = plan_features.feature_id")

	if len(filter.PlanIDs) > 0 {
		q = q.Where("plan_features.plan_id IN ?", filter.PlanIDs)
	}
	if len(filter.FeatureIDs) > 0 {
		q = q.Where("plan_features.feature_id IN ?", filter.FeatureIDs)
	}
	if filter.IsEnabled != nil {
		q = q.Where("plan_features.is_enabled = ?", *filter.IsEnabled)
	}

	var entries []MatrixEntry
	err := q.Order("plans.name ASC, features.display_name ASC").Scan(&entries).Error
	return entries, err
}
