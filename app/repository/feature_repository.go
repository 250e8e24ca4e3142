package repository

import (
	"github.com/planmatrix/planmatrix/app/models"
	"gorm.io/gorm"
)

// featureRepository implements the FeatureRepository interface.
type featureRepository struct {
	db *gorm.DB
}

// NewFeatureRepository creates a new feature repository instance.
func NewFeatureRepository(db *gorm.DB) FeatureRepository {
	return &featureRepository{db: db}
}

// Create inserts a new feature.
func (r *featureRepository) Create(feature *models.Feature) error {
	return r.db.Create(feature).Error
}

// GetByID retrieves a feature by its ID.
func (r *featureRepository) GetByID(id string) (*models.Feature, error) {
	var feature models.Feature
	err := r.db.Where("id = ?", id).First(&feature).Error
	if err != nil {
		return nil, err
	}
	return &feature, nil
}

// GetByKeyName retrieves a feature by its unique key name.
func (r *featureRepository) GetByKeyName(keyName string) (*models.Feature, error) {
	var feature models.Feature
	err := r.db.Where("key_name = ?", keyName).First(&feature).Error
	if err != nil {
		return nil, err
	}
	return &feature, nil
}

// GetByIDs retrieves all features matching the given ID set in one query.
func (r *featureRepository) GetByIDs(ids []string) ([]models.Feature, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var features []models.Feature
	err := r.db.Where("id IN ?", ids).Find(&features).Error
	return features, err
}

// GetAll retrieves all features ordered by display name.
func (r *featureRepository) GetAll() ([]models.Feature, error) {
	var features []models.Feature
	err := r.db.Order("display_name ASC").Find(&features).Error
	return features, err
}

// List retrieves features matching the given filter with a total count.
func (r *featureRepository) List(opts ListOptions) ([]models.Feature, int64, error) {
	q := r.db.Model(&models.Feature{})
	if opts.Search != "" {
		like := "%" + opts.Search + "%"
		q = q.Where("key_name LIKE ? OR display_name LIKE ? OR description LIKE ? OR category LIKE ?", like, like, like, like)
	}
	if opts.IsActive != nil {
		q = q.Where("is_active = ?", *opts.IsActive)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	q = q.Order(orderClause(opts, map[string]string{
		"key_name":     "key_name",
		"display_name": "display_name",
		"category":     "category",
		"created_at":   "created_at",
	}, "display_name ASC"))
	if opts.Limit > 0 {
		q = q.Offset(opts.Offset).Limit(opts.Limit)
	}

	var features []models.Feature
	err := q.Find(&features).Error
	return features, total, err
}

// Update saves all fields of an existing feature.
func (r *featureRepository) Update(feature *models.Feature) error {
	return r.db.Save(feature).Error
}

// Delete hard-deletes a feature by its ID.
func (r *featureRepository) Delete(id string) error {
	return r.db.Where("id = ?", id).Delete(&models.Feature{}).Error
}

// DeleteIfUnreferenced removes a feature only when no entitlement
// references it, counting the references and deleting in one transaction.
// It returns the reference count observed; 0 means the feature was
// deleted.
func (r *featureRepository) DeleteIfUnreferenced(id string) (int64, error) {
	var refs int64
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.PlanFeature{}).Where("feature_id = ?", id).Count(&refs).Error; err != nil {
			return err
		}
		if refs > 0 {
			return nil
		}
		return tx.Where("id = ?", id).Delete(&models.Feature{}).Error
	})
	return refs, err
}

// DeleteWithEntitlements removes a feature and every entitlement
// referencing it as one atomic unit.
func (r *featureRepository) DeleteWithEntitlements(id string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("feature_id = ?", id).Delete(&models.PlanFeature{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&models.Feature{}).Error
	})
}

// Count returns the total number of features.
func (r *featureRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.Feature{}).Count(&count).Error
	return count, err
}

// KeyNameExists checks whether a key name is taken, optionally excluding
// one feature by ID.
func (r *featureRepository) KeyNameExists(keyName, exceptID string) (bool, error) {
	var count int64
	q := r.db.Model(&models.Feature{}).Where("key_name = ?", keyName)
	if exceptID != "" {
		q = q.Where("id != ?", exceptID)
	}
	err := q.Count(&count).Error
	return count > 0, err
}

// Categories returns the distinct non-empty categories in use.
func (r *featureRepository) Categories() ([]string, error) {
	var categories []string
	err := r.db.Model(&models.Feature{}).
		Where("category IS NOT NULL AND category != ''").
		Distinct("category").
		Order("category ASC").
		Pluck("category", &categories).Error
	return categories, err
}
