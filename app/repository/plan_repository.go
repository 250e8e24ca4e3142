package repository

import (
	"github.com/planmatrix/planmatrix/app/models"
	"gorm.io/gorm"
)

// planRepository implements the PlanRepository interface.
type planRepository struct {
	db *gorm.DB
}

// NewPlanRepository creates a new plan repository instance.
func NewPlanRepository(db *gorm.DB) PlanRepository {
	return &planRepository{db: db}
}

// Create inserts a new plan.
func (r *planRepository) Create(plan *models.Plan) error {
	return r.db.Create(plan).Error
}

// CreateWithEntitlements inserts a plan together with its entitlement set
// as one atomic unit. Used when duplicating a plan.
func (r *planRepository) CreateWithEntitlements(plan *models.Plan, entitlements []models.PlanFeature) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(plan).Error; err != nil {
			return err
		}
		if len(entitlements) == 0 {
			return nil
		}
		return tx.Create(&entitlements).Error
	})
}

// GetByID retrieves a plan by its ID.
func (r *planRepository) GetByID(id string) (*models.Plan, error) {
	var plan models.Plan
	err := r.db.Where("id = ?", id).First(&plan).Error
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

// GetBySlug retrieves a plan by its unique slug.
func (r *planRepository) GetBySlug(slug string) (*models.Plan, error) {
	var plan models.Plan
	err := r.db.Where("slug = ?", slug).First(&plan).Error
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

// GetAll retrieves all plans ordered by their sort position.
func (r *planRepository) GetAll() ([]models.Plan, error) {
	var plans []models.Plan
	err := r.db.Order("sort_order ASC, name ASC").Find(&plans).Error
	return plans, err
}

// List retrieves plans matching the given filter with a total count.
func (r *planRepository) List(opts ListOptions) ([]models.Plan, int64, error) {
	q := r.db.Model(&models.Plan{})
	if opts.Search != "" {
		like := "%" + opts.Search + "%"
		q = q.Where("name LIKE ? OR slug LIKE ? OR description LIKE ?", like, like, like)
	}
	if opts.IsActive != nil {
		q = q.Where("is_active = ?", *opts.IsActive)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	q = q.Order(orderClause(opts, map[string]string{
		"name":       "name",
		"slug":       "slug",
		"price":      "price",
		"sort_order": "sort_order",
		"created_at": "created_at",
	}, "sort_order ASC, name ASC"))
	if opts.Limit > 0 {
		q = q.Offset(opts.Offset).Limit(opts.Limit)
	}

	var plans []models.Plan
	err := q.Find(&plans).Error
	return plans, total, err
}

// Update saves all fields of an existing plan.
func (r *planRepository) Update(plan *models.Plan) error {
	return r.db.Save(plan).Error
}

// Delete hard-deletes a plan by its ID.
func (r *planRepository) Delete(id string) error {
	return r.db.Where("id = ?", id).Delete(&models.Plan{}).Error
}

// DeleteIfUnreferenced removes a plan only when no entitlement references
// it, counting the references and deleting in one transaction. It returns
// the reference count observed; 0 means the plan was deleted.
func (r *planRepository) DeleteIfUnreferenced(id string) (int64, error) {
	var refs int64
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.PlanFeature{}).Where("plan_id = ?", id).Count(&refs).Error; err != nil {
			return err
		}
		if refs > 0 {
			return nil
		}
		return tx.Where("id = ?", id).Delete(&models.Plan{}).Error
	})
	return refs, err
}

// DeleteWithEntitlements removes a plan and its entire entitlement set as
// one atomic unit.
func (r *planRepository) DeleteWithEntitlements(id string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("plan_id = ?", id).Delete(&models.PlanFeature{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&models.Plan{}).Error
	})
}

// Count returns the total number of plans.
func (r *planRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.Plan{}).Count(&count).Error
	return count, err
}

// NameExists checks whether a plan name is taken, optionally excluding one
// plan by ID.
func (r *planRepository) NameExists(name, exceptID string) (bool, error) {
	var count int64
	q := r.db.Model(&models.Plan{}).Where("name = ?", name)
	if exceptID != "" {
		q = q.Where("id != ?", exceptID)
	}
	err := q.Count(&count).Error
	return count > 0, err
}

// SlugExists checks whether a plan slug is taken, optionally excluding one
// plan by ID.
func (r *planRepository) SlugExists(slug, exceptID string) (bool, error) {
	var count int64
	q := r.db.Model(&models.Plan{}).Where("slug = ?", slug)
	if exceptID != "" {
		q = q.Where("id != ?", exceptID)
	}
	err := q.Count(&count).Error
	return count > 0, err
}

// UpdateSortOrders applies a batch of sort positions atomically.
func (r *planRepository) UpdateSortOrders(orders []PlanOrder) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		for _, o := range orders {
			if err := tx.Model(&models.Plan{}).Where("id = ?", o.PlanID).Update("sort_order", o.SortOrder).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// orderClause builds an ORDER BY from the list options, restricted to a
// whitelist of sortable columns.
func orderClause(opts ListOptions, columns map[string]string, fallback string) string {
	col, ok := columns[opts.SortBy]
	if !ok {
		return fallback
	}
	if opts.SortDesc {
		return col + " DESC"
	}
	return col + " ASC"
}
