package repository

import (
	"github.com/planmatrix/planmatrix/app/models"
	"gorm.io/gorm"
)

// ListOptions filters and pages catalog listings.
type ListOptions struct {
	Search   string
	IsActive *bool
	Offset   int
	Limit    int
	SortBy   string
	SortDesc bool
}

// MatrixFilter narrows the entitlement matrix join.
type MatrixFilter struct {
	PlanIDs    []string
	FeatureIDs []string
	IsEnabled  *bool
}

// MatrixEntry is one row of the matrix join across plan_features, plans
// and features, ordered by plan name then feature display name.
type MatrixEntry struct {
	PlanFeatureID      string      `json:"plan_feature_id"`
	PlanID             string      `json:"plan_id"`
	PlanName           string      `json:"plan_name"`
	FeatureID          string      `json:"feature_id"`
	FeatureKeyName     string      `json:"feature_key_name"`
	FeatureDisplayName string      `json:"feature_display_name"`
	FeatureCategory    *string     `json:"feature_category"`
	IsEnabled          bool        `json:"is_enabled"`
	Value              models.JSON `json:"value"`
}

// PlanOrder assigns a new sort position to one plan.
type PlanOrder struct {
	PlanID    string `json:"plan_id"`
	SortOrder int    `json:"sort_order"`
}

// PlanRepository defines the interface for plan-related database operations.
type PlanRepository interface {
	Create(plan *models.Plan) error
	CreateWithEntitlements(plan *models.Plan, entitlements []models.PlanFeature) error
	GetByID(id string) (*models.Plan, error)
	GetBySlug(slug string) (*models.Plan, error)
	GetAll() ([]models.Plan, error)
	List(opts ListOptions) ([]models.Plan, int64, error)
	Update(plan *models.Plan) error
	Delete(id string) error
	DeleteIfUnreferenced(id string) (int64, error)
	DeleteWithEntitlements(id string) error
	Count() (int64, error)
	NameExists(name, exceptID string) (bool, error)
	SlugExists(slug, exceptID string) (bool, error)
	UpdateSortOrders(orders []PlanOrder) error
}

// FeatureRepository defines the interface for feature-related database
// operations.
type FeatureRepository interface {
	Create(feature *models.Feature) error
	GetByID(id string) (*models.Feature, error)
	GetByKeyName(keyName string) (*models.Feature, error)
	GetByIDs(ids []string) ([]models.Feature, error)
	GetAll() ([]models.Feature, error)
	List(opts ListOptions) ([]models.Feature, int64, error)
	Update(feature *models.Feature) error
	Delete(id string) error
	DeleteIfUnreferenced(id string) (int64, error)
	DeleteWithEntitlements(id string) error
	Count() (int64, error)
	KeyNameExists(keyName, exceptID string) (bool, error)
	Categories() ([]string, error)
}

// PlanFeatureRepository defines the interface for entitlement junction
// operations. Multi-row writes are atomic: they run inside a single
// storage transaction.
type PlanFeatureRepository interface {
	GetByID(id string) (*models.PlanFeature, error)
	GetByPlanAndFeature(planID, featureID string) (*models.PlanFeature, error)
	GetByPlanID(planID string) ([]models.PlanFeature, error)
	GetByFeatureID(featureID string) ([]models.PlanFeature, error)
	GetEnabledByPlanID(planID string) ([]models.PlanFeature, error)
	GetAll() ([]models.PlanFeature, error)
	Create(pf *models.PlanFeature) error
	CreateMany(pfs []models.PlanFeature) error
	Update(pf *models.PlanFeature) error
	UpdateMany(pfs []models.PlanFeature) error
	ReplaceAllForPlan(planID string, pfs []models.PlanFeature) error
	Delete(id string) error
	DeleteByPlanID(planID string) (int64, error)
	DeleteByFeatureID(featureID string) (int64, error)
	CountByPlanID(planID string) (int64, error)
	CountByFeatureID(featureID string) (int64, error)
	GetMatrix(filter MatrixFilter) ([]MatrixEntry, error)
}

// Repositories bundles all repository instances for injection.
type Repositories struct {
	Plan        PlanRepository
	Feature     FeatureRepository
	PlanFeature PlanFeatureRepository
}

// NewRepositories creates all repositories against one DB handle.
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Plan:        NewPlanRepository(db),
		Feature:     NewFeatureRepository(db),
		PlanFeature: NewPlanFeatureRepository(db),
	}
}
