package matrix

import (
	"context"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/planmatrix/planmatrix/app/models"
	"github.com/planmatrix/planmatrix/app/repository"
	"github.com/planmatrix/planmatrix/internal/pkg/apperrors"
)

// memStore is an in-memory PlanFeatureRepository with the same contract
// as the GORM implementation: pair uniqueness surfaces as
// gorm.ErrDuplicatedKey and batch writes are all-or-nothing.
type memStore struct {
	plans    map[string]models.Plan
	features map[string]models.Feature
	rows     []models.PlanFeature
}

func newMemStore() *memStore {
	return &memStore{
		plans:    map[string]models.Plan{},
		features: map[string]models.Feature{},
	}
}

func (s *memStore) addPlan(p models.Plan) {
	s.plans[p.ID] = p
}

func (s *memStore) addFeature(f models.Feature) {
	s.features[f.ID] = f
}

func (s *memStore) hasPair(planID, featureID string) bool {
	for _, pf := range s.rows {
		if pf.PlanID == planID && pf.FeatureID == featureID {
			return true
		}
	}
	return false
}

func (s *memStore) GetByID(id string) (*models.PlanFeature, error) {
	for i := range s.rows {
		if s.rows[i].ID == id {
			pf := s.rows[i]
			return &pf, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *memStore) GetByPlanAndFeature(planID, featureID string) (*models.PlanFeature, error) {
	for i := range s.rows {
		if s.rows[i].PlanID == planID && s.rows[i].FeatureID == featureID {
			pf := s.rows[i]
			return &pf, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *memStore) GetByPlanID(planID string) ([]models.PlanFeature, error) {
	var out []models.PlanFeature
	for _, pf := range s.rows {
		if pf.PlanID == planID {
			out = append(out, pf)
		}
	}
	return out, nil
}

func (s *memStore) GetByFeatureID(featureID string) ([]models.PlanFeature, error) {
	var out []models.PlanFeature
	for _, pf := range s.rows {
		if pf.FeatureID == featureID {
			out = append(out, pf)
		}
	}
	return out, nil
}

func (s *memStore) GetEnabledByPlanID(planID string) ([]models.PlanFeature, error) {
	var out []models.PlanFeature
	for _, pf := range s.rows {
		if pf.PlanID == planID && pf.IsEnabled {
			out = append(out, pf)
		}
	}
	return out, nil
}

func (s *memStore) GetAll() ([]models.PlanFeature, error) {
	return append([]models.PlanFeature(nil), s.rows...), nil
}

func (s *memStore) Create(pf *models.PlanFeature) error {
	if s.hasPair(pf.PlanID, pf.FeatureID) {
		return gorm.ErrDuplicatedKey
	}
	s.rows = append(s.rows, *pf)
	return nil
}

func (s *memStore) CreateMany(pfs []models.PlanFeature) error {
	seen := map[string]struct{}{}
	for _, pf := range pfs {
		key := pf.PlanID + ":" + pf.FeatureID
		if _, dup := seen[key]; dup {
			return gorm.ErrDuplicatedKey
		}
		seen[key] = struct{}{}
		if s.hasPair(pf.PlanID, pf.FeatureID) {
			return gorm.ErrDuplicatedKey
		}
	}
	s.rows = append(s.rows, pfs...)
	return nil
}

func (s *memStore) Update(pf *models.PlanFeature) error {
	for i := range s.rows {
		if s.rows[i].ID == pf.ID {
			s.rows[i] = *pf
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (s *memStore) UpdateMany(pfs []models.PlanFeature) error {
	for i := range pfs {
		if _, err := s.GetByID(pfs[i].ID); err != nil {
			return err
		}
	}
	for i := range pfs {
		if err := s.Update(&pfs[i]); err != nil {
			return err
		}
	}
	return nil
}

func (s *memStore) ReplaceAllForPlan(planID string, pfs []models.PlanFeature) error {
	var kept []models.PlanFeature
	for _, pf := range s.rows {
		if pf.PlanID != planID {
			kept = append(kept, pf)
		}
	}
	s.rows = append(kept, pfs...)
	return nil
}

func (s *memStore) Delete(id string) error {
	for i := range s.rows {
		if s.rows[i].ID == id {
			s.rows = append(s.rows[:i], s.rows[i+1:]...)
			return nil
		}
	}
	return nil
}

func (s *memStore) DeleteByPlanID(planID string) (int64, error) {
	var kept []models.PlanFeature
	var removed int64
	for _, pf := range s.rows {
		if pf.PlanID == planID {
			removed++
			continue
		}
		kept = append(kept, pf)
	}
	s.rows = kept
	return removed, nil
}

func (s *memStore) DeleteByFeatureID(featureID string) (int64, error) {
	var kept []models.PlanFeature
	var removed int64
	for _, pf := range s.rows {
		if pf.FeatureID == featureID {
			removed++
			continue
		}
		kept = append(kept, pf)
	}
	s.rows = kept
	return removed, nil
}

func (s *memStore) CountByPlanID(planID string) (int64, error) {
	pfs, _ := s.GetByPlanID(planID)
	return int64(len(pfs)), nil
}

func (s *memStore) CountByFeatureID(featureID string) (int64, error) {
	pfs, _ := s.GetByFeatureID(featureID)
	return int64(len(pfs)), nil
}

func (s *memStore) GetMatrix(filter repository.MatrixFilter) ([]repository.MatrixEntry, error) {
	var entries []repository.MatrixEntry
	for _, pf := range s.rows {
		if len(filter.PlanIDs) > 0 && !contains(filter.PlanIDs, pf.PlanID) {
			continue
		}
		if len(filter.FeatureIDs) > 0 && !contains(filter.FeatureIDs, pf.FeatureID) {
			continue
		}
		if filter.IsEnabled != nil && pf.IsEnabled != *filter.IsEnabled {
			continue
		}
		plan := s.plans[pf.PlanID]
		feature := s.features[pf.FeatureID]
		entries = append(entries, repository.MatrixEntry{
			PlanFeatureID:      pf.ID,
			PlanID:             pf.PlanID,
			PlanName:           plan.Name,
			FeatureID:          pf.FeatureID,
			FeatureKeyName:     feature.KeyName,
			FeatureDisplayName: feature.DisplayName,
			FeatureCategory:    feature.Category,
			IsEnabled:          pf.IsEnabled,
			Value:              pf.Value,
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].PlanName != entries[j].PlanName {
			return entries[i].PlanName < entries[j].PlanName
		}
		return entries[i].FeatureDisplayName < entries[j].FeatureDisplayName
	})
	return entries, nil
}

func contains(ids []string, id string) bool {
	for _, existing := range ids {
		if existing == id {
			return true
		}
	}
	return false
}

// memPlans adapts memStore to the PlanCatalog collaborator contract.
type memPlans struct {
	s *memStore
}

func (p *memPlans) GetPlan(ctx context.Context, id string) (*models.Plan, error) {
	_ = ctx
	if plan, ok := p.s.plans[id]; ok {
		return &plan, nil
	}
	return nil, apperrors.Newf(apperrors.CodePlanNotFound, "plan %s not found", id)
}

func (p *memPlans) AllPlans(ctx context.Context) ([]models.Plan, error) {
	_ = ctx
	plans := make([]models.Plan, 0, len(p.s.plans))
	for _, plan := range p.s.plans {
		plans = append(plans, plan)
	}
	sort.Slice(plans, func(i, j int) bool { return plans[i].Name < plans[j].Name })
	return plans, nil
}

// memFeatures adapts memStore to the FeatureCatalog collaborator contract.
type memFeatures struct {
	s *memStore
}

func (f *memFeatures) GetFeature(ctx context.Context, id string) (*models.Feature, error) {
	_ = ctx
	if feature, ok := f.s.features[id]; ok {
		return &feature, nil
	}
	return nil, apperrors.Newf(apperrors.CodeFeatureNotFound, "feature %s not found", id)
}

func (f *memFeatures) FeaturesByIDs(ctx context.Context, ids []string) ([]models.Feature, error) {
	_ = ctx
	var out []models.Feature
	for _, id := range ids {
		if feature, ok := f.s.features[id]; ok {
			out = append(out, feature)
		}
	}
	return out, nil
}

func (f *memFeatures) AllFeatures(ctx context.Context) ([]models.Feature, error) {
	_ = ctx
	features := make([]models.Feature, 0, len(f.s.features))
	for _, feature := range f.s.features {
		features = append(features, feature)
	}
	sort.Slice(features, func(i, j int) bool { return features[i].DisplayName < features[j].DisplayName })
	return features, nil
}

// memCache is an in-memory Cache.
type memCache struct {
	entries map[string]string
}

func newMemCache() *memCache {
	return &memCache{entries: map[string]string{}}
}

func (c *memCache) Get(ctx context.Context, key string) (string, error) {
	_ = ctx
	if value, ok := c.entries[key]; ok {
		return value, nil
	}
	return "", gorm.ErrRecordNotFound
}

func (c *memCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	_, _ = ctx, ttl
	c.entries[key] = value
	return nil
}

func (c *memCache) DeleteByPattern(ctx context.Context, pattern string) error {
	_ = ctx
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
	return nil
}

func strPtr(s string) *string { return &s }

func boolPtr(b bool) *bool { return &b }

// newTestEngine seeds two plans and three features and returns the engine
// with direct access to the backing store.
func newTestEngine() (*Engine, *memStore) {
	store := newMemStore()
	store.addPlan(models.Plan{ID: "p1", Name: "Basic", Slug: "basic", IsActive: true})
	store.addPlan(models.Plan{ID: "p2", Name: "Pro", Slug: "pro", IsActive: true})
	store.addFeature(models.Feature{
		ID: "f1", KeyName: "api-access", DisplayName: "API Access",
		Category: strPtr("Core"), IsBoolean: true, IsActive: true,
	})
	store.addFeature(models.Feature{
		ID: "f2", KeyName: "storage_quota", DisplayName: "Storage Quota",
		IsBoolean: false, IsActive: true,
		ValidationSchema: models.JSON(`{"required":["limit"]}`),
	})
	store.addFeature(models.Feature{
		ID: "f3", KeyName: "sso", DisplayName: "Single Sign-On",
		Category: strPtr("Security"), IsBoolean: true, IsActive: false,
	})
	engine := NewEngine(store, &memPlans{s: store}, &memFeatures{s: store}, nil)
	return engine, store
}
