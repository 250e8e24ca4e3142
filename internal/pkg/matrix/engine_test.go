package matrix

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planmatrix/planmatrix/app/models"
	"github.com/planmatrix/planmatrix/internal/pkg/apperrors"
)

func seedRow(store *memStore, id, planID, featureID string, enabled bool, value models.JSON) {
	if value == nil {
		value = models.EmptyObject()
	}
	store.rows = append(store.rows, models.PlanFeature{
		ID:        id,
		PlanID:    planID,
		FeatureID: featureID,
		IsEnabled: enabled,
		Value:     value,
	})
}

func TestCreatePlanFeature(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		input    CreatePlanFeatureInput
		wantCode apperrors.Code
	}{
		{
			name:  "boolean feature with no value",
			input: CreatePlanFeatureInput{PlanID: "p1", FeatureID: "f1", IsEnabled: true},
		},
		{
			name: "valued feature with required key present",
			input: CreatePlanFeatureInput{
				PlanID: "p1", FeatureID: "f2", IsEnabled: true,
				Value: models.JSON(`{"limit":100}`),
			},
		},
		{
			name:     "unknown plan",
			input:    CreatePlanFeatureInput{PlanID: "nope", FeatureID: "f1"},
			wantCode: apperrors.CodePlanNotFound,
		},
		{
			name:     "unknown feature",
			input:    CreatePlanFeatureInput{PlanID: "p1", FeatureID: "nope"},
			wantCode: apperrors.CodeFeatureNotFound,
		},
		{
			name: "value is not an object",
			input: CreatePlanFeatureInput{
				PlanID: "p1", FeatureID: "f1",
				Value: models.JSON(`[1,2,3]`),
			},
			wantCode: apperrors.CodeInvalidValue,
		},
		{
			name: "value missing required schema key",
			input: CreatePlanFeatureInput{
				PlanID: "p1", FeatureID: "f2",
				Value: models.JSON(`{"cap":5}`),
			},
			wantCode: apperrors.CodeInvalidValue,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, _ := newTestEngine()
			pf, err := engine.CreatePlanFeature(ctx, tt.input)
			if tt.wantCode != "" {
				require.Error(t, err)
				assert.True(t, apperrors.IsCode(err, tt.wantCode), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, pf.ID)
			assert.Equal(t, tt.input.PlanID, pf.PlanID)
			assert.Equal(t, tt.input.FeatureID, pf.FeatureID)
			assert.True(t, pf.Value.IsObject())
		})
	}
}

func TestCreatePlanFeatureDefaultsValueToEmptyObject(t *testing.T) {
	engine, _ := newTestEngine()
	pf, err := engine.CreatePlanFeature(context.Background(), CreatePlanFeatureInput{
		PlanID: "p1", FeatureID: "f1", IsEnabled: true,
	})
	require.NoError(t, err)
	assert.Equal(t, models.EmptyObject(), pf.Value)
}

func TestCreatePlanFeatureDuplicatePair(t *testing.T) {
	engine, store := newTestEngine()
	ctx := context.Background()

	_, err := engine.CreatePlanFeature(ctx, CreatePlanFeatureInput{PlanID: "p1", FeatureID: "f1"})
	require.NoError(t, err)

	// The second create loses at the unique index, same as a concurrent
	// writer would.
	_, err = engine.CreatePlanFeature(ctx, CreatePlanFeatureInput{PlanID: "p1", FeatureID: "f1"})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodePlanFeatureAlreadyExists))
	assert.Len(t, store.rows, 1)
}

func TestUpdatePlanFeature(t *testing.T) {
	ctx := context.Background()

	t.Run("toggle enabled keeps value", func(t *testing.T) {
		engine, store := newTestEngine()
		seedRow(store, "pf1", "p1", "f2", false, models.JSON(`{"limit":10}`))

		pf, err := engine.UpdatePlanFeature(ctx, "pf1", UpdatePlanFeatureInput{IsEnabled: boolPtr(true)})
		require.NoError(t, err)
		assert.True(t, pf.IsEnabled)
		assert.JSONEq(t, `{"limit":10}`, string(pf.Value))
	})

	t.Run("replace value keeps enabled", func(t *testing.T) {
		engine, store := newTestEngine()
		seedRow(store, "pf1", "p1", "f2", true, models.JSON(`{"limit":10}`))

		pf, err := engine.UpdatePlanFeature(ctx, "pf1", UpdatePlanFeatureInput{Value: models.JSON(`{"limit":50}`)})
		require.NoError(t, err)
		assert.True(t, pf.IsEnabled)
		assert.JSONEq(t, `{"limit":50}`, string(pf.Value))
	})

	t.Run("rejects non-object value", func(t *testing.T) {
		engine, store := newTestEngine()
		seedRow(store, "pf1", "p1", "f2", true, nil)

		_, err := engine.UpdatePlanFeature(ctx, "pf1", UpdatePlanFeatureInput{Value: models.JSON(`"text"`)})
		require.Error(t, err)
		assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidValue))
	})

	t.Run("unknown id", func(t *testing.T) {
		engine, _ := newTestEngine()
		_, err := engine.UpdatePlanFeature(ctx, "missing", UpdatePlanFeatureInput{IsEnabled: boolPtr(true)})
		require.Error(t, err)
		assert.True(t, apperrors.IsCode(err, apperrors.CodePlanFeatureNotFound))
	})
}

func TestDeletePlanFeature(t *testing.T) {
	ctx := context.Background()
	engine, store := newTestEngine()
	seedRow(store, "pf1", "p1", "f1", true, nil)

	require.NoError(t, engine.DeletePlanFeature(ctx, "pf1"))
	assert.Empty(t, store.rows)

	err := engine.DeletePlanFeature(ctx, "pf1")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodePlanFeatureNotFound))
}

func TestBulkCreatePlanFeatures(t *testing.T) {
	ctx := context.Background()

	t.Run("creates the whole batch", func(t *testing.T) {
		engine, store := newTestEngine()
		created, err := engine.BulkCreatePlanFeatures(ctx, []CreatePlanFeatureInput{
			{PlanID: "p1", FeatureID: "f1", IsEnabled: true},
			{PlanID: "p1", FeatureID: "f2", Value: models.JSON(`{"limit":5}`)},
			{PlanID: "p2", FeatureID: "f1", IsEnabled: true},
		})
		require.NoError(t, err)
		assert.Len(t, created, 3)
		assert.Len(t, store.rows, 3)
	})

	t.Run("empty batch is a no-op", func(t *testing.T) {
		engine, store := newTestEngine()
		created, err := engine.BulkCreatePlanFeatures(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, created)
		assert.Empty(t, store.rows)
	})

	t.Run("repeated pair in batch", func(t *testing.T) {
		engine, store := newTestEngine()
		_, err := engine.BulkCreatePlanFeatures(ctx, []CreatePlanFeatureInput{
			{PlanID: "p1", FeatureID: "f1"},
			{PlanID: "p1", FeatureID: "f1"},
		})
		require.Error(t, err)
		assert.True(t, apperrors.IsCode(err, apperrors.CodeDuplicateInBatch))
		assert.Empty(t, store.rows)
	})

	t.Run("collects all validation problems", func(t *testing.T) {
		engine, store := newTestEngine()
		_, err := engine.BulkCreatePlanFeatures(ctx, []CreatePlanFeatureInput{
			{PlanID: "ghost", FeatureID: "f1"},
			{PlanID: "p1", FeatureID: "phantom"},
			{PlanID: "p1", FeatureID: "f2", Value: models.JSON(`{"cap":1}`)},
		})
		require.Error(t, err)
		assert.True(t, apperrors.IsCode(err, apperrors.CodeBulkValidationError))
		assert.Contains(t, err.Error(), "plan ghost not found")
		assert.Contains(t, err.Error(), "feature phantom not found")
		assert.Contains(t, err.Error(), "required key")
		assert.Empty(t, store.rows)
	})

	t.Run("pair already stored rejects the batch", func(t *testing.T) {
		engine, store := newTestEngine()
		seedRow(store, "pf1", "p1", "f1", true, nil)

		_, err := engine.BulkCreatePlanFeatures(ctx, []CreatePlanFeatureInput{
			{PlanID: "p1", FeatureID: "f1"},
			{PlanID: "p1", FeatureID: "f2", Value: models.JSON(`{"limit":1}`)},
		})
		require.Error(t, err)
		assert.True(t, apperrors.IsCode(err, apperrors.CodeBulkDuplicateError))
		assert.Len(t, store.rows, 1)
	})
}

func TestBulkUpdatePlanFeatures(t *testing.T) {
	ctx := context.Background()

	t.Run("shape errors reject the whole batch", func(t *testing.T) {
		engine, store := newTestEngine()
		seedRow(store, "pf1", "p1", "f1", false, nil)

		_, err := engine.BulkUpdatePlanFeatures(ctx, []BulkUpdateEntry{
			{PlanFeatureID: "pf1", IsEnabled: boolPtr(true)},
			{PlanFeatureID: "", IsEnabled: boolPtr(true)},
			{PlanFeatureID: "pf1", Value: models.JSON(`123`)},
		})
		require.Error(t, err)
		assert.True(t, apperrors.IsCode(err, apperrors.CodeBulkUpdateValidation))
		assert.False(t, store.rows[0].IsEnabled)
	})

	t.Run("entries apply independently", func(t *testing.T) {
		engine, store := newTestEngine()
		seedRow(store, "pf1", "p1", "f1", false, nil)

		updated, err := engine.BulkUpdatePlanFeatures(ctx, []BulkUpdateEntry{
			{PlanFeatureID: "pf1", IsEnabled: boolPtr(true)},
			{PlanFeatureID: "missing", IsEnabled: boolPtr(true)},
		})
		require.Error(t, err)
		assert.True(t, apperrors.IsCode(err, apperrors.CodePlanFeatureNotFound))
		// The first entry has already been applied.
		assert.Len(t, updated, 1)
		assert.True(t, store.rows[0].IsEnabled)
	})
}

func TestReplaceAllFeaturesForPlan(t *testing.T) {
	ctx := context.Background()

	t.Run("installs exactly the given set", func(t *testing.T) {
		engine, store := newTestEngine()
		seedRow(store, "pf1", "p1", "f1", true, nil)
		seedRow(store, "pf2", "p2", "f1", true, nil)

		rows, err := engine.ReplaceAllFeaturesForPlan(ctx, "p1", []ReplaceEntry{
			{FeatureID: "f2", IsEnabled: true, Value: models.JSON(`{"limit":20}`)},
			{FeatureID: "f3", IsEnabled: false},
		})
		require.NoError(t, err)
		assert.Len(t, rows, 2)

		p1Rows, _ := store.GetByPlanID("p1")
		require.Len(t, p1Rows, 2)
		assert.Equal(t, "f2", p1Rows[0].FeatureID)
		assert.Equal(t, "f3", p1Rows[1].FeatureID)

		// Other plans are untouched.
		p2Rows, _ := store.GetByPlanID("p2")
		assert.Len(t, p2Rows, 1)
	})

	t.Run("empty set clears the plan", func(t *testing.T) {
		engine, store := newTestEngine()
		seedRow(store, "pf1", "p1", "f1", true, nil)
		seedRow(store, "pf2", "p1", "f2", true, models.JSON(`{"limit":5}`))

		rows, err := engine.ReplaceAllFeaturesForPlan(ctx, "p1", nil)
		require.NoError(t, err)
		assert.Empty(t, rows)

		p1Rows, _ := store.GetByPlanID("p1")
		assert.Empty(t, p1Rows)
	})

	t.Run("unknown feature leaves the set unchanged", func(t *testing.T) {
		engine, store := newTestEngine()
		seedRow(store, "pf1", "p1", "f1", true, nil)

		_, err := engine.ReplaceAllFeaturesForPlan(ctx, "p1", []ReplaceEntry{
			{FeatureID: "f2", Value: models.JSON(`{"limit":1}`)},
			{FeatureID: "phantom"},
		})
		require.Error(t, err)
		assert.True(t, apperrors.IsCode(err, apperrors.CodeFeatureNotFound))

		p1Rows, _ := store.GetByPlanID("p1")
		require.Len(t, p1Rows, 1)
		assert.Equal(t, "f1", p1Rows[0].FeatureID)
	})

	t.Run("repeated feature in the entry set", func(t *testing.T) {
		engine, _ := newTestEngine()
		_, err := engine.ReplaceAllFeaturesForPlan(ctx, "p1", []ReplaceEntry{
			{FeatureID: "f1"},
			{FeatureID: "f1"},
		})
		require.Error(t, err)
		assert.True(t, apperrors.IsCode(err, apperrors.CodeDuplicateInBatch))
	})
}

func TestCopyPlanEntitlementsOverwrite(t *testing.T) {
	ctx := context.Background()
	engine, store := newTestEngine()
	seedRow(store, "pf1", "p1", "f1", true, nil)
	seedRow(store, "pf2", "p1", "f2", false, models.JSON(`{"limit":10}`))
	seedRow(store, "pf3", "p2", "f3", true, nil)

	rows, err := engine.CopyPlanEntitlements(ctx, "p1", "p2", true)
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	// The target becomes an exact copy of the source: f3 is gone.
	targetRows, _ := store.GetByPlanID("p2")
	require.Len(t, targetRows, 2)
	byFeature := map[string]models.PlanFeature{}
	for _, pf := range targetRows {
		byFeature[pf.FeatureID] = pf
	}
	assert.True(t, byFeature["f1"].IsEnabled)
	assert.False(t, byFeature["f2"].IsEnabled)
	assert.JSONEq(t, `{"limit":10}`, string(byFeature["f2"].Value))
	assert.NotContains(t, byFeature, "f3")

	// The source is left alone.
	sourceRows, _ := store.GetByPlanID("p1")
	assert.Len(t, sourceRows, 2)
}

func TestCopyPlanEntitlementsMerge(t *testing.T) {
	ctx := context.Background()

	t.Run("adds only missing features", func(t *testing.T) {
		engine, store := newTestEngine()
		seedRow(store, "pf1", "p1", "f1", true, nil)
		seedRow(store, "pf2", "p1", "f2", true, models.JSON(`{"limit":10}`))
		seedRow(store, "pf3", "p2", "f1", false, nil)

		created, err := engine.CopyPlanEntitlements(ctx, "p1", "p2", false)
		require.NoError(t, err)
		require.Len(t, created, 1)
		assert.Equal(t, "f2", created[0].FeatureID)

		// The target's existing f1 row keeps its own settings.
		targetRows, _ := store.GetByPlanID("p2")
		require.Len(t, targetRows, 2)
		for _, pf := range targetRows {
			if pf.FeatureID == "f1" {
				assert.False(t, pf.IsEnabled)
			}
		}
	})

	t.Run("nothing to add returns an empty set", func(t *testing.T) {
		engine, store := newTestEngine()
		seedRow(store, "pf1", "p1", "f1", true, nil)
		seedRow(store, "pf2", "p2", "f1", false, nil)

		created, err := engine.CopyPlanEntitlements(ctx, "p1", "p2", false)
		require.NoError(t, err)
		assert.Empty(t, created)

		targetRows, _ := store.GetByPlanID("p2")
		assert.Len(t, targetRows, 1)
	})

	t.Run("empty source plan", func(t *testing.T) {
		engine, _ := newTestEngine()
		_, err := engine.CopyPlanEntitlements(ctx, "p1", "p2", false)
		require.Error(t, err)
		assert.True(t, apperrors.IsCode(err, apperrors.CodeNoFeaturesToCopy))
	})

	t.Run("unknown target plan", func(t *testing.T) {
		engine, store := newTestEngine()
		seedRow(store, "pf1", "p1", "f1", true, nil)

		_, err := engine.CopyPlanEntitlements(ctx, "p1", "ghost", false)
		require.Error(t, err)
		assert.True(t, apperrors.IsCode(err, apperrors.CodePlanNotFound))
	})
}

func TestDeleteEntitlementsByPlan(t *testing.T) {
	ctx := context.Background()
	engine, store := newTestEngine()
	seedRow(store, "pf1", "p1", "f1", true, nil)
	seedRow(store, "pf2", "p1", "f2", true, nil)
	seedRow(store, "pf3", "p2", "f1", true, nil)

	count, err := engine.DeleteEntitlementsByPlan(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
	assert.Len(t, store.rows, 1)

	_, err = engine.DeleteEntitlementsByPlan(ctx, "ghost")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodePlanNotFound))
}

func TestDeleteEntitlementsByFeature(t *testing.T) {
	ctx := context.Background()
	engine, store := newTestEngine()
	seedRow(store, "pf1", "p1", "f1", true, nil)
	seedRow(store, "pf2", "p2", "f1", true, nil)
	seedRow(store, "pf3", "p2", "f2", true, nil)

	count, err := engine.DeleteEntitlementsByFeature(ctx, "f1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
	assert.Len(t, store.rows, 1)

	_, err = engine.DeleteEntitlementsByFeature(ctx, "phantom")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeFeatureNotFound))
}

func TestGetPlanFeatureByPair(t *testing.T) {
	ctx := context.Background()
	engine, store := newTestEngine()
	seedRow(store, "pf1", "p1", "f1", true, nil)

	pf, err := engine.GetPlanFeatureByPair(ctx, "p1", "f1")
	require.NoError(t, err)
	assert.Equal(t, "pf1", pf.ID)

	_, err = engine.GetPlanFeatureByPair(ctx, "p1", "f2")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodePlanFeatureNotFound), "got %v", err)
}

// failingStore wedges batch updates to exercise the storage error path.
type failingStore struct {
	*memStore
}

func (s *failingStore) UpdateMany([]models.PlanFeature) error {
	return errors.New("connection reset")
}

func TestSetPlanEntitlementsEnabled(t *testing.T) {
	ctx := context.Background()

	t.Run("flips every row of the plan", func(t *testing.T) {
		engine, store := newTestEngine()
		seedRow(store, "pf1", "p1", "f1", false, nil)
		seedRow(store, "pf2", "p1", "f2", true, nil)
		seedRow(store, "pf3", "p2", "f1", false, nil)

		rows, err := engine.SetPlanEntitlementsEnabled(ctx, "p1", true)
		require.NoError(t, err)
		require.Len(t, rows, 2)
		for _, pf := range rows {
			assert.True(t, pf.IsEnabled)
		}
		// Other plans are untouched.
		other, _ := store.GetByID("pf3")
		assert.False(t, other.IsEnabled)
	})

	t.Run("no-op when already in the target state", func(t *testing.T) {
		engine, store := newTestEngine()
		seedRow(store, "pf1", "p1", "f1", true, nil)

		rows, err := engine.SetPlanEntitlementsEnabled(ctx, "p1", true)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.True(t, rows[0].IsEnabled)
	})

	t.Run("unknown plan", func(t *testing.T) {
		engine, _ := newTestEngine()
		_, err := engine.SetPlanEntitlementsEnabled(ctx, "ghost", true)
		require.Error(t, err)
		assert.True(t, apperrors.IsCode(err, apperrors.CodePlanNotFound))
	})

	t.Run("failed batch leaves the store unchanged", func(t *testing.T) {
		_, store := newTestEngine()
		seedRow(store, "pf1", "p1", "f1", false, nil)
		seedRow(store, "pf2", "p1", "f2", false, nil)
		engine := NewEngine(&failingStore{memStore: store}, &memPlans{s: store}, &memFeatures{s: store}, nil)

		_, err := engine.SetPlanEntitlementsEnabled(ctx, "p1", true)
		require.Error(t, err)
		assert.True(t, apperrors.IsCode(err, apperrors.CodeStorageFailure), "got %v", err)
		for _, pf := range store.rows {
			assert.False(t, pf.IsEnabled)
		}
	})

	t.Run("invalidates cached read models", func(t *testing.T) {
		_, store := newTestEngine()
		seedRow(store, "pf1", "p1", "f1", false, nil)
		c := newMemCache()
		c.entries[CacheKeyMatrix] = "stale"
		engine := NewEngine(store, &memPlans{s: store}, &memFeatures{s: store}, c)

		_, err := engine.SetPlanEntitlementsEnabled(ctx, "p1", true)
		require.NoError(t, err)
		assert.Empty(t, c.entries)
	})
}
