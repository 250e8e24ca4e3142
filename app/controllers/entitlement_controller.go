package controllers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/planmatrix/planmatrix/app/repository"
	"github.com/planmatrix/planmatrix/internal/pkg/matrix"
)

// EntitlementController exposes the matrix engine over HTTP.
type EntitlementController struct {
	engine *matrix.Engine
}

// NewEntitlementController creates an entitlement controller with an
// injected engine.
func NewEntitlementController(engine *matrix.Engine) *EntitlementController {
	return &EntitlementController{engine: engine}
}

// HandleCreate assigns a feature to a plan.
func (ec *EntitlementController) HandleCreate(c *fiber.Ctx) error {
	var in matrix.CreatePlanFeatureInput
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "invalid request body")
	}
	pf, err := ec.engine.CreatePlanFeature(c.UserContext(), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(pf)
}

// HandleGet returns one entitlement by ID.
func (ec *EntitlementController) HandleGet(c *fiber.Ctx) error {
	pf, err := ec.engine.GetPlanFeature(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(pf)
}

// HandleGetByPair returns the entitlement for one plan/feature pair.
func (ec *EntitlementController) HandleGetByPair(c *fiber.Ctx) error {
	planID := c.Query("plan_id")
	featureID := c.Query("feature_id")
	if planID == "" || featureID == "" {
		return badRequest(c, "plan_id and feature_id are required")
	}
	pf, err := ec.engine.GetPlanFeatureByPair(c.UserContext(), planID, featureID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(pf)
}

// HandleUpdate changes the enabled flag and/or value of an entitlement.
func (ec *EntitlementController) HandleUpdate(c *fiber.Ctx) error {
	var in matrix.UpdatePlanFeatureInput
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "invalid request body")
	}
	pf, err := ec.engine.UpdatePlanFeature(c.UserContext(), c.Params("id"), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(pf)
}

// HandleDelete removes one entitlement.
func (ec *EntitlementController) HandleDelete(c *fiber.Ctx) error {
	if err := ec.engine.DeletePlanFeature(c.UserContext(), c.Params("id")); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// HandleBulkCreate inserts a batch of entitlements atomically.
func (ec *EntitlementController) HandleBulkCreate(c *fiber.Ctx) error {
	var body struct {
		PlanFeatures []matrix.CreatePlanFeatureInput `json:"plan_features"`
	}
	if err := c.BodyParser(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	created, err := ec.engine.BulkCreatePlanFeatures(c.UserContext(), body.PlanFeatures)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"plan_features": created})
}

// HandleBulkUpdate applies per-item updates to a batch of entitlements.
func (ec *EntitlementController) HandleBulkUpdate(c *fiber.Ctx) error {
	var body struct {
		Updates []matrix.BulkUpdateEntry `json:"updates"`
	}
	if err := c.BodyParser(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	updated, err := ec.engine.BulkUpdatePlanFeatures(c.UserContext(), body.Updates)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"plan_features": updated})
}

// HandleReplaceForPlan atomically replaces a plan's entire entitlement
// set. An empty entry list clears the plan.
func (ec *EntitlementController) HandleReplaceForPlan(c *fiber.Ctx) error {
	var body struct {
		Features []matrix.ReplaceEntry `json:"features"`
	}
	if err := c.BodyParser(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	rows, err := ec.engine.ReplaceAllFeaturesForPlan(c.UserContext(), c.Params("planId"), body.Features)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"plan_features": rows})
}

// HandleCopy copies entitlements between plans; overwrite replaces the
// target set, merge only adds missing features.
func (ec *EntitlementController) HandleCopy(c *fiber.Ctx) error {
	var body struct {
		SourcePlanID string `json:"source_plan_id"`
		TargetPlanID string `json:"target_plan_id"`
		Overwrite    bool   `json:"overwrite"`
	}
	if err := c.BodyParser(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	rows, err := ec.engine.CopyPlanEntitlements(c.UserContext(), body.SourcePlanID, body.TargetPlanID, body.Overwrite)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"plan_features": rows})
}

// HandleMatrix returns the feature-by-plan pivot, filterable by plan ids,
// feature ids and enabled flag.
func (ec *EntitlementController) HandleMatrix(c *fiber.Ctx) error {
	filter := repository.MatrixFilter{}
	if raw := c.Query("plan_ids"); raw != "" {
		filter.PlanIDs = splitIDs(raw)
	}
	if raw := c.Query("feature_ids"); raw != "" {
		filter.FeatureIDs = splitIDs(raw)
	}
	if raw := c.Query("is_enabled"); raw != "" {
		if enabled, err := strconv.ParseBool(raw); err == nil {
			filter.IsEnabled = &enabled
		}
	}
	rows, err := ec.engine.GetEntitlementMatrix(c.UserContext(), filter)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"matrix": rows})
}

// HandlePlanSummary returns the per-plan entitlement rollup.
func (ec *EntitlementController) HandlePlanSummary(c *fiber.Ctx) error {
	summary, err := ec.engine.GetPlanEntitlementSummary(c.UserContext(), c.Params("planId"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(summary)
}

// HandleAnalytics returns the global coverage/adoption rollup.
func (ec *EntitlementController) HandleAnalytics(c *fiber.Ctx) error {
	analytics, err := ec.engine.GetEntitlementAnalytics(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(analytics)
}

// HandleMissingForPlan returns the features not yet assigned to a plan.
func (ec *EntitlementController) HandleMissingForPlan(c *fiber.Ctx) error {
	missing, err := ec.engine.GetMissingFeaturesForPlan(c.UserContext(), c.Params("planId"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"features": missing})
}

// HandlePlanEntitlements returns a plan's raw entitlement rows.
func (ec *EntitlementController) HandlePlanEntitlements(c *fiber.Ctx) error {
	enabledOnly := c.QueryBool("enabled_only", false)
	rows, err := ec.engine.GetEntitlementsForPlan(c.UserContext(), c.Params("planId"), enabledOnly)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"plan_features": rows})
}

// HandleEnableForPlan enables every entitlement of a plan atomically.
func (ec *EntitlementController) HandleEnableForPlan(c *fiber.Ctx) error {
	rows, err := ec.engine.SetPlanEntitlementsEnabled(c.UserContext(), c.Params("planId"), true)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"plan_features": rows})
}

// HandleDisableForPlan disables every entitlement of a plan atomically.
func (ec *EntitlementController) HandleDisableForPlan(c *fiber.Ctx) error {
	rows, err := ec.engine.SetPlanEntitlementsEnabled(c.UserContext(), c.Params("planId"), false)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"plan_features": rows})
}

// HandleDeleteByPlan removes all entitlements of a plan.
func (ec *EntitlementController) HandleDeleteByPlan(c *fiber.Ctx) error {
	count, err := ec.engine.DeleteEntitlementsByPlan(c.UserContext(), c.Params("planId"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"deleted": count})
}

// HandleDeleteByFeature removes all entitlements referencing a feature.
func (ec *EntitlementController) HandleDeleteByFeature(c *fiber.Ctx) error {
	count, err := ec.engine.DeleteEntitlementsByFeature(c.UserContext(), c.Params("featureId"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"deleted": count})
}

func splitIDs(raw string) []string {
	parts := strings.Split(raw, ",")
	ids := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			ids = append(ids, p)
		}
	}
	return ids
}
