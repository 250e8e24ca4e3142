package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/planmatrix/planmatrix/app/models"
	"github.com/planmatrix/planmatrix/app/repository"
	"github.com/planmatrix/planmatrix/internal/pkg/plancatalog"
)

// PlanController exposes the plan catalog over HTTP.
type PlanController struct {
	catalog *plancatalog.Service
}

// NewPlanController creates a plan controller with an injected catalog.
func NewPlanController(catalog *plancatalog.Service) *PlanController {
	return &PlanController{catalog: catalog}
}

// HandleList returns plans matching the query filter.
func (pc *PlanController) HandleList(c *fiber.Ctx) error {
	plans, total, err := pc.catalog.ListPlans(c.UserContext(), listOptionsFromQuery(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"plans": plans, "total": total})
}

// HandleGet returns one plan by ID.
func (pc *PlanController) HandleGet(c *fiber.Ctx) error {
	plan, err := pc.catalog.GetPlan(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(plan)
}

// HandleGetBySlug returns one plan by its slug.
func (pc *PlanController) HandleGetBySlug(c *fiber.Ctx) error {
	plan, err := pc.catalog.GetPlanBySlug(c.UserContext(), c.Params("slug"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(plan)
}

// HandleCreate creates a new plan.
func (pc *PlanController) HandleCreate(c *fiber.Ctx) error {
	var in models.CreatePlanInput
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "invalid request body")
	}
	plan, err := pc.catalog.CreatePlan(c.UserContext(), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(plan)
}

// HandleUpdate merges the given fields into a plan.
func (pc *PlanController) HandleUpdate(c *fiber.Ctx) error {
	var in models.UpdatePlanInput
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "invalid request body")
	}
	plan, err := pc.catalog.UpdatePlan(c.UserContext(), c.Params("id"), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(plan)
}

// HandleActivate marks a plan active.
func (pc *PlanController) HandleActivate(c *fiber.Ctx) error {
	plan, err := pc.catalog.SetPlanActive(c.UserContext(), c.Params("id"), true)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(plan)
}

// HandleDeactivate marks a plan inactive.
func (pc *PlanController) HandleDeactivate(c *fiber.Ctx) error {
	plan, err := pc.catalog.SetPlanActive(c.UserContext(), c.Params("id"), false)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(plan)
}

// HandleDelete hard-deletes a plan; ?force=true cascades over its
// entitlements.
func (pc *PlanController) HandleDelete(c *fiber.Ctx) error {
	force := c.QueryBool("force", false)
	if err := pc.catalog.DeletePlan(c.UserContext(), c.Params("id"), force); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// HandleDuplicate clones a plan with its entitlement set.
func (pc *PlanController) HandleDuplicate(c *fiber.Ctx) error {
	var body struct {
		Name string `json:"name"`
		Slug string `json:"slug"`
	}
	if err := c.BodyParser(&body); err != nil && len(c.Body()) > 0 {
		return badRequest(c, "invalid request body")
	}
	plan, err := pc.catalog.DuplicatePlan(c.UserContext(), c.Params("id"), body.Name, body.Slug)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(plan)
}

// HandleReorder applies new sort positions to a set of plans.
func (pc *PlanController) HandleReorder(c *fiber.Ctx) error {
	var body struct {
		Orders []repository.PlanOrder `json:"orders"`
	}
	if err := c.BodyParser(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := pc.catalog.ReorderPlans(c.UserContext(), body.Orders); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"reordered": len(body.Orders)})
}
