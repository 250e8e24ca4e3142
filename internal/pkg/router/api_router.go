package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/planmatrix/planmatrix/app/controllers"
)

// ApiRouter installs the /api/v1 route group.
type ApiRouter struct {
	plans        *controllers.PlanController
	features     *controllers.FeatureController
	entitlements *controllers.EntitlementController
}

// NewApiRouter creates the API router from injected controllers.
func NewApiRouter(plans *controllers.PlanController, features *controllers.FeatureController, entitlements *controllers.EntitlementController) *ApiRouter {
	return &ApiRouter{plans: plans, features: features, entitlements: entitlements}
}

func (h *ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New())
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	v1 := api.Group("/v1")

	plans := v1.Group("/plans")
	plans.Get("/", h.plans.HandleList)
	plans.Post("/", h.plans.HandleCreate)
	plans.Post("/reorder", h.plans.HandleReorder)
	plans.Get("/slug/:slug", h.plans.HandleGetBySlug)
	plans.Get("/:id", h.plans.HandleGet)
	plans.Put("/:id", h.plans.HandleUpdate)
	plans.Delete("/:id", h.plans.HandleDelete)
	plans.Post("/:id/activate", h.plans.HandleActivate)
	plans.Post("/:id/deactivate", h.plans.HandleDeactivate)
	plans.Post("/:id/duplicate", h.plans.HandleDuplicate)

	features := v1.Group("/features")
	features.Get("/", h.features.HandleList)
	features.Post("/", h.features.HandleCreate)
	features.Get("/categories", h.features.HandleCategories)
	features.Get("/key/:key", h.features.HandleGetByKeyName)
	features.Get("/:id", h.features.HandleGet)
	features.Put("/:id", h.features.HandleUpdate)
	features.Delete("/:id", h.features.HandleDelete)
	features.Post("/:id/activate", h.features.HandleActivate)
	features.Post("/:id/deactivate", h.features.HandleDeactivate)
	features.Get("/:id/usage", h.features.HandleUsage)

	pf := v1.Group("/plan-features")
	pf.Post("/", h.entitlements.HandleCreate)
	pf.Post("/bulk", h.entitlements.HandleBulkCreate)
	pf.Put("/bulk", h.entitlements.HandleBulkUpdate)
	pf.Post("/copy", h.entitlements.HandleCopy)
	pf.Get("/matrix", h.entitlements.HandleMatrix)
	pf.Get("/analytics", h.entitlements.HandleAnalytics)
	pf.Get("/pair", h.entitlements.HandleGetByPair)
	pf.Get("/:id", h.entitlements.HandleGet)
	pf.Put("/:id", h.entitlements.HandleUpdate)
	pf.Delete("/:id", h.entitlements.HandleDelete)

	pf.Get("/plan/:planId", h.entitlements.HandlePlanEntitlements)
	pf.Put("/plan/:planId", h.entitlements.HandleReplaceForPlan)
	pf.Delete("/plan/:planId", h.entitlements.HandleDeleteByPlan)
	pf.Get("/plan/:planId/summary", h.entitlements.HandlePlanSummary)
	pf.Get("/plan/:planId/missing", h.entitlements.HandleMissingForPlan)
	pf.Post("/plan/:planId/enable", h.entitlements.HandleEnableForPlan)
	pf.Post("/plan/:planId/disable", h.entitlements.HandleDisableForPlan)
	pf.Delete("/feature/:featureId", h.entitlements.HandleDeleteByFeature)
}
