package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/planmatrix/planmatrix/app/controllers"
	"github.com/planmatrix/planmatrix/internal/pkg/featurecatalog"
	"github.com/planmatrix/planmatrix/internal/pkg/matrix"
	"github.com/planmatrix/planmatrix/internal/pkg/plancatalog"
)

// Router installs a route group on the fiber app.
type Router interface {
	InstallRouter(app *fiber.App)
}

// Services bundles the domain services exposed over HTTP.
type Services struct {
	PlanCatalog    *plancatalog.Service
	FeatureCatalog *featurecatalog.Service
	Engine         *matrix.Engine
}

// InstallRouter wires all route groups against the injected services.
func InstallRouter(app *fiber.App, svc Services) {
	setup(app, NewApiRouter(
		controllers.NewPlanController(svc.PlanCatalog),
		controllers.NewFeatureController(svc.FeatureCatalog),
		controllers.NewEntitlementController(svc.Engine),
	))
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
