package main

import (
	"fmt"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/planmatrix/planmatrix/app/repository"
	"github.com/planmatrix/planmatrix/internal/pkg/cache"
	"github.com/planmatrix/planmatrix/internal/pkg/database"
	"github.com/planmatrix/planmatrix/internal/pkg/env"
	"github.com/planmatrix/planmatrix/internal/pkg/featurecatalog"
	"github.com/planmatrix/planmatrix/internal/pkg/matrix"
	"github.com/planmatrix/planmatrix/internal/pkg/plancatalog"
	"github.com/planmatrix/planmatrix/internal/pkg/router"
)

func main() {
	app := NewApplication()
	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	log.Fatal(err)
}

func NewApplication() *fiber.App {
	env.SetupEnvFile()
	database.SetupDatabase()

	repos := repository.NewRepositories(database.GetDB())
	readCache := cache.Setup()
	planCatalog := plancatalog.NewService(repos.Plan, repos.PlanFeature, readCache)
	featureCatalog := featurecatalog.NewService(repos.Feature, repos.PlanFeature, repos.Plan, readCache)
	engine := matrix.NewEngine(repos.PlanFeature, planCatalog, featureCatalog, readCache)

	app := fiber.New(fiber.Config{
		AppName: "planmatrix",
	})
	app.Use(recover.New(), logger.New())
	app.Get("/metrics", monitor.New())

	// ROUTER
	router.InstallRouter(app, router.Services{
		PlanCatalog:    planCatalog,
		FeatureCatalog: featureCatalog,
		Engine:         engine,
	})

	return app
}
