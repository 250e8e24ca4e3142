package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/planmatrix/planmatrix/app/models"
	"github.com/planmatrix/planmatrix/internal/pkg/featurecatalog"
)

// FeatureController exposes the feature catalog over HTTP.
type FeatureController struct {
	catalog *featurecatalog.Service
}

// NewFeatureController creates a feature controller with an injected
// catalog.
func NewFeatureController(catalog *featurecatalog.Service) *FeatureController {
	return &FeatureController{catalog: catalog}
}

// HandleList returns features matching the query filter.
func (fc *FeatureController) HandleList(c *fiber.Ctx) error {
	features, total, err := fc.catalog.ListFeatures(c.UserContext(), listOptionsFromQuery(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"features": features, "total": total})
}

// HandleGet returns one feature by ID.
func (fc *FeatureController) HandleGet(c *fiber.Ctx) error {
	feature, err := fc.catalog.GetFeature(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(feature)
}

// HandleGetByKeyName returns one feature by its key name.
func (fc *FeatureController) HandleGetByKeyName(c *fiber.Ctx) error {
	feature, err := fc.catalog.GetFeatureByKeyName(c.UserContext(), c.Params("key"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(feature)
}

// HandleCreate creates a new feature.
func (fc *FeatureController) HandleCreate(c *fiber.Ctx) error {
	var in models.CreateFeatureInput
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "invalid request body")
	}
	feature, err := fc.catalog.CreateFeature(c.UserContext(), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(feature)
}

// HandleUpdate merges the given fields into a feature.
func (fc *FeatureController) HandleUpdate(c *fiber.Ctx) error {
	var in models.UpdateFeatureInput
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "invalid request body")
	}
	feature, err := fc.catalog.UpdateFeature(c.UserContext(), c.Params("id"), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(feature)
}

// HandleActivate marks a feature active.
func (fc *FeatureController) HandleActivate(c *fiber.Ctx) error {
	feature, err := fc.catalog.SetFeatureActive(c.UserContext(), c.Params("id"), true)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(feature)
}

// HandleDeactivate marks a feature inactive. This is the soft-delete path
// for features still referenced by entitlements.
func (fc *FeatureController) HandleDeactivate(c *fiber.Ctx) error {
	feature, err := fc.catalog.SetFeatureActive(c.UserContext(), c.Params("id"), false)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(feature)
}

// HandleDelete hard-deletes a feature; ?force=true cascades over the
// entitlements referencing it.
func (fc *FeatureController) HandleDelete(c *fiber.Ctx) error {
	force := c.QueryBool("force", false)
	if err := fc.catalog.DeleteFeature(c.UserContext(), c.Params("id"), force); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// HandleCategories returns the distinct feature categories in use.
func (fc *FeatureController) HandleCategories(c *fiber.Ctx) error {
	categories, err := fc.catalog.ListCategories(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"categories": categories})
}

// HandleUsage reports which plans carry a feature.
func (fc *FeatureController) HandleUsage(c *fiber.Ctx) error {
	usage, err := fc.catalog.GetFeatureUsage(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(usage)
}
