package controllers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/planmatrix/planmatrix/app/repository"
	"github.com/planmatrix/planmatrix/internal/pkg/apperrors"
)

// statusForCode maps domain error codes to HTTP status codes.
func statusForCode(code apperrors.Code) int {
	switch code {
	case apperrors.CodePlanNotFound,
		apperrors.CodeFeatureNotFound,
		apperrors.CodePlanFeatureNotFound:
		return fiber.StatusNotFound
	case apperrors.CodePlanFeatureAlreadyExists,
		apperrors.CodePlanNameExists,
		apperrors.CodePlanSlugExists,
		apperrors.CodeDuplicateKeyName,
		apperrors.CodeFeatureInUse,
		apperrors.CodePlanHasFeatures,
		apperrors.CodeBulkDuplicateError,
		apperrors.CodeDuplicateInBatch:
		return fiber.StatusConflict
	case apperrors.CodeValidationError,
		apperrors.CodeInvalidValue,
		apperrors.CodeBulkValidationError,
		apperrors.CodeBulkUpdateValidation,
		apperrors.CodeNoFeaturesToCopy:
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}

// respondError renders a typed domain error as JSON. Untyped errors
// become a generic 500 without leaking internals.
func respondError(c *fiber.Ctx, err error) error {
	if code, ok := apperrors.CodeOf(err); ok {
		return c.Status(statusForCode(code)).JSON(fiber.Map{
			"error":   string(code),
			"message": err.Error(),
		})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error":   "internal_error",
		"message": "unexpected error",
	})
}

// badRequest renders a request parsing failure.
func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error":   "bad_request",
		"message": message,
	})
}

// listOptionsFromQuery builds catalog list options from query parameters.
func listOptionsFromQuery(c *fiber.Ctx) repository.ListOptions {
	opts := repository.ListOptions{
		Search: c.Query("search"),
		SortBy: c.Query("sort_by"),
		Offset: c.QueryInt("offset", 0),
		Limit:  c.QueryInt("limit", 50),
	}
	if raw := c.Query("is_active"); raw != "" {
		if active, err := strconv.ParseBool(raw); err == nil {
			opts.IsActive = &active
		}
	}
	opts.SortDesc = c.Query("sort_dir") == "desc"
	if opts.Offset < 0 {
		opts.Offset = 0
	}
	if opts.Limit < 0 || opts.Limit > 200 {
		opts.Limit = 50
	}
	return opts
}
