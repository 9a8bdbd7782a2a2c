package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sitewise/estimator/cmd/library/service"
)

// respondServiceError maps the service error taxonomy onto HTTP responses.
// Anything untyped is a 500 with a generic message; the detail stays in logs.
func respondServiceError(c echo.Context, err error) error {
	var validationErr *service.ValidationError
	if errors.As(err, &validationErr) {
		return c.JSON(http.StatusUnprocessableEntity, map[string]interface{}{
			"error":    "validation failed",
			"errors":   validationErr.Errors,
			"warnings": validationErr.Warnings,
		})
	}

	var rateErr *service.RateValidationError
	if errors.As(err, &rateErr) {
		return c.JSON(http.StatusUnprocessableEntity, map[string]interface{}{
			"error":  "rate validation failed",
			"errors": rateErr.Errors,
		})
	}

	var transitionErr *service.InvalidTransitionError
	if errors.As(err, &transitionErr) {
		return c.JSON(http.StatusConflict, map[string]interface{}{
			"error": transitionErr.Error(),
			"from":  transitionErr.From,
			"to":    transitionErr.To,
		})
	}

	var conflictErr *service.ConflictError
	if errors.As(err, &conflictErr) {
		return c.JSON(http.StatusConflict, map[string]interface{}{
			"error": conflictErr.Error(),
		})
	}

	var notFoundErr *service.NotFoundError
	if errors.As(err, &notFoundErr) {
		return c.JSON(http.StatusNotFound, map[string]interface{}{
			"error": notFoundErr.Error(),
		})
	}

	var assemblyErr *service.AssemblyResolutionError
	if errors.As(err, &assemblyErr) {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": assemblyErr.Error(),
		})
	}

	return c.JSON(http.StatusInternalServerError, map[string]interface{}{
		"error": "internal server error",
	})
}

func badRequest(c echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, map[string]interface{}{
		"error": message,
	})
}
