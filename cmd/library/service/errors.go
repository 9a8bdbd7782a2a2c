package service

import (
	"fmt"
	"strings"

	"github.com/sitewise/estimator/common/models"
)

// ValidationError reports every failed precondition of a confirm, not just the
// first one found.
type ValidationError struct {
	Errors   []string
	Warnings []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", strings.Join(e.Errors, "; "))
}

// InvalidTransitionError reports a status transition the lifecycle table does
// not allow. The operation is rejected, never coerced.
type InvalidTransitionError struct {
	From models.ItemStatus
	To   models.ItemStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition: %s -> %s", e.From, e.To)
}

// NotFoundError reports a missing item, version, assembly or rates row
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// AssemblyResolutionError reports that quick-add exhausted its fallback chain
// without resolving an assembly.
type AssemblyResolutionError struct {
	Detail string
}

func (e *AssemblyResolutionError) Error() string {
	return fmt.Sprintf("could not resolve assembly: %s", e.Detail)
}

// RateValidationError reports rejected rates on a set or import
type RateValidationError struct {
	Errors []string
}

func (e *RateValidationError) Error() string {
	return fmt.Sprintf("rate validation failed: %s", strings.Join(e.Errors, "; "))
}

// ConflictError reports a concurrent edit detected by the version precondition
// on item updates.
type ConflictError struct {
	Resource string
	ID       string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s was modified concurrently: %s", e.Resource, e.ID)
}
