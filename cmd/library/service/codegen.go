package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// generateCode derives a hierarchical code DIVISION.SECTION.ASSEMBLY.NN when
// an assembly context exists, otherwise a flat zero-padded 4-digit sequence
// across all items. Concurrent creations can race on the sequence; the unique
// constraint on active codes plus a single regenerate-and-retry in Create
// covers that window.
func (s *LibraryService) generateCode(ctx context.Context, assemblyID *uuid.UUID) (string, error) {
	if assemblyID != nil {
		path, err := s.hierarchy.GetAssemblyPath(ctx, *assemblyID)
		if err != nil {
			return "", fmt.Errorf("resolve assembly path: %w", err)
		}

		codes, err := s.items.ListCodesByAssembly(ctx, *assemblyID)
		if err != nil {
			return "", fmt.Errorf("list assembly codes: %w", err)
		}

		prefix := fmt.Sprintf("%s.%s.%s", path.DivisionCode, path.SectionCode, path.AssemblyCode)
		return fmt.Sprintf("%s.%02d", prefix, nextAssemblySequence(codes)), nil
	}

	codes, err := s.items.ListFlatCodes(ctx)
	if err != nil {
		return "", fmt.Errorf("list flat codes: %w", err)
	}
	return nextFlatCode(codes), nil
}

// nextAssemblySequence finds the max two-digit trailing segment among the
// assembly's codes and returns the next sequence number.
func nextAssemblySequence(codes []string) int {
	max := 0
	for _, code := range codes {
		segments := strings.Split(code, ".")
		if len(segments) < 2 {
			continue
		}
		n, err := strconv.Atoi(segments[len(segments)-1])
		if err != nil {
			continue
		}
		if n > max {
			max = n
		}
	}
	return max + 1
}

// nextFlatCode returns the next zero-padded 4-digit sequential code
func nextFlatCode(codes []string) string {
	max := 0
	for _, code := range codes {
		n, err := strconv.Atoi(code)
		if err != nil {
			continue
		}
		if n > max {
			max = n
		}
	}
	return fmt.Sprintf("%04d", max+1)
}
