package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNextAssemblySequence(t *testing.T) {
	assert.Equal(t, 1, nextAssemblySequence(nil))
	assert.Equal(t, 3, nextAssemblySequence([]string{"02.10.10.01", "02.10.10.02"}))

	// Gaps are not reused and junk segments are ignored
	assert.Equal(t, 8, nextAssemblySequence([]string{"02.10.10.07", "02.10.10.03", "garbage"}))
}

func TestNextFlatCode(t *testing.T) {
	assert.Equal(t, "0001", nextFlatCode(nil))
	assert.Equal(t, "0043", nextFlatCode([]string{"0042", "0007"}))
	assert.Equal(t, "0100", nextFlatCode([]string{"0099", "not-a-number"}))
}
