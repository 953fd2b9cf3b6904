package apperrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToolError_Error(t *testing.T) {
	e := New(CategoryInput, CodeInvalidTableKey, "table not found")
	assert.Equal(t, "input/INVALID_TABLE_KEY: table not found", e.Error())
}

func TestNew_RecoverableDefaults(t *testing.T) {
	tests := []struct {
		name        string
		category    Category
		recoverable bool
	}{
		{"readiness is recoverable", CategoryReadiness, true},
		{"input is recoverable", CategoryInput, true},
		{"parse is recoverable", CategoryParse, true},
		{"truncation is recoverable", CategoryTruncation, true},
		{"coverage is recoverable", CategoryCoverage, true},
		{"runtime is recoverable", CategoryRuntime, true},
		{"safety is not recoverable", CategorySafety, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := New(tt.category, "X", "msg")
			assert.Equal(t, tt.recoverable, e.Recoverable)
		})
	}
}

func TestWithHints_DoesNotMutateOriginal(t *testing.T) {
	orig := New(CategoryInput, CodeInvalidTableKey, "nope", "hint one")
	derived := orig.WithHints("hint two")

	assert.Len(t, orig.Hints, 1)
	assert.Len(t, derived.Hints, 2)
	assert.Equal(t, "hint two", derived.Hints[1])
}

func TestInvalidTableKey_Suggestions(t *testing.T) {
	e := InvalidTableKey("public.ordes", []string{"public.orders"})
	require.Len(t, e.Hints, 1)
	assert.Contains(t, e.Hints[0], "public.orders")
	assert.Equal(t, CodeInvalidTableKey, e.Code)
	assert.True(t, e.Recoverable)
}

func TestAsToolError(t *testing.T) {
	te := New(CategoryRuntime, CodeDriverError, "boom")
	wrapped := fmt.Errorf("running query: %w", te)

	got, ok := AsToolError(wrapped)
	require.True(t, ok)
	assert.Equal(t, CodeDriverError, got.Code)

	_, ok = AsToolError(errors.New("plain"))
	assert.False(t, ok)
}
