package featgen_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/featgen"
)

func TestResolutionError(t *testing.T) {
	t.Run("NotFound", func(t *testing.T) {
		err := featgen.NewNotFoundError("c0_digest", "c0_PBE")
		assert.Equal(t, `featgen: "c0_digest" not found under c0_PBE`, err.Error())
		assert.True(t, errors.Is(err, featgen.ErrNotFound))
		assert.False(t, errors.Is(err, featgen.ErrAmbiguous))
		assert.Equal(t, 0, err.Count())
	})

	t.Run("RootScope", func(t *testing.T) {
		err := featgen.NewNotFoundError("c0_digest", "")
		assert.Equal(t, `featgen: "c0_digest" not found under <model>`, err.Error())
	})

	t.Run("Ambiguous", func(t *testing.T) {
		err := featgen.NewAmbiguousError("c0_name", "c0_Task", 2)
		assert.Equal(t, `featgen: "c0_name" is ambiguous under c0_Task (2 matches)`, err.Error())
		assert.True(t, errors.Is(err, featgen.ErrAmbiguous))
		assert.False(t, errors.Is(err, featgen.ErrNotFound))
	})

	t.Run("Helpers", func(t *testing.T) {
		wrapped := fmt.Errorf("wrapper: %w", featgen.NewNotFoundError("x", "y"))
		assert.True(t, featgen.IsResolutionError(wrapped))
		assert.True(t, featgen.IsNotFound(wrapped))
		assert.False(t, featgen.IsAmbiguous(wrapped))
		assert.True(t, featgen.IsAmbiguous(featgen.NewAmbiguousError("x", "y", 3)))
		assert.False(t, featgen.IsResolutionError(errors.New("other error")))
		assert.False(t, featgen.IsResolutionError(nil))
		assert.False(t, featgen.IsNotFound(nil))
	})
}

func TestDirectiveError(t *testing.T) {
	err := featgen.NewDirectiveError("|", ">= foo bar", "clause must be \"<op> <name>\"")
	assert.Contains(t, err.Error(), "featgen: invalid directive")
	assert.Contains(t, err.Error(), `">= foo bar"`)
	assert.True(t, errors.Is(err, featgen.ErrInvalidDirective))
	assert.True(t, featgen.IsDirectiveError(fmt.Errorf("wrapper: %w", err)))
	assert.False(t, featgen.IsDirectiveError(errors.New("other error")))
	assert.False(t, featgen.IsDirectiveError(nil))
}

func TestSolveError(t *testing.T) {
	underlying := errors.New("unsatisfiable")
	err := featgen.NewSolveError("compile", underlying)
	assert.Equal(t, "featgen: solver compile: unsatisfiable", err.Error())
	assert.True(t, errors.Is(err, underlying))
	assert.True(t, featgen.IsSolveError(fmt.Errorf("wrapper: %w", err)))
	assert.False(t, featgen.IsSolveError(nil))
}

func TestGenerationError(t *testing.T) {
	t.Run("WithTask", func(t *testing.T) {
		cause := featgen.NewNotFoundError("c0_kda", "c0_PBE")
		err := featgen.NewGenerationError("c0_PBE", "constrain", cause)
		assert.Equal(t, `featgen: generating c0_PBE (constrain): featgen: "c0_kda" not found under c0_PBE`, err.Error())
		assert.True(t, featgen.IsNotFound(err))
		assert.True(t, featgen.IsGenerationError(err))
	})

	t.Run("WithoutTask", func(t *testing.T) {
		err := featgen.NewGenerationError("", "enumerate", errors.New("boom"))
		assert.Equal(t, "featgen: generating (enumerate): boom", err.Error())
	})

	t.Run("NotGenerationError", func(t *testing.T) {
		assert.False(t, featgen.IsGenerationError(errors.New("other error")))
		assert.False(t, featgen.IsGenerationError(nil))
	})
}

func TestAggregateError(t *testing.T) {
	t.Run("NoErrors", func(t *testing.T) {
		assert.Nil(t, featgen.NewAggregateError())
		assert.Nil(t, featgen.NewAggregateError(nil, nil))
	})

	t.Run("SingleError", func(t *testing.T) {
		single := errors.New("single error")
		assert.Equal(t, single, featgen.NewAggregateError(nil, single))
	})

	t.Run("MultipleErrors", func(t *testing.T) {
		err1 := featgen.NewNotFoundError("a", "")
		err2 := errors.New("error 2")
		err := featgen.NewAggregateError(err1, err2)

		require.NotNil(t, err)
		assert.Contains(t, err.Error(), "multiple errors")
		assert.Contains(t, err.Error(), "error 2")
		assert.True(t, featgen.IsNotFound(err))
	})
}
