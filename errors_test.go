package stackgen_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/stackgen"
)

func TestConflictError(t *testing.T) {
	t.Run("Error", func(t *testing.T) {
		err := stackgen.NewConflictError("backend a requires a database", "backend", "database")
		assert.Equal(t, "stackgen: conflict on backend, database: backend a requires a database", err.Error())
	})

	t.Run("Is", func(t *testing.T) {
		err := stackgen.NewConflictError("x", "backend")
		assert.True(t, errors.Is(err, stackgen.ErrConflict))
		assert.False(t, errors.Is(err, stackgen.ErrSync))
	})

	t.Run("IsConflict", func(t *testing.T) {
		err := stackgen.NewConflictError("x", "backend")
		assert.True(t, stackgen.IsConflict(err))
		assert.True(t, stackgen.IsConflict(fmt.Errorf("wrapper: %w", err)))
		assert.True(t, stackgen.IsConflict(stackgen.ErrConflict))
		assert.False(t, stackgen.IsConflict(errors.New("other error")))
		assert.False(t, stackgen.IsConflict(nil))
	})

	t.Run("As", func(t *testing.T) {
		var target *stackgen.ConflictError
		require.True(t, errors.As(fmt.Errorf("resolve: %w", stackgen.NewConflictError("r", "a", "b")), &target))
		assert.Equal(t, []string{"a", "b"}, target.Options)
		assert.Equal(t, "r", target.Reason)
	})
}

func TestCompositionError(t *testing.T) {
	t.Run("duplicate_path", func(t *testing.T) {
		err := stackgen.NewDuplicatePathError("server/main.go", "chi-main", "echo-main")
		assert.Equal(t, `stackgen: duplicate path "server/main.go" produced by fragments "chi-main" and "echo-main"`, err.Error())
		assert.True(t, stackgen.IsComposition(err))
		assert.True(t, errors.Is(err, stackgen.ErrComposition))
	})

	t.Run("unresolved_placeholder", func(t *testing.T) {
		cause := errors.New("unknown option")
		err := stackgen.NewPlaceholderError("readme", "README.md", "colour", cause)
		assert.Equal(t, `stackgen: unresolved placeholder "README.md" in fragment "readme": {{colour}}: unknown option`, err.Error())
		assert.ErrorIs(t, err, cause)
		assert.Equal(t, stackgen.UnresolvedPlaceholder, err.Kind)
	})

	t.Run("kind_string", func(t *testing.T) {
		assert.Equal(t, "format failed", stackgen.FormatFailed.String())
		assert.Equal(t, "unknown", stackgen.CompositionKind(0).String())
	})
}

func TestSyncError(t *testing.T) {
	t.Run("cycle", func(t *testing.T) {
		err := stackgen.NewCycleError([]string{"A", "B", "A"})
		assert.Equal(t, "stackgen: contract cycle: A -> B -> A", err.Error())
		assert.True(t, stackgen.IsSync(err))
	})

	t.Run("message", func(t *testing.T) {
		err := stackgen.NewSyncError("User", "unknown reference Team", nil)
		assert.Equal(t, "stackgen: contract User: unknown reference Team", err.Error())
		assert.True(t, errors.Is(err, stackgen.ErrSync))
		assert.False(t, stackgen.IsConflict(err))
	})
}

func TestInvalidSelectionError(t *testing.T) {
	err := &stackgen.InvalidSelectionError{Option: "database", Value: "oracle", Allowed: []string{"sqlite", "postgres"}}
	assert.Equal(t, `stackgen: invalid value "oracle" for option "database" (allowed: sqlite, postgres)`, err.Error())
	assert.True(t, stackgen.IsInvalidSelection(err))

	unknown := &stackgen.InvalidSelectionError{Option: "colour"}
	assert.Equal(t, `stackgen: unknown option "colour"`, unknown.Error())
}

func TestAggregateError(t *testing.T) {
	assert.NoError(t, stackgen.NewAggregateError(nil, nil))

	single := errors.New("one")
	assert.Equal(t, single, stackgen.NewAggregateError(nil, single))

	second := errors.New("two")
	err := stackgen.NewAggregateError(single, nil, second)
	require.Error(t, err)
	assert.Equal(t, "stackgen: multiple errors:\n  [1] one\n  [2] two", err.Error())
	assert.ErrorIs(t, err, second)
}

func TestCacheKey(t *testing.T) {
	assert.Equal(t, "identity:token:abc", stackgen.CacheKey("identity", "token", "abc"))
}
