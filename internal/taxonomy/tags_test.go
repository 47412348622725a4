package taxonomy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePath(t *testing.T) {
	require.NoError(t, ValidatePath("ml/deep/transformer"))
	require.NoError(t, ValidatePath("ML/Deep"))

	err := ValidatePath("")
	require.Error(t, err)

	err = ValidatePath("a/b/c/d/e/f")
	require.Error(t, err)

	err = ValidatePath("ml/Deep Learning")
	require.Error(t, err)

	err = ValidatePath("ml//python")
	require.Error(t, err)
}

func TestValidatePathMaxDepthBoundary(t *testing.T) {
	assert.NoError(t, ValidatePath("a/b/c/d/e"))
	assert.Error(t, ValidatePath("a/b/c/d/e/f"))
}
