package taxonomy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Fortemi/fortemi-sub011/internal/storage"
)

func TestInverseOf(t *testing.T) {
	assert.Equal(t, storage.RelationNarrower, inverseOf(storage.RelationBroader))
	assert.Equal(t, storage.RelationBroader, inverseOf(storage.RelationNarrower))
	assert.Equal(t, storage.RelationRelated, inverseOf(storage.RelationRelated))
	assert.Equal(t, storage.RelationExactMatch, inverseOf(storage.RelationExactMatch))
}
