package linker

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Fortemi/fortemi-sub011/internal/storage"
)

func TestEdgeFilterKind(t *testing.T) {
	assert.Equal(t, storage.LinkSemantic, EdgeSemantic.kind())
	assert.Equal(t, storage.LinkManual, EdgeManual.kind())
	assert.Equal(t, storage.LinkKind(""), EdgeAll.kind())
}
