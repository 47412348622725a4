package embedding

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Fortemi/fortemi-sub011/internal/storage"
)

func TestDetectStrategy(t *testing.T) {
	tests := []struct {
		name string
		doc  DocType
		want storage.ChunkStrategy
	}{
		{"code", DocTypeCode, storage.StrategySyntactic},
		{"prose", DocTypeProse, storage.StrategySemantic},
		{"generic", DocTypeGeneric, storage.StrategyFixed},
		{"unknown", DocType("bogus"), storage.StrategyFixed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectStrategy(tt.doc))
		})
	}
}

func TestNewChunkerDispatch(t *testing.T) {
	assert.Equal(t, storage.StrategySyntactic, NewChunker(storage.StrategySyntactic, 200, 0).Strategy())
	assert.Equal(t, storage.StrategySemantic, NewChunker(storage.StrategySemantic, 200, 20).Strategy())
	assert.Equal(t, storage.StrategyFixed, NewChunker(storage.StrategyFixed, 200, 20).Strategy())
}
