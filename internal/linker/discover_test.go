package linker

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestThresholdDefault(t *testing.T) {
	l := &Linker{}
	assert.Equal(t, DefaultThreshold, l.threshold())
}

func TestThresholdConfigured(t *testing.T) {
	l := &Linker{Threshold: 0.85}
	assert.Equal(t, 0.85, l.threshold())
}

func TestEfSearchDefault(t *testing.T) {
	l := &Linker{}
	assert.Equal(t, 64, l.efSearch())
}

func TestEfSearchConfigured(t *testing.T) {
	l := &Linker{EfSearch: 200}
	assert.Equal(t, 200, l.efSearch())
}

func TestDiscoverTopKMatchesSpec(t *testing.T) {
	assert.Equal(t, 20, DiscoverTopK)
}
