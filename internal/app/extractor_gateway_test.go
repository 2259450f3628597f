package app

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/yourusername/clipq-go/internal/domain"
)

func TestSelectStrategy(t *testing.T) {
	tests := []struct {
		trim      bool
		available bool
		expected  domain.StrategyKind
	}{
		{true, true, domain.StrategyCLI},
		{true, false, domain.StrategyLibrary},
		{false, true, domain.StrategyLibrary},
		{false, false, domain.StrategyLibrary},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, SelectStrategy(tt.trim, tt.available),
			"trim=%v available=%v", tt.trim, tt.available)
	}
}

func TestExtractorGateway_ProbesEachSelection(t *testing.T) {
	lib := &fakeExtractor{kind: domain.StrategyLibrary}
	cli := &fakeExtractor{kind: domain.StrategyCLI}
	available := false
	g := NewExtractorGateway(lib, cli, func() bool { return available })

	assert.Same(t, lib, g.Select(true))
	available = true
	assert.Same(t, cli, g.Select(true))
	assert.Same(t, lib, g.Select(false))
}

func TestExtractorGateway_NoCLI(t *testing.T) {
	lib := &fakeExtractor{kind: domain.StrategyLibrary}
	g := NewExtractorGateway(lib, nil, func() bool { return true })

	assert.Same(t, lib, g.Select(true))
}
