package app

import (
	"github.com/yourusername/clipq-go/internal/domain"
)

// SelectStrategy picks the extraction strategy for an entry. The CLI
// strategy is used only when a trim is requested and the tool is installed.
func SelectStrategy(trimRequested, toolAvailable bool) domain.StrategyKind {
	if trimRequested && toolAvailable {
		return domain.StrategyCLI
	}
	return domain.StrategyLibrary
}

// ExtractorGateway hands out the extractor an entry should use
type ExtractorGateway struct {
	library       domain.Extractor
	cli           domain.Extractor
	toolAvailable func() bool
}

// NewExtractorGateway creates a gateway over both strategies. toolAvailable
// is evaluated on every selection so installing yt-dlp takes effect without
// a restart; a nil cli disables that strategy.
func NewExtractorGateway(library, cli domain.Extractor, toolAvailable func() bool) *ExtractorGateway {
	if toolAvailable == nil || cli == nil {
		toolAvailable = func() bool { return false }
	}
	return &ExtractorGateway{
		library:       library,
		cli:           cli,
		toolAvailable: toolAvailable,
	}
}

// Select returns the extractor for an entry with or without a trim range
func (g *ExtractorGateway) Select(trimRequested bool) domain.Extractor {
	if SelectStrategy(trimRequested, g.toolAvailable()) == domain.StrategyCLI {
		return g.cli
	}
	return g.library
}
