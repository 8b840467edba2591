package layout

import (
	"fmt"
	"strings"

	"sitemap-backend/domain/config"
)

// Direction is the axis ranks advance along
type Direction string

const (
	// LeftToRight places the root on the left and ranks advance along x
	LeftToRight Direction = "LR"
	// TopToBottom places the root at the top and ranks advance along y
	TopToBottom Direction = "TB"
)

// ParseDirection accepts LR or TB, case-insensitively. Empty means LR.
func ParseDirection(raw string) (Direction, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "", string(LeftToRight):
		return LeftToRight, nil
	case string(TopToBottom):
		return TopToBottom, nil
	default:
		return "", fmt.Errorf("unknown layout direction %q", raw)
	}
}

// Options is the box geometry and spacing policy of the layout
type Options struct {
	NodeWidth   float64
	NodeHeight  float64
	RankSpacing float64
	NodeSpacing float64
}

// DefaultOptions returns the editor's standard geometry: 200x60 boxes,
// 100 between ranks, 40 between siblings
func DefaultOptions() Options {
	return Options{
		NodeWidth:   200,
		NodeHeight:  60,
		RankSpacing: 100,
		NodeSpacing: 40,
	}
}

// OptionsFromConfig reads the geometry from domain configuration
func OptionsFromConfig(cfg *config.DomainConfig) Options {
	if cfg == nil {
		return DefaultOptions()
	}
	return Options{
		NodeWidth:   cfg.NodeWidth,
		NodeHeight:  cfg.NodeHeight,
		RankSpacing: cfg.RankSpacing,
		NodeSpacing: cfg.NodeSpacing,
	}
}

// axes resolves box extents along the rank axis and the sibling axis
func (o Options) axes(dir Direction) (rankBox, crossBox float64) {
	if dir == TopToBottom {
		return o.NodeHeight, o.NodeWidth
	}
	return o.NodeWidth, o.NodeHeight
}
