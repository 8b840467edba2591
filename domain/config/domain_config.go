package config

import (
	"fmt"
	"time"
)

// DomainConfig holds the configurable editor policy: layout box geometry,
// dirty tolerance and the limits applied to loaded sitemaps.
type DomainConfig struct {
	// Layout geometry
	NodeWidth       float64
	NodeHeight      float64
	RankSpacing     float64
	NodeSpacing     float64
	LayoutDirection string

	// Dirty tracking
	DirtyTolerance float64

	// OriginIsUnset makes a stored (0,0) count as "never placed" when
	// deciding whether to auto-layout on load.
	OriginIsUnset bool

	// Sitemap constraints
	MaxNodesPerSitemap int
	MaxTitleLength     int
	MaxPathLength      int

	// Session constraints
	SessionTTL time.Duration
}

// DefaultDomainConfig returns the default domain configuration
func DefaultDomainConfig() *DomainConfig {
	return &DomainConfig{
		NodeWidth:       200,
		NodeHeight:      60,
		RankSpacing:     100,
		NodeSpacing:     40,
		LayoutDirection: "LR",

		DirtyTolerance: 1,
		OriginIsUnset:  true,

		MaxNodesPerSitemap: 5000,
		MaxTitleLength:     300,
		MaxPathLength:      2048,

		SessionTTL: 12 * time.Hour,
	}
}

// ProductionDomainConfig returns production-specific configuration
func ProductionDomainConfig() *DomainConfig {
	config := DefaultDomainConfig()
	config.MaxNodesPerSitemap = 2000
	config.SessionTTL = 4 * time.Hour
	return config
}

// DevelopmentDomainConfig returns development-specific configuration
func DevelopmentDomainConfig() *DomainConfig {
	config := DefaultDomainConfig()
	config.MaxNodesPerSitemap = 100000
	return config
}

// LoadDomainConfig loads domain configuration based on environment
func LoadDomainConfig(environment string) *DomainConfig {
	switch environment {
	case "production":
		return ProductionDomainConfig()
	case "development":
		return DevelopmentDomainConfig()
	default:
		return DefaultDomainConfig()
	}
}

// Validate checks if the configuration is valid
func (c *DomainConfig) Validate() error {
	if c.NodeWidth <= 0 || c.NodeHeight <= 0 {
		return fmt.Errorf("node box must have positive dimensions, got %vx%v", c.NodeWidth, c.NodeHeight)
	}
	if c.RankSpacing < 0 || c.NodeSpacing < 0 {
		return fmt.Errorf("layout spacing cannot be negative")
	}
	if c.LayoutDirection != "LR" && c.LayoutDirection != "TB" {
		return fmt.Errorf("layout direction must be LR or TB, got %q", c.LayoutDirection)
	}
	if c.DirtyTolerance < 0 {
		return fmt.Errorf("dirty tolerance cannot be negative")
	}
	if c.MaxNodesPerSitemap <= 0 {
		return fmt.Errorf("max nodes per sitemap must be positive")
	}
	return nil
}
