package valueobjects

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"sitemap-backend/domain/config"
	pkgerrors "sitemap-backend/pkg/errors"
)

// PageContent is the human-facing part of a sitemap node: its title and
// the URL path it will be published under
type PageContent struct {
	title string
	path  string
}

// NewPageContent creates content with validation using default configuration
func NewPageContent(title, path string) (PageContent, error) {
	return NewPageContentWithConfig(title, path, config.DefaultDomainConfig())
}

// NewPageContentWithConfig creates content with validation and configuration
func NewPageContentWithConfig(title, path string, cfg *config.DomainConfig) (PageContent, error) {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}

	title = strings.TrimSpace(title)
	path = strings.TrimSpace(path)

	// Planned pages may not have a title yet.
	if utf8.RuneCountInString(title) > cfg.MaxTitleLength {
		return PageContent{}, pkgerrors.NewValidationError(fmt.Sprintf("title exceeds maximum length of %d characters", cfg.MaxTitleLength))
	}
	if len(path) > cfg.MaxPathLength {
		return PageContent{}, pkgerrors.NewValidationError(fmt.Sprintf("path exceeds maximum length of %d bytes", cfg.MaxPathLength))
	}
	if path != "" && !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	return PageContent{title: title, path: path}, nil
}

// Title returns the page title
func (c PageContent) Title() string {
	return c.title
}

// Path returns the page path, empty when not yet assigned
func (c PageContent) Path() string {
	return c.path
}

// Equals checks if two contents are equal
func (c PageContent) Equals(other PageContent) bool {
	return c.title == other.title && c.path == other.path
}
