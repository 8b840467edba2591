package valueobjects

import (
	"errors"
	"fmt"
	"strconv"
)

// NodeID is a value object wrapping the integer identifier a sitemap node
// carries in the content database.
type NodeID struct {
	value int64
}

// NewNodeID creates a NodeID, rejecting non-positive values
func NewNodeID(value int64) (NodeID, error) {
	if value <= 0 {
		return NodeID{}, errors.New("node ID must be a positive integer")
	}
	return NodeID{value: value}, nil
}

// MustNodeID is NewNodeID for literals and fixtures
func MustNodeID(value int64) NodeID {
	id, err := NewNodeID(value)
	if err != nil {
		panic(err)
	}
	return id
}

// ParseNodeID parses a decimal node id, as found in URL path segments
func ParseNodeID(raw string) (NodeID, error) {
	if raw == "" {
		return NodeID{}, errors.New("node ID cannot be empty")
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return NodeID{}, fmt.Errorf("node ID must be an integer: %w", err)
	}
	return NewNodeID(v)
}

// Int64 returns the raw identifier
func (id NodeID) Int64() int64 {
	return id.value
}

// String returns the decimal representation of the NodeID
func (id NodeID) String() string {
	return strconv.FormatInt(id.value, 10)
}

// Equals checks if two NodeIDs are equal
func (id NodeID) Equals(other NodeID) bool {
	return id.value == other.value
}

// IsZero checks if the NodeID is the zero value
func (id NodeID) IsZero() bool {
	return id.value == 0
}

// MarshalJSON implements json.Marshaler
func (id NodeID) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatInt(id.value, 10)), nil
}

// UnmarshalJSON implements json.Unmarshaler
func (id *NodeID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	v, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return errors.New("NodeID must be an integer")
	}
	id.value = v
	return nil
}

// SitemapID identifies the sitemap a node belongs to
type SitemapID struct {
	value int64
}

// NewSitemapID creates a SitemapID, rejecting non-positive values
func NewSitemapID(value int64) (SitemapID, error) {
	if value <= 0 {
		return SitemapID{}, errors.New("sitemap ID must be a positive integer")
	}
	return SitemapID{value: value}, nil
}

// MustSitemapID is NewSitemapID for literals and fixtures
func MustSitemapID(value int64) SitemapID {
	id, err := NewSitemapID(value)
	if err != nil {
		panic(err)
	}
	return id
}

// ParseSitemapID parses a decimal sitemap id
func ParseSitemapID(raw string) (SitemapID, error) {
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return SitemapID{}, fmt.Errorf("sitemap ID must be an integer: %w", err)
	}
	return NewSitemapID(v)
}

func (id SitemapID) Int64() int64                { return id.value }
func (id SitemapID) String() string              { return strconv.FormatInt(id.value, 10) }
func (id SitemapID) IsZero() bool                { return id.value == 0 }
func (id SitemapID) Equals(other SitemapID) bool { return id.value == other.value }

// MarshalJSON implements json.Marshaler
func (id SitemapID) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatInt(id.value, 10)), nil
}

// UnmarshalJSON implements json.Unmarshaler
func (id *SitemapID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	v, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return errors.New("SitemapID must be an integer")
	}
	id.value = v
	return nil
}

// EdgeID identifies a derived parent-child edge. It is a pure function of
// the (parent, child) pair so repeated derivations agree.
type EdgeID string

// NewEdgeID builds the edge id for a parent-child pair
func NewEdgeID(parent, child NodeID) EdgeID {
	return EdgeID(fmt.Sprintf("e%d-%d", parent.value, child.value))
}

func (id EdgeID) String() string { return string(id) }
