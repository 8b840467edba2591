package fixtures

import (
	"time"

	"sitemap-backend/domain/core/aggregates"
	"sitemap-backend/domain/core/entities"
	"sitemap-backend/domain/core/valueobjects"
)

// DefaultSitemapID is the sitemap every builder uses unless told otherwise
const DefaultSitemapID int64 = 1

// NodeBuilder helps create test nodes with default values
type NodeBuilder struct {
	id         int64
	sitemapID  int64
	title      string
	path       string
	parentID   *int64
	isRoot     bool
	position   *valueobjects.Position
	status     entities.NodeStatus
	attributes map[string]string
}

// NewNodeBuilder starts a planned, unpositioned, parentless page
func NewNodeBuilder(id int64) *NodeBuilder {
	return &NodeBuilder{
		id:        id,
		sitemapID: DefaultSitemapID,
		title:     "Page",
		status:    entities.StatusPlanned,
	}
}

func (b *NodeBuilder) WithSitemapID(id int64) *NodeBuilder {
	b.sitemapID = id
	return b
}

func (b *NodeBuilder) WithTitle(title string) *NodeBuilder {
	b.title = title
	return b
}

func (b *NodeBuilder) WithPath(path string) *NodeBuilder {
	b.path = path
	return b
}

func (b *NodeBuilder) WithParent(parent int64) *NodeBuilder {
	b.parentID = &parent
	return b
}

func (b *NodeBuilder) AsRoot() *NodeBuilder {
	b.isRoot = true
	b.parentID = nil
	return b
}

func (b *NodeBuilder) WithPosition(x, y float64) *NodeBuilder {
	pos := valueobjects.MustPosition(x, y)
	b.position = &pos
	return b
}

func (b *NodeBuilder) WithStatus(status entities.NodeStatus) *NodeBuilder {
	b.status = status
	return b
}

func (b *NodeBuilder) WithAttribute(key, value string) *NodeBuilder {
	if b.attributes == nil {
		b.attributes = map[string]string{}
	}
	b.attributes[key] = value
	return b
}

func (b *NodeBuilder) Build() (*entities.Node, error) {
	id, err := valueobjects.NewNodeID(b.id)
	if err != nil {
		return nil, err
	}
	sitemapID, err := valueobjects.NewSitemapID(b.sitemapID)
	if err != nil {
		return nil, err
	}
	snap := entities.NodeSnapshot{
		ID:         id,
		SitemapID:  sitemapID,
		Title:      b.title,
		Path:       b.path,
		IsRoot:     b.isRoot,
		Position:   b.position,
		Status:     b.status,
		Attributes: b.attributes,
		UpdatedAt:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	if b.parentID != nil {
		parent, err := valueobjects.NewNodeID(*b.parentID)
		if err != nil {
			return nil, err
		}
		snap.ParentID = &parent
	}
	return entities.ReconstructNode(snap)
}

func (b *NodeBuilder) MustBuild() *entities.Node {
	node, err := b.Build()
	if err != nil {
		panic(err)
	}
	return node
}

// SampleTree returns an unpositioned sitemap:
//
//	1 (root)
//	├── 2
//	│   ├── 4
//	│   └── 5
//	└── 3
func SampleTree() []*entities.Node {
	return []*entities.Node{
		NewNodeBuilder(1).AsRoot().WithTitle("Home").WithPath("/").MustBuild(),
		NewNodeBuilder(2).WithParent(1).WithTitle("Services").WithPath("/services").MustBuild(),
		NewNodeBuilder(3).WithParent(1).WithTitle("About").WithPath("/about").MustBuild(),
		NewNodeBuilder(4).WithParent(2).WithTitle("Plumbing").WithPath("/services/plumbing").MustBuild(),
		NewNodeBuilder(5).WithParent(2).WithTitle("Heating").WithPath("/services/heating").MustBuild(),
	}
}

// PositionedTree is SampleTree with every node already placed
func PositionedTree() []*entities.Node {
	return []*entities.Node{
		NewNodeBuilder(1).AsRoot().WithTitle("Home").WithPosition(0, 100).MustBuild(),
		NewNodeBuilder(2).WithParent(1).WithTitle("Services").WithPosition(300, 50).MustBuild(),
		NewNodeBuilder(3).WithParent(1).WithTitle("About").WithPosition(300, 200).MustBuild(),
		NewNodeBuilder(4).WithParent(2).WithTitle("Plumbing").WithPosition(600, 0).MustBuild(),
		NewNodeBuilder(5).WithParent(2).WithTitle("Heating").WithPosition(600, 100).MustBuild(),
	}
}

// MustSitemap wraps nodes in the aggregate for the default sitemap
func MustSitemap(nodes []*entities.Node) *aggregates.Sitemap {
	s, err := aggregates.NewSitemap(valueobjects.MustSitemapID(DefaultSitemapID), nodes)
	if err != nil {
		panic(err)
	}
	return s
}

// IDs converts raw integers to node ids
func IDs(raw ...int64) []valueobjects.NodeID {
	out := make([]valueobjects.NodeID, len(raw))
	for i, r := range raw {
		out[i] = valueobjects.MustNodeID(r)
	}
	return out
}
