package validators_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitemap-backend/domain/core/entities"
	"sitemap-backend/domain/core/validators"
	"sitemap-backend/domain/core/valueobjects"
	"sitemap-backend/tests/fixtures"
)

func TestTreeValidator_WellFormed(t *testing.T) {
	issues := validators.NewTreeValidator().Validate(fixtures.SampleTree())

	assert.Empty(t, issues)
}

func TestTreeValidator_Empty(t *testing.T) {
	assert.Empty(t, validators.NewTreeValidator().Validate(nil))
}

func TestTreeValidator_ReportsIssues(t *testing.T) {
	// Arrange
	nodes := []*entities.Node{
		fixtures.NewNodeBuilder(1).MustBuild(),
		fixtures.NewNodeBuilder(2).WithParent(50).MustBuild(),
		fixtures.NewNodeBuilder(3).WithParent(4).MustBuild(),
		fixtures.NewNodeBuilder(4).WithParent(3).MustBuild(),
		fixtures.NewNodeBuilder(5).WithParent(3).MustBuild(),
	}

	// Act
	issues := validators.NewTreeValidator().Validate(nodes)

	// Assert
	codes := map[validators.IssueCode][]int64{}
	for _, issue := range issues {
		codes[issue.Code] = append(codes[issue.Code], issue.NodeID.Int64())
	}
	require.Contains(t, codes, validators.IssueMissingRoot)
	assert.Equal(t, []int64{1}, codes[validators.IssueOrphan])
	assert.Equal(t, []int64{2}, codes[validators.IssueDanglingParent])
	assert.Equal(t, []int64{3, 4}, codes[validators.IssueCycle], "node 5 hangs off the cycle but is not on it")
	assert.Equal(t, valueobjects.NodeID{}, issues[0].NodeID, "sitemap-wide issues sort first")
}
