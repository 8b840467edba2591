package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleSeed = `
sitemap: 3
root:
  id: 1
  title: Home
  path: /
  children:
    - id: 2
      title: Services
      children:
        - id: 4
          title: Plumbing
        - id: 5
          title: Heating
    - id: 3
      title: About
      x: 10
      y: 20
`

func writeSeed(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestSeedFile_FlattensParentFirst(t *testing.T) {
	file, err := readSeedFile(writeSeed(t, sampleSeed))
	require.NoError(t, err)

	nodes, err := file.nodes()

	require.NoError(t, err)
	require.Len(t, nodes, 5)
	ids := make([]int64, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID().Int64()
	}
	assert.Equal(t, []int64{1, 2, 4, 5, 3}, ids)
	assert.True(t, nodes[0].IsRoot())
	parent, ok := nodes[2].ParentID()
	require.True(t, ok)
	assert.Equal(t, int64(2), parent.Int64())
	assert.True(t, nodes[4].HasPosition())
	assert.False(t, nodes[1].HasPosition())
}

func TestSeedFile_RejectsDuplicateIDs(t *testing.T) {
	file, err := readSeedFile(writeSeed(t, "sitemap: 1\nroot:\n  id: 1\n  children:\n    - id: 1\n"))
	require.NoError(t, err)

	_, err = file.nodes()

	assert.ErrorContains(t, err, "appears twice")
}

func TestSeedLayoutDescendants(t *testing.T) {
	db := filepath.Join(t.TempDir(), "sitemap.db")

	out, err := run(t, "--db", db, "seed", writeSeed(t, sampleSeed))
	require.NoError(t, err)
	assert.Contains(t, out, "seeded 5 pages into sitemap 3")

	out, err = run(t, "--db", db, "--sitemap", "3", "descendants", "2")
	require.NoError(t, err)
	assert.Equal(t, []string{"2", "4", "5"}, strings.Fields(out))

	out, err = run(t, "--db", db, "--sitemap", "3", "layout", "--direction", "TB", "--write")
	require.NoError(t, err)
	var result struct {
		Direction string `json:"direction"`
		Nodes     []struct {
			ID       int64 `json:"id"`
			Position struct {
				X float64 `json:"x"`
				Y float64 `json:"y"`
			} `json:"position"`
		} `json:"nodes"`
		Edges []struct {
			ID string `json:"id"`
		} `json:"edges"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, "TB", result.Direction)
	require.Len(t, result.Nodes, 5)
	assert.Len(t, result.Edges, 4)
	for _, n := range result.Nodes {
		if n.ID == 1 {
			assert.Equal(t, 0.0, n.Position.Y, "the root sits on the first rank")
		} else {
			assert.Greater(t, n.Position.Y, 0.0)
		}
	}

	// a second run reproduces the stored layout
	again, err := run(t, "--db", db, "--sitemap", "3", "layout", "--direction", "TB")
	require.NoError(t, err)
	assert.JSONEq(t, out, again)
}

func TestLayout_RejectsUnknownDirection(t *testing.T) {
	_, err := run(t, "--db", filepath.Join(t.TempDir(), "x.db"), "layout", "--direction", "RL")
	assert.ErrorContains(t, err, "unknown layout direction")
}
