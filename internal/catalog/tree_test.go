package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-order-fulfillment/internal/orders"
)

func strPtr(s string) *string { return &s }

func sample() []orders.Category {
	return []orders.Category{
		{ID: "shirts", ParentID: strPtr("apparel"), Name: "Shirts"},
		{ID: "apparel", Name: "Apparel"},
		{ID: "tees", ParentID: strPtr("shirts"), Name: "T-Shirts"},
		{ID: "books", Name: "Books"},
		{ID: "shoes", ParentID: strPtr("apparel"), Name: "Shoes"},
	}
}

func TestBuild(t *testing.T) {
	tree, err := Build(sample())
	require.NoError(t, err)

	require.Len(t, tree.Nodes, 5)
	require.Len(t, tree.Roots, 2)
	assert.Equal(t, "apparel", tree.Nodes[tree.Roots[0]].ID)
	assert.Equal(t, "books", tree.Nodes[tree.Roots[1]].ID)

	assert.Equal(t, []string{"shirts", "apparel"}, tree.Ancestors("tees"))
	assert.Empty(t, tree.Ancestors("books"))
	assert.Nil(t, tree.Ancestors("missing"))
	assert.Equal(t, []string{"shirts", "shoes", "tees"}, tree.Descendants("apparel"))
}

func TestInAny(t *testing.T) {
	tree, err := Build(sample())
	require.NoError(t, err)

	set := map[string]bool{"apparel": true}
	assert.True(t, tree.InAny("tees", set))
	assert.True(t, tree.InAny("apparel", set))
	assert.False(t, tree.InAny("books", set))

	var none *Tree
	assert.True(t, none.InAny("apparel", set))
	assert.False(t, none.InAny("tees", set))
}

func TestBuildDetectsCycle(t *testing.T) {
	_, err := Build([]orders.Category{
		{ID: "a", ParentID: strPtr("b")},
		{ID: "b", ParentID: strPtr("a")},
		{ID: "root"},
	})
	assert.Error(t, err)
}

func TestViews(t *testing.T) {
	tree, err := Build(sample())
	require.NoError(t, err)

	views := tree.Views()
	require.Len(t, views, 2)
	assert.Equal(t, "Apparel", views[0].Name)
	require.Len(t, views[0].Children, 2)
	assert.Equal(t, "tees", views[0].Children[0].Children[0].ID)
}
