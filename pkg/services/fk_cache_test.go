package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbcanvas/dbcanvas-engine/pkg/adapters/datasource"
	"github.com/dbcanvas/dbcanvas-engine/pkg/models"
)

// countingInference wraps a fixed result and counts Discover calls.
type countingInference struct {
	calls  int
	result map[string][]models.FKMapping
}

func (c *countingInference) Discover(tables []datasource.TableMetadata) map[string][]models.FKMapping {
	c.calls++
	return c.result
}

func TestFKMappingCache_SingleComputePerTableSet(t *testing.T) {
	engine := &countingInference{
		result: map[string][]models.FKMapping{
			"Orders": {{SourceTable: "Orders", SourceColumn: "CustomerID", TargetTable: "Customers"}},
		},
	}
	cache := NewFKMappingCache()
	tables := []datasource.TableMetadata{
		makeTable("Customers", "CustomerID"),
		makeTable("Orders", "CustomerID", "Total"),
	}

	first := cache.GetOrCompute(tables, engine)
	second := cache.GetOrCompute(tables, engine)

	assert.Equal(t, 1, engine.calls, "same table set must be computed once")
	assert.Equal(t, first, second)
	assert.Equal(t, 1, cache.Len())
}

func TestFKMappingCache_TableOrderIrrelevant(t *testing.T) {
	engine := &countingInference{result: map[string][]models.FKMapping{}}
	cache := NewFKMappingCache()

	a := makeTable("Customers", "CustomerID")
	b := makeTable("Orders", "CustomerID", "Total")

	cache.GetOrCompute([]datasource.TableMetadata{a, b}, engine)
	cache.GetOrCompute([]datasource.TableMetadata{b, a}, engine)

	assert.Equal(t, 1, engine.calls, "table order must not change the fingerprint")
	assert.Equal(t, 1, cache.Len())
}

func TestFKMappingCache_DistinctSetsComputedSeparately(t *testing.T) {
	engine := &countingInference{result: map[string][]models.FKMapping{}}
	cache := NewFKMappingCache()

	cache.GetOrCompute([]datasource.TableMetadata{makeTable("Customers", "CustomerID")}, engine)
	cache.GetOrCompute([]datasource.TableMetadata{makeTable("Customers", "CustomerID", "Name")}, engine)

	require.Equal(t, 2, engine.calls, "column changes produce a new fingerprint")
	assert.Equal(t, 2, cache.Len())
}
