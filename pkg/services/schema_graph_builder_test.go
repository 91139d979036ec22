package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbcanvas/dbcanvas-engine/pkg/adapters/datasource"
	"github.com/dbcanvas/dbcanvas-engine/pkg/models"
)

func newSchemaBuilder() *SchemaGraphBuilder {
	return NewSchemaGraphBuilder(NewInferenceEngine(nil), NewFKMappingCache(), nil, nil)
}

func TestSchemaBuild_NodesAndContainsEdges(t *testing.T) {
	builder := newSchemaBuilder()
	tables := []datasource.TableMetadata{
		makeTable("billing_invoices", "InvoiceNumber", "Total"),
		makeTable("billing_payments", "PaymentID"),
		makeTable("Suppliers", "SupplierID", "Name"),
	}

	graph, err := builder.Build("ds-1", tables)
	require.NoError(t, err)

	assert.Equal(t, "ds-1", graph.DatasourceID)
	assert.Equal(t, models.GraphModeSchema, graph.Mode)

	// Two products (namespace "billing" plus the default group) and three tables.
	billing := graph.NodeByKey(ProductNodeKey("billing"))
	require.NotNil(t, billing)
	assert.Equal(t, models.NodeTypeProduct, billing.Type)
	assert.Equal(t, 2, billing.Properties["table_count"])

	general := graph.NodeByKey(ProductNodeKey(DefaultProductName))
	require.NotNil(t, general)
	assert.Equal(t, 1, general.Properties["table_count"])

	suppliers := graph.NodeByKey(TableNodeKey("Suppliers"))
	require.NotNil(t, suppliers)
	assert.Equal(t, models.NodeTypeTable, suppliers.Type)
	assert.Equal(t, "Suppliers (2 columns)", suppliers.Title)
	assert.Equal(t, 2, suppliers.Properties["column_count"])

	var contains []models.GraphEdge
	for _, e := range graph.Edges {
		if e.Type == models.EdgeTypeContains {
			contains = append(contains, e)
		}
	}
	require.Len(t, contains, 3, "one contains edge per table")
	for _, e := range contains {
		assert.InDelta(t, 1.0, e.Confidence, 1e-9)
		assert.True(t, e.IsActive)
	}
}

func TestSchemaBuild_FKEdgePerColumn(t *testing.T) {
	builder := newSchemaBuilder()
	tables := []datasource.TableMetadata{
		makeTable("Supplier", "Name"),
		makeTable("Contract", "SupplierID", "SupplierKey"),
	}

	graph, err := builder.Build("ds-1", tables)
	require.NoError(t, err)

	var fks []models.GraphEdge
	for _, e := range graph.Edges {
		if e.Type == models.EdgeTypeForeignKey {
			fks = append(fks, e)
		}
	}

	// Both columns target the same table but keep separate edges so the
	// driving column survives.
	require.Len(t, fks, 2)
	labels := []string{fks[0].Label, fks[1].Label}
	assert.ElementsMatch(t, []string{"SupplierID", "SupplierKey"}, labels)
	for _, e := range fks {
		assert.Equal(t, TableNodeKey("Contract"), e.SourceKey)
		assert.Equal(t, TableNodeKey("Supplier"), e.TargetKey)
		assert.Equal(t, models.DiscoveryMethodSuffixPattern, e.Method)
	}
}

func TestSchemaBuild_IdempotentAcrossRuns(t *testing.T) {
	builder := newSchemaBuilder()
	tables := []datasource.TableMetadata{
		makeTable("Supplier", "SupplierID"),
		makeTable("PurchaseOrder", "PONumber", "SupplierID"),
	}

	// Reversed input order must not change the output.
	first, err := builder.Build("ds-1", tables)
	require.NoError(t, err)
	second, err := builder.Build("ds-1", []datasource.TableMetadata{tables[1], tables[0]})
	require.NoError(t, err)

	assert.Equal(t, first.Nodes, second.Nodes)
	assert.Equal(t, first.Edges, second.Edges)
}

func TestSchemaBuild_DropsEdgeToUnknownTable(t *testing.T) {
	builder := newSchemaBuilder()
	// "InvoicingParty" role-maps to "Supplier", which is not in the set.
	tables := []datasource.TableMetadata{
		makeTable("Invoice", "InvoicingParty"),
	}

	graph, err := builder.Build("ds-1", tables)
	require.NoError(t, err)

	for _, e := range graph.Edges {
		assert.NotEqual(t, models.EdgeTypeForeignKey, e.Type)
	}
}

func TestSchemaBuild_ZeroColumnTable(t *testing.T) {
	builder := newSchemaBuilder()

	graph, err := builder.Build("ds-1", []datasource.TableMetadata{{TableName: "Empty"}})
	require.NoError(t, err)

	node := graph.NodeByKey(TableNodeKey("Empty"))
	require.NotNil(t, node)
	assert.Equal(t, 0, node.Properties["column_count"])
	require.Len(t, graph.Edges, 1)
	assert.Equal(t, models.EdgeTypeContains, graph.Edges[0].Type)
}

func TestSchemaBuild_EmptyTableSet(t *testing.T) {
	builder := newSchemaBuilder()

	graph, err := builder.Build("ds-1", nil)
	require.NoError(t, err)

	assert.Empty(t, graph.Nodes)
	assert.Empty(t, graph.Edges)
}
