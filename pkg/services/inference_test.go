package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbcanvas/dbcanvas-engine/pkg/adapters/datasource"
	"github.com/dbcanvas/dbcanvas-engine/pkg/models"
)

func makeTable(name string, columns ...string) datasource.TableMetadata {
	t := datasource.TableMetadata{TableName: name}
	for i, c := range columns {
		t.Columns = append(t.Columns, datasource.ColumnMetadata{
			ColumnName:      c,
			DataType:        "text",
			OrdinalPosition: i + 1,
		})
	}
	return t
}

func TestDiscover_EmptyInput(t *testing.T) {
	engine := NewInferenceEngine(nil)

	result := engine.Discover(nil)
	require.NotNil(t, result)
	assert.Empty(t, result)

	result = engine.Discover([]datasource.TableMetadata{})
	require.NotNil(t, result)
	assert.Empty(t, result)
}

func TestDiscover_ZeroColumnTable(t *testing.T) {
	engine := NewInferenceEngine(nil)

	result := engine.Discover([]datasource.TableMetadata{
		{TableName: "Empty"},
	})

	require.Contains(t, result, "Empty")
	assert.Empty(t, result["Empty"])
}

func TestDiscover_Deterministic(t *testing.T) {
	engine := NewInferenceEngine(nil)
	tables := []datasource.TableMetadata{
		makeTable("Supplier", "SupplierID", "Name"),
		makeTable("PurchaseOrder", "PONumber", "SupplierID", "POAmount", "InvoicingParty"),
		makeTable("Company", "CompanyCode", "CompanyName"),
	}

	first := engine.Discover(tables)
	second := engine.Discover(tables)

	assert.Equal(t, first, second)
}

func TestDiscover_SuffixPattern(t *testing.T) {
	engine := NewInferenceEngine(nil)
	tables := []datasource.TableMetadata{
		makeTable("Supplier", "SupplierID", "Name"),
		makeTable("PurchaseOrder", "PONumber", "SupplierID", "POAmount"),
	}

	result := engine.Discover(tables)

	var supplierMapping *models.FKMapping
	for i, m := range result["PurchaseOrder"] {
		if m.SourceColumn == "SupplierID" {
			supplierMapping = &result["PurchaseOrder"][i]
		}
	}
	require.NotNil(t, supplierMapping, "expected PurchaseOrder.SupplierID to be inferred")
	assert.Equal(t, "Supplier", supplierMapping.TargetTable)
	assert.Equal(t, models.DiscoveryMethodSuffixPattern, supplierMapping.Method)
	assert.GreaterOrEqual(t, supplierMapping.Confidence, 0.6)

	// POAmount matches nothing and must not be a foreign key.
	for _, m := range result["PurchaseOrder"] {
		assert.NotEqual(t, "POAmount", m.SourceColumn)
	}
}

func TestDiscover_SelfReferenceRetained(t *testing.T) {
	engine := NewInferenceEngine(nil)
	tables := []datasource.TableMetadata{
		makeTable("Supplier", "SupplierID", "Name"),
	}

	result := engine.Discover(tables)

	require.Len(t, result["Supplier"], 1)
	m := result["Supplier"][0]
	assert.Equal(t, "Supplier", m.TargetTable)
	assert.True(t, m.IsSelfReference())
}

func TestDiscover_RoleMatchWinsAndOutranks(t *testing.T) {
	engine := NewInferenceEngine(nil)
	tables := []datasource.TableMetadata{
		makeTable("Supplier", "SupplierID"),
		makeTable("Invoice", "InvoicingParty", "SupplierID"),
	}

	result := engine.Discover(tables)

	byColumn := make(map[string]models.FKMapping)
	for _, m := range result["Invoice"] {
		if _, ok := byColumn[m.SourceColumn]; !ok {
			byColumn[m.SourceColumn] = m
		}
	}

	role, ok := byColumn["InvoicingParty"]
	require.True(t, ok, "expected role-based mapping for InvoicingParty")
	assert.Equal(t, "Supplier", role.TargetTable)
	assert.Equal(t, models.DiscoveryMethodRoleName, role.Method)

	suffix, ok := byColumn["SupplierID"]
	require.True(t, ok)
	assert.Equal(t, models.DiscoveryMethodSuffixPattern, suffix.Method)

	// Strategy 1 confidence strictly dominates every other strategy's.
	assert.Greater(t, role.Confidence, suffix.Confidence)
	assert.Greater(t, models.ConfidenceSuffixPattern, models.ConfidenceTableNameMatch)
}

func TestDiscover_SingularPluralVariants(t *testing.T) {
	engine := NewInferenceEngine(nil)
	tables := []datasource.TableMetadata{
		makeTable("users", "id", "name"),
		makeTable("orders", "id", "user_id"),
	}

	result := engine.Discover(tables)

	var userMapping *models.FKMapping
	for i, m := range result["orders"] {
		if m.SourceColumn == "user_id" {
			userMapping = &result["orders"][i]
		}
	}
	require.NotNil(t, userMapping, "expected orders.user_id to resolve via singular variant")
	assert.Equal(t, "users", userMapping.TargetTable)
	assert.Equal(t, models.DiscoveryMethodSuffixPattern, userMapping.Method)
}

func TestDiscover_SuffixNearMatch(t *testing.T) {
	engine := NewInferenceEngine(nil)
	tables := []datasource.TableMetadata{
		makeTable("Customers", "CustomerID"),
		// Misspelled reference: "custmer" is one edit from "customer".
		makeTable("Orders", "CustmerID", "Total"),
	}

	result := engine.Discover(tables)

	var mapping *models.FKMapping
	for i, m := range result["Orders"] {
		if m.SourceColumn == "CustmerID" {
			mapping = &result["Orders"][i]
		}
	}
	require.NotNil(t, mapping, "expected near-match to resolve the misspelling")
	assert.Equal(t, "Customers", mapping.TargetTable)
	assert.Equal(t, models.DiscoveryMethodSuffixPattern, mapping.Method)
}

func TestDiscover_SubstringFallback(t *testing.T) {
	engine := NewInferenceEngine(nil)
	tables := []datasource.TableMetadata{
		makeTable("Supplier", "SupplierID"),
		makeTable("Shipment", "PreferredSupplierRef"),
	}

	result := engine.Discover(tables)

	var mapping *models.FKMapping
	for i, m := range result["Shipment"] {
		if m.SourceColumn == "PreferredSupplierRef" {
			mapping = &result["Shipment"][i]
		}
	}
	require.NotNil(t, mapping, "expected substring fallback to fire")
	assert.Equal(t, "Supplier", mapping.TargetTable)
	assert.Equal(t, models.DiscoveryMethodTableNameMatch, mapping.Method)
	assert.InDelta(t, models.ConfidenceTableNameMatch, mapping.Confidence, 1e-9)
}

func TestDiscover_SubstringTieBreak(t *testing.T) {
	engine := NewInferenceEngine(nil)
	tables := []datasource.TableMetadata{
		makeTable("Order", "id"),
		makeTable("OrderLine", "id"),
		makeTable("Billing", "OrderLineRef"),
	}

	result := engine.Discover(tables)

	mappings := result["Billing"]
	require.NotEmpty(t, mappings)
	// Longest table name wins the first slot; shorter substring hits follow.
	assert.Equal(t, "OrderLine", mappings[0].TargetTable)
}

func TestDiscover_CustomRole(t *testing.T) {
	engine := NewInferenceEngine(nil).WithRole("ship_to_party", "Warehouse")
	tables := []datasource.TableMetadata{
		makeTable("Warehouse", "WarehouseID"),
		makeTable("Delivery", "ShipToParty"),
	}

	result := engine.Discover(tables)

	require.Len(t, result["Delivery"], 1)
	m := result["Delivery"][0]
	assert.Equal(t, "Warehouse", m.TargetTable)
	assert.Equal(t, models.DiscoveryMethodRoleName, m.Method)
	assert.InDelta(t, models.ConfidenceRoleName, m.Confidence, 1e-9)
}

func TestWinningMappings(t *testing.T) {
	mappings := []models.FKMapping{
		{SourceColumn: "A", TargetTable: "T1", Confidence: 0.6},
		{SourceColumn: "A", TargetTable: "T2", Confidence: 0.6},
		{SourceColumn: "B", TargetTable: "T3", Confidence: 0.8},
	}

	winners := WinningMappings(mappings)

	require.Len(t, winners, 2)
	assert.Equal(t, "T1", winners[0].TargetTable)
	assert.Equal(t, "T3", winners[1].TargetTable)

	assert.Nil(t, WinningMappings(nil))
}
