package services

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/dbcanvas/dbcanvas-engine/pkg/adapters/datasource"
	"github.com/dbcanvas/dbcanvas-engine/pkg/models"
)

// SchemaGraphBuilder builds the structure-level graph: one product node per
// logical table grouping, one table node per table, contains edges from
// products to their tables, and one foreign_key edge per inferred mapping.
//
// The FK mapping result is written to the shared cache as a side effect so
// a data build in the same request reuses it without recomputation.
type SchemaGraphBuilder struct {
	engine  RelationshipInference
	fkCache *FKMappingCache
	groups  *ProductGroups
	logger  *zap.Logger
}

// NewSchemaGraphBuilder creates a schema graph builder. groups may be nil
// for default namespace-prefix grouping. If logger is nil, a no-op logger
// is used.
func NewSchemaGraphBuilder(engine RelationshipInference, fkCache *FKMappingCache, groups *ProductGroups, logger *zap.Logger) *SchemaGraphBuilder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SchemaGraphBuilder{
		engine:  engine,
		fkCache: fkCache,
		groups:  groups,
		logger:  logger,
	}
}

// ProductNodeKey returns the node key for a product node.
func ProductNodeKey(product string) string {
	return "product:" + product
}

// TableNodeKey returns the node key for a table node.
func TableNodeKey(table string) string {
	return "table:" + table
}

// Build produces the schema graph for the given table set. Tables are
// processed in sorted name order, so unchanged schemas build identical edge
// sets on every run.
func (b *SchemaGraphBuilder) Build(datasourceID string, tables []datasource.TableMetadata) (*models.Graph, error) {
	graph := &models.Graph{
		DatasourceID: datasourceID,
		Mode:         models.GraphModeSchema,
		Nodes:        make([]models.GraphNode, 0),
		Edges:        make([]models.GraphEdge, 0),
	}

	sorted := make([]datasource.TableMetadata, len(tables))
	copy(sorted, tables)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].TableName < sorted[j].TableName })

	// Product nodes first, then their tables with contains edges.
	productTables := make(map[string][]string)
	for _, t := range sorted {
		product := b.groups.ProductFor(t.TableName)
		productTables[product] = append(productTables[product], t.TableName)
	}

	products := make([]string, 0, len(productTables))
	for p := range productTables {
		products = append(products, p)
	}
	sort.Strings(products)

	for _, product := range products {
		graph.Nodes = append(graph.Nodes, models.GraphNode{
			Key:   ProductNodeKey(product),
			Type:  models.NodeTypeProduct,
			Label: product,
			Properties: map[string]any{
				"table_count": len(productTables[product]),
			},
		})
	}

	for _, t := range sorted {
		product := b.groups.ProductFor(t.TableName)

		graph.Nodes = append(graph.Nodes, models.GraphNode{
			Key:   TableNodeKey(t.TableName),
			Type:  models.NodeTypeTable,
			Label: t.TableName,
			Title: fmt.Sprintf("%s (%d columns)", t.TableName, len(t.Columns)),
			Properties: map[string]any{
				"product":      product,
				"column_count": len(t.Columns),
				"primary_keys": t.PrimaryKeyColumns(),
			},
		})

		graph.Edges = append(graph.Edges, models.GraphEdge{
			SourceKey:  ProductNodeKey(product),
			TargetKey:  TableNodeKey(t.TableName),
			Type:       models.EdgeTypeContains,
			Confidence: 1.0,
			IsActive:   true,
		})
	}

	// FK edges from the shared mapping cache. One edge per mapped column:
	// several columns pointing at the same target table keep separate edges
	// so the driving column is preserved.
	mappingsByTable := b.fkCache.GetOrCompute(tables, b.engine)
	tableKeys := make(map[string]bool, len(sorted))
	for _, t := range sorted {
		tableKeys[t.TableName] = true
	}

	for _, t := range sorted {
		for _, m := range WinningMappings(mappingsByTable[t.TableName]) {
			if !tableKeys[m.TargetTable] {
				// Role mappings can point at tables outside this set.
				b.logger.Warn("Dropping FK edge to unknown table",
					zap.String("source_table", m.SourceTable),
					zap.String("source_column", m.SourceColumn),
					zap.String("target_table", m.TargetTable))
				continue
			}

			graph.Edges = append(graph.Edges, models.GraphEdge{
				SourceKey:  TableNodeKey(m.SourceTable),
				TargetKey:  TableNodeKey(m.TargetTable),
				Type:       models.EdgeTypeForeignKey,
				Label:      m.SourceColumn,
				Confidence: m.Confidence,
				Method:     m.Method,
				IsActive:   true,
			})
		}
	}

	b.logger.Info("Built schema graph",
		zap.String("datasource_id", datasourceID),
		zap.Int("products", len(products)),
		zap.Int("tables", len(sorted)),
		zap.Int("nodes", len(graph.Nodes)),
		zap.Int("edges", len(graph.Edges)))

	return graph, nil
}
