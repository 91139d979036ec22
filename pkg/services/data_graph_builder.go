package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dbcanvas/dbcanvas-engine/pkg/adapters/datasource"
	"github.com/dbcanvas/dbcanvas-engine/pkg/apperrors"
	"github.com/dbcanvas/dbcanvas-engine/pkg/logging"
	"github.com/dbcanvas/dbcanvas-engine/pkg/models"
)

// DataGraphBuilder builds the record-level graph: one record node per
// fetched row and data_foreign_key edges instantiated from the schema-level
// FK mappings applied to actual column values.
//
// Cross-table edges are a best-effort subset limited by what was fetched: a
// row referencing a target outside the fetched window contributes no edge,
// never a dangling reference.
type DataGraphBuilder struct {
	engine  RelationshipInference
	fkCache *FKMappingCache
	logger  *zap.Logger
}

// NewDataGraphBuilder creates a data graph builder. The cache must be the
// same instance a preceding schema build used, if any, so both builders
// share one set of FK conclusions. If logger is nil, a no-op logger is used.
func NewDataGraphBuilder(engine RelationshipInference, fkCache *FKMappingCache, logger *zap.Logger) *DataGraphBuilder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DataGraphBuilder{
		engine:  engine,
		fkCache: fkCache,
		logger:  logger,
	}
}

// RecordNodeKey builds the key for one record node. The key incorporates
// the row's sequence number within the fetch in addition to the primary-key
// value: business keys are not guaranteed unique across the fetched result
// set, and two rows sharing one must still be two distinct nodes.
func RecordNodeKey(table, pkValue string, seq int) string {
	if pkValue == "" {
		pkValue = "-"
	}
	return fmt.Sprintf("record:%s:%s:%d", table, pkValue, seq)
}

// fetchedTable holds one table's rows plus the lookup from rendered
// primary-key value to record node key.
type fetchedTable struct {
	meta     datasource.TableMetadata
	rows     []datasource.Row
	nodeKeys []string          // parallel to rows
	byPK     map[string]string // rendered PK value -> node key (first row wins)
}

// Build fetches up to rowLimitPerTable rows from every table and produces
// the data graph. A fetch failure on one table is isolated: the table
// contributes zero record nodes and is reported in Graph.SkippedTables; the
// build itself does not fail.
func (b *DataGraphBuilder) Build(ctx context.Context, datasourceID string, src datasource.DataSource, tables []datasource.TableMetadata, rowLimitPerTable int) (*models.Graph, error) {
	if rowLimitPerTable <= 0 {
		return nil, fmt.Errorf("%w: %d", apperrors.ErrRowLimitOutOfRange, rowLimitPerTable)
	}

	graph := &models.Graph{
		DatasourceID: datasourceID,
		Mode:         models.GraphModeData,
		Nodes:        make([]models.GraphNode, 0),
		Edges:        make([]models.GraphEdge, 0),
	}

	// Reuse FK conclusions from a prior schema build on the same table set,
	// computing them only when absent.
	mappingsByTable := b.fkCache.GetOrCompute(tables, b.engine)

	sorted := make([]datasource.TableMetadata, len(tables))
	copy(sorted, tables)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].TableName < sorted[j].TableName })

	// Phase 1: fetch rows and materialize record nodes.
	fetched := make(map[string]*fetchedTable, len(sorted))
	for _, t := range sorted {
		rows, err := src.FetchRows(ctx, t.TableName, rowLimitPerTable)
		if err != nil {
			b.logger.Warn("Failed to fetch rows, skipping table",
				zap.String("table", t.TableName),
				zap.Error(err))
			// Driver errors can echo credentials; the skip reason is persisted
			// with the graph, so it is sanitized first.
			graph.SkippedTables = append(graph.SkippedTables, models.TableError{
				Table: t.TableName,
				Err:   logging.SanitizeError(err),
			})
			continue
		}

		ft := &fetchedTable{
			meta:     t,
			rows:     rows,
			nodeKeys: make([]string, len(rows)),
			byPK:     make(map[string]string, len(rows)),
		}

		pkCols := t.PrimaryKeyColumns()
		for seq, row := range rows {
			pkValue := renderPKValue(row, pkCols)
			key := RecordNodeKey(t.TableName, pkValue, seq)
			ft.nodeKeys[seq] = key
			if pkValue != "" {
				if _, exists := ft.byPK[pkValue]; !exists {
					ft.byPK[pkValue] = key
				}
			}

			label := pkValue
			if label == "" {
				label = fmt.Sprintf("%s #%d", t.TableName, seq)
			}

			graph.Nodes = append(graph.Nodes, models.GraphNode{
				Key:        key,
				Type:       models.NodeTypeRecord,
				Label:      label,
				Title:      t.TableName,
				Properties: rowProperties(row),
			})
		}

		fetched[t.TableName] = ft
	}

	// Phase 2: instantiate data_foreign_key edges from the FK mappings.
	for _, t := range sorted {
		ft, ok := fetched[t.TableName]
		if !ok {
			continue
		}

		for _, m := range WinningMappings(mappingsByTable[t.TableName]) {
			target, ok := fetched[m.TargetTable]
			if !ok {
				b.logger.Debug("FK target table not fetched, skipping edges",
					zap.String("source_table", m.SourceTable),
					zap.String("source_column", m.SourceColumn),
					zap.String("target_table", m.TargetTable))
				continue
			}

			for seq, row := range ft.rows {
				value := renderValue(row[m.SourceColumn])
				if value == "" {
					continue
				}
				targetKey, ok := target.byPK[value]
				if !ok {
					// Referenced row was outside the fetched window.
					continue
				}

				graph.Edges = append(graph.Edges, models.GraphEdge{
					SourceKey:  ft.nodeKeys[seq],
					TargetKey:  targetKey,
					Type:       models.EdgeTypeDataForeignKey,
					Label:      m.SourceColumn,
					Confidence: m.Confidence,
					Method:     m.Method,
					IsActive:   true,
				})
			}
		}
	}

	b.logger.Info("Built data graph",
		zap.String("datasource_id", datasourceID),
		zap.Int("tables", len(sorted)),
		zap.Int("skipped_tables", len(graph.SkippedTables)),
		zap.Int("nodes", len(graph.Nodes)),
		zap.Int("edges", len(graph.Edges)))

	return graph, nil
}

// renderPKValue joins a row's primary-key values with "|" in PK column
// order. Returns "" when the table has no primary key or all PK values are
// null.
func renderPKValue(row datasource.Row, pkCols []string) string {
	if len(pkCols) == 0 {
		return ""
	}
	parts := make([]string, 0, len(pkCols))
	empty := true
	for _, col := range pkCols {
		v := renderValue(row[col])
		if v != "" {
			empty = false
		}
		parts = append(parts, v)
	}
	if empty {
		return ""
	}
	return strings.Join(parts, "|")
}

// rowProperties renders a row into a JSON-safe properties bag. The core
// never interprets these; they pass through to the consumer untouched.
func rowProperties(row datasource.Row) map[string]any {
	props := make(map[string]any, len(row))
	for col, v := range row {
		if v == nil {
			continue
		}
		props[col] = renderValue(v)
	}
	return props
}

// renderValue converts a driver value to its canonical string form, used
// both for node keys and for FK value matching so the two always agree.
func renderValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case time.Time:
		return x.UTC().Format(time.RFC3339)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprintf("%v", x)
	}
}
