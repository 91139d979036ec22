package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// GraphMode selects which kind of graph is built for a datasource.
type GraphMode string

const (
	// GraphModeSchema is the structure-level graph (products, tables, FK edges).
	GraphModeSchema GraphMode = "schema"
	// GraphModeData is the record-level graph (one node per fetched row).
	GraphModeData GraphMode = "data"
)

// IsValid reports whether the mode is one of the known graph modes.
func (m GraphMode) IsValid() bool {
	return m == GraphModeSchema || m == GraphModeData
}

// NodeType classifies graph nodes.
type NodeType string

const (
	NodeTypeProduct NodeType = "product"
	NodeTypeTable   NodeType = "table"
	NodeTypeColumn  NodeType = "column"
	NodeTypeRecord  NodeType = "record"
)

// EdgeType classifies graph edges.
type EdgeType string

const (
	EdgeTypeContains       EdgeType = "contains"
	EdgeTypeForeignKey     EdgeType = "foreign_key"
	EdgeTypeDataForeignKey EdgeType = "data_foreign_key"
)

// DiscoveryMethod records which strategy produced a foreign-key mapping.
type DiscoveryMethod string

const (
	// DiscoveryMethodRoleName matches a column against a fixed table of
	// known semantic role names (highest confidence).
	DiscoveryMethodRoleName DiscoveryMethod = "role_name"
	// DiscoveryMethodSuffixPattern strips a recognized suffix (ID, Code,
	// Key, Number) and matches the remainder against table names.
	DiscoveryMethodSuffixPattern DiscoveryMethod = "suffix_pattern"
	// DiscoveryMethodTableNameMatch finds a known table name as a
	// substring of the column name (lowest confidence, fallback only).
	DiscoveryMethodTableNameMatch DiscoveryMethod = "table_name_match"
	// DiscoveryMethodManual marks an operator-pinned mapping. Inference
	// never emits it.
	DiscoveryMethodManual DiscoveryMethod = "manual"
)

// Confidence scores per discovery method.
const (
	ConfidenceRoleName       = 0.95
	ConfidenceSuffixPattern  = 0.8
	ConfidenceTableNameMatch = 0.6
	ConfidenceManual         = 1.0
)

// FKMapping is an inferred pointer from one table's column to another table.
// Immutable after creation; computed once per table set and shared between
// the schema and data builders inside a single request.
type FKMapping struct {
	SourceTable  string          `json:"source_table"`
	SourceColumn string          `json:"source_column"`
	TargetTable  string          `json:"target_table"`
	Confidence   float64         `json:"confidence"`
	Method       DiscoveryMethod `json:"discovery_method"`
}

// IsSelfReference reports whether the mapping points a table at itself.
// Self-references are retained by inference; consumers that need to
// suppress self-loops check this flag.
func (m FKMapping) IsSelfReference() bool {
	return m.SourceTable == m.TargetTable
}

// GraphNode is one node of a built graph. It carries only semantic fields;
// colors, shapes and layout belong to the presentation layer and must never
// appear here.
type GraphNode struct {
	Key        string         `json:"key"`
	Type       NodeType       `json:"type"`
	Label      string         `json:"label"`
	Title      string         `json:"title,omitempty"`
	Properties map[string]any `json:"properties,omitempty"`
}

// GraphEdge connects two node keys within the same (datasource, mode) scope.
// Edges are append-only except for the IsActive toggle.
// For foreign_key and data_foreign_key edges, Label is the source column
// that drove the relationship.
type GraphEdge struct {
	SourceKey  string          `json:"source_key"`
	TargetKey  string          `json:"target_key"`
	Type       EdgeType        `json:"type"`
	Label      string          `json:"label,omitempty"`
	Confidence float64         `json:"confidence"`
	Method     DiscoveryMethod `json:"discovery_method"`
	IsActive   bool            `json:"is_active"`
}

// TableError reports a table that could not contribute to a build.
// Builds are never aborted by a single table; the failure is surfaced here.
type TableError struct {
	Table string `json:"table"`
	Err   string `json:"error"`
}

// Graph is the output of one build for one (datasource, mode) pair.
type Graph struct {
	DatasourceID  string       `json:"datasource_id"`
	Mode          GraphMode    `json:"mode"`
	Nodes         []GraphNode  `json:"nodes"`
	Edges         []GraphEdge  `json:"edges"`
	SkippedTables []TableError `json:"skipped_tables,omitempty"`
}

// ExportJSON renders the graph's nodes and edges as a JSON document, the
// wire shape consumed by presentation layers. Keys, labels and properties
// only; nothing visual.
func (g *Graph) ExportJSON() ([]byte, error) {
	payload := struct {
		Nodes []GraphNode `json:"nodes"`
		Edges []GraphEdge `json:"edges"`
	}{Nodes: g.Nodes, Edges: g.Edges}
	return json.Marshal(payload)
}

// NodeByKey returns the node with the given key, or nil.
func (g *Graph) NodeByKey(key string) *GraphNode {
	for i := range g.Nodes {
		if g.Nodes[i].Key == key {
			return &g.Nodes[i]
		}
	}
	return nil
}

// CacheEntry is the persisted registry row for one (datasource, mode) pair.
// The graph store exclusively owns persisted node/edge rows; builders own
// only the transient in-memory graph until a flush.
type CacheEntry struct {
	ID           uuid.UUID `json:"id"`
	DatasourceID string    `json:"datasource_id"`
	Mode         GraphMode `json:"mode"`
	NodeCount    int       `json:"node_count"`
	EdgeCount    int       `json:"edge_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
