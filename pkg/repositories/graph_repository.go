package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dbcanvas/dbcanvas-engine/pkg/database"
	"github.com/dbcanvas/dbcanvas-engine/pkg/models"
)

// GraphRepository persists built graphs keyed by (datasource, mode).
//
// Persistence is row-oriented: a parent registry row per key plus one row
// per node and per edge, with cascading delete. Node and edge payloads are
// stored as opaque serialized blobs; the store has zero knowledge of graph
// semantics. Put is a full replace inside one transaction, which also
// serializes concurrent writers to the same key via the registry's unique
// constraint.
type GraphRepository interface {
	// Get returns the cached graph for the key, or nil on a cache miss.
	// A miss is not an error.
	Get(ctx context.Context, datasourceID string, mode models.GraphMode) (*models.Graph, error)

	// Put replaces the cached graph for the graph's own (datasource, mode)
	// key. A fresh build always fully supersedes the previous entry.
	Put(ctx context.Context, graph *models.Graph) error

	// Clear removes cached graphs for a datasource. A nil mode clears all
	// modes for that source. Clearing an absent key is a no-op.
	Clear(ctx context.Context, datasourceID string, mode *models.GraphMode) error

	// GetEntry returns the registry row for a key, or nil on a miss.
	GetEntry(ctx context.Context, datasourceID string, mode models.GraphMode) (*models.CacheEntry, error)
}

type graphRepository struct {
	db *database.DB
}

// NewGraphRepository creates a GraphRepository backed by the engine store.
func NewGraphRepository(db *database.DB) GraphRepository {
	return &graphRepository{db: db}
}

var _ GraphRepository = (*graphRepository)(nil)

func (r *graphRepository) Get(ctx context.Context, datasourceID string, mode models.GraphMode) (*models.Graph, error) {
	var cacheID uuid.UUID
	err := r.db.QueryRow(ctx,
		`SELECT id FROM engine_graph_cache WHERE datasource_id = $1 AND mode = $2`,
		datasourceID, mode,
	).Scan(&cacheID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query cache entry: %w", err)
	}

	graph := &models.Graph{
		DatasourceID: datasourceID,
		Mode:         mode,
		Nodes:        make([]models.GraphNode, 0),
		Edges:        make([]models.GraphEdge, 0),
	}

	nodeRows, err := r.db.Query(ctx, `
		SELECT node_key, node_type, label, title, properties
		FROM engine_graph_nodes
		WHERE cache_id = $1
		ORDER BY seq`,
		cacheID)
	if err != nil {
		return nil, fmt.Errorf("failed to query nodes: %w", err)
	}
	defer nodeRows.Close()

	for nodeRows.Next() {
		var n models.GraphNode
		var title *string
		var propsJSON []byte
		if err := nodeRows.Scan(&n.Key, &n.Type, &n.Label, &title, &propsJSON); err != nil {
			return nil, fmt.Errorf("failed to scan node: %w", err)
		}
		if title != nil {
			n.Title = *title
		}
		if len(propsJSON) > 0 {
			if err := json.Unmarshal(propsJSON, &n.Properties); err != nil {
				return nil, fmt.Errorf("failed to unmarshal node properties: %w", err)
			}
		}
		graph.Nodes = append(graph.Nodes, n)
	}
	if err := nodeRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating nodes: %w", err)
	}

	edgeRows, err := r.db.Query(ctx, `
		SELECT source_key, target_key, edge_type, label, confidence, discovery_method, is_active
		FROM engine_graph_edges
		WHERE cache_id = $1
		ORDER BY seq`,
		cacheID)
	if err != nil {
		return nil, fmt.Errorf("failed to query edges: %w", err)
	}
	defer edgeRows.Close()

	for edgeRows.Next() {
		var e models.GraphEdge
		var label, method *string
		if err := edgeRows.Scan(&e.SourceKey, &e.TargetKey, &e.Type, &label, &e.Confidence, &method, &e.IsActive); err != nil {
			return nil, fmt.Errorf("failed to scan edge: %w", err)
		}
		if label != nil {
			e.Label = *label
		}
		if method != nil {
			e.Method = models.DiscoveryMethod(*method)
		}
		graph.Edges = append(graph.Edges, e)
	}
	if err := edgeRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating edges: %w", err)
	}

	return graph, nil
}

func (r *graphRepository) Put(ctx context.Context, graph *models.Graph) error {
	if !graph.Mode.IsValid() {
		return fmt.Errorf("invalid graph mode %q", graph.Mode)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	now := time.Now()
	var cacheID uuid.UUID
	err = tx.QueryRow(ctx, `
		INSERT INTO engine_graph_cache (id, datasource_id, mode, node_count, edge_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (datasource_id, mode) DO UPDATE
		SET node_count = EXCLUDED.node_count,
		    edge_count = EXCLUDED.edge_count,
		    updated_at = EXCLUDED.updated_at
		RETURNING id`,
		uuid.New(), graph.DatasourceID, graph.Mode, len(graph.Nodes), len(graph.Edges), now,
	).Scan(&cacheID)
	if err != nil {
		return fmt.Errorf("failed to upsert cache entry: %w", err)
	}

	// Full replace: the fresh build supersedes everything under this key.
	if _, err := tx.Exec(ctx, `DELETE FROM engine_graph_nodes WHERE cache_id = $1`, cacheID); err != nil {
		return fmt.Errorf("failed to delete old nodes: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM engine_graph_edges WHERE cache_id = $1`, cacheID); err != nil {
		return fmt.Errorf("failed to delete old edges: %w", err)
	}

	for i, n := range graph.Nodes {
		var propsJSON []byte
		if n.Properties != nil {
			propsJSON, err = json.Marshal(n.Properties)
			if err != nil {
				return fmt.Errorf("failed to marshal properties for node %s: %w", n.Key, err)
			}
		}

		var title *string
		if n.Title != "" {
			title = &n.Title
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO engine_graph_nodes (id, cache_id, seq, node_key, node_type, label, title, properties)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			uuid.New(), cacheID, i, n.Key, n.Type, n.Label, title, propsJSON)
		if err != nil {
			return fmt.Errorf("failed to insert node %s: %w", n.Key, err)
		}
	}

	for i, e := range graph.Edges {
		var label, method *string
		if e.Label != "" {
			label = &e.Label
		}
		if e.Method != "" {
			m := string(e.Method)
			method = &m
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO engine_graph_edges (id, cache_id, seq, source_key, target_key, edge_type, label, confidence, discovery_method, is_active)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			uuid.New(), cacheID, i, e.SourceKey, e.TargetKey, e.Type, label, e.Confidence, method, e.IsActive)
		if err != nil {
			return fmt.Errorf("failed to insert edge %s -> %s: %w", e.SourceKey, e.TargetKey, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit graph: %w", err)
	}

	return nil
}

func (r *graphRepository) Clear(ctx context.Context, datasourceID string, mode *models.GraphMode) error {
	// Child node/edge rows go with the registry row via cascading delete.
	if mode == nil {
		_, err := r.db.Exec(ctx,
			`DELETE FROM engine_graph_cache WHERE datasource_id = $1`, datasourceID)
		if err != nil {
			return fmt.Errorf("failed to clear cache for datasource: %w", err)
		}
		return nil
	}

	_, err := r.db.Exec(ctx,
		`DELETE FROM engine_graph_cache WHERE datasource_id = $1 AND mode = $2`,
		datasourceID, *mode)
	if err != nil {
		return fmt.Errorf("failed to clear cache entry: %w", err)
	}
	return nil
}

func (r *graphRepository) GetEntry(ctx context.Context, datasourceID string, mode models.GraphMode) (*models.CacheEntry, error) {
	var entry models.CacheEntry
	err := r.db.QueryRow(ctx, `
		SELECT id, datasource_id, mode, node_count, edge_count, created_at, updated_at
		FROM engine_graph_cache
		WHERE datasource_id = $1 AND mode = $2`,
		datasourceID, mode,
	).Scan(&entry.ID, &entry.DatasourceID, &entry.Mode, &entry.NodeCount, &entry.EdgeCount, &entry.CreatedAt, &entry.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query cache entry: %w", err)
	}
	return &entry, nil
}
