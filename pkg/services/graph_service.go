package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/dbcanvas/dbcanvas-engine/pkg/adapters/datasource"
	"github.com/dbcanvas/dbcanvas-engine/pkg/apperrors"
	"github.com/dbcanvas/dbcanvas-engine/pkg/config"
	"github.com/dbcanvas/dbcanvas-engine/pkg/logging"
	"github.com/dbcanvas/dbcanvas-engine/pkg/models"
	"github.com/dbcanvas/dbcanvas-engine/pkg/repositories"
)

// GraphService is the entry point for graph requests. It consults the cache
// store, runs the appropriate builder on a miss, and persists the result
// best-effort: a cache-store failure never blocks returning the freshly
// built graph.
type GraphService interface {
	// GetGraph returns the graph for (datasource, mode), from cache when
	// possible. rowLimitPerTable applies to data-mode builds only; zero
	// selects the configured default and values above the configured
	// maximum are capped.
	GetGraph(ctx context.Context, datasourceID string, src datasource.DataSource, mode models.GraphMode, rowLimitPerTable int) (*models.Graph, error)

	// RebuildAll rebuilds both modes for a datasource in one request,
	// sharing one set of FK conclusions between the two builds, and
	// replaces both cache entries.
	RebuildAll(ctx context.Context, datasourceID string, src datasource.DataSource, rowLimitPerTable int) (schema, data *models.Graph, err error)

	// ClearCache removes cached graphs for a datasource. A nil mode clears
	// all modes.
	ClearCache(ctx context.Context, datasourceID string, mode *models.GraphMode) error
}

type graphService struct {
	repo   repositories.GraphRepository
	engine RelationshipInference
	groups *ProductGroups
	cfg    config.GraphConfig
	logger *zap.Logger
}

// NewGraphService creates a GraphService. groups may be nil for default
// grouping. If logger is nil, a no-op logger is used.
func NewGraphService(repo repositories.GraphRepository, engine RelationshipInference, groups *ProductGroups, cfg config.GraphConfig, logger *zap.Logger) GraphService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &graphService{
		repo:   repo,
		engine: engine,
		groups: groups,
		cfg:    cfg,
		logger: logger,
	}
}

var _ GraphService = (*graphService)(nil)

func (s *graphService) GetGraph(ctx context.Context, datasourceID string, src datasource.DataSource, mode models.GraphMode, rowLimitPerTable int) (*models.Graph, error) {
	if !mode.IsValid() {
		return nil, fmt.Errorf("%w: %q", apperrors.ErrInvalidMode, mode)
	}

	cached, err := s.repo.Get(ctx, datasourceID, mode)
	if err != nil {
		// Store trouble is a miss, not a failure: rebuild from source.
		s.logger.Warn("Graph cache read failed, rebuilding",
			zap.String("datasource_id", datasourceID),
			zap.String("mode", string(mode)),
			zap.Error(err))
	}
	if cached != nil {
		s.logger.Debug("Graph cache hit",
			zap.String("datasource_id", datasourceID),
			zap.String("mode", string(mode)))
		return cached, nil
	}

	tables, skipped, err := s.introspect(ctx, src)
	if err != nil {
		return nil, err
	}

	fkCache := NewFKMappingCache()
	graph, err := s.build(ctx, datasourceID, src, mode, tables, fkCache, rowLimitPerTable)
	if err != nil {
		return nil, err
	}
	graph.SkippedTables = append(skipped, graph.SkippedTables...)

	s.store(ctx, graph)
	return graph, nil
}

func (s *graphService) RebuildAll(ctx context.Context, datasourceID string, src datasource.DataSource, rowLimitPerTable int) (*models.Graph, *models.Graph, error) {
	tables, skipped, err := s.introspect(ctx, src)
	if err != nil {
		return nil, nil, err
	}

	// One cache instance across both builds: the single-source-of-truth
	// rule for FK conclusions.
	fkCache := NewFKMappingCache()

	schemaGraph, err := s.build(ctx, datasourceID, src, models.GraphModeSchema, tables, fkCache, rowLimitPerTable)
	if err != nil {
		return nil, nil, err
	}
	schemaGraph.SkippedTables = append(append([]models.TableError(nil), skipped...), schemaGraph.SkippedTables...)

	dataGraph, err := s.build(ctx, datasourceID, src, models.GraphModeData, tables, fkCache, rowLimitPerTable)
	if err != nil {
		return nil, nil, err
	}
	dataGraph.SkippedTables = append(append([]models.TableError(nil), skipped...), dataGraph.SkippedTables...)

	s.store(ctx, schemaGraph)
	s.store(ctx, dataGraph)

	return schemaGraph, dataGraph, nil
}

func (s *graphService) ClearCache(ctx context.Context, datasourceID string, mode *models.GraphMode) error {
	if mode != nil && !mode.IsValid() {
		return fmt.Errorf("%w: %q", apperrors.ErrInvalidMode, *mode)
	}
	return s.repo.Clear(ctx, datasourceID, mode)
}

// introspect snapshots the datasource's schema. A table whose description
// fails is skipped and reported, never fatal; only a failing table list
// aborts the request.
func (s *graphService) introspect(ctx context.Context, src datasource.DataSource) ([]datasource.TableMetadata, []models.TableError, error) {
	names, err := src.ListTables(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list tables: %w", err)
	}

	tables := make([]datasource.TableMetadata, 0, len(names))
	var skipped []models.TableError
	for _, name := range names {
		meta, err := src.DescribeTable(ctx, name)
		if err != nil {
			s.logger.Warn("Failed to describe table, excluding from graph",
				zap.String("table", name),
				zap.Error(err))
			skipped = append(skipped, models.TableError{Table: name, Err: logging.SanitizeError(err)})
			continue
		}
		tables = append(tables, *meta)
	}

	return tables, skipped, nil
}

func (s *graphService) build(ctx context.Context, datasourceID string, src datasource.DataSource, mode models.GraphMode, tables []datasource.TableMetadata, fkCache *FKMappingCache, rowLimitPerTable int) (*models.Graph, error) {
	switch mode {
	case models.GraphModeSchema:
		builder := NewSchemaGraphBuilder(s.engine, fkCache, s.groups, s.logger)
		return builder.Build(datasourceID, tables)
	case models.GraphModeData:
		builder := NewDataGraphBuilder(s.engine, fkCache, s.logger)
		return builder.Build(ctx, datasourceID, src, tables, s.normalizeRowLimit(rowLimitPerTable))
	default:
		return nil, fmt.Errorf("%w: %q", apperrors.ErrInvalidMode, mode)
	}
}

// normalizeRowLimit applies the configured default and cap. The limit is
// the primary backpressure mechanism for data builds; it is never allowed
// to be unbounded.
func (s *graphService) normalizeRowLimit(limit int) int {
	if limit <= 0 {
		return s.cfg.DefaultRowLimit
	}
	if limit > s.cfg.MaxRowLimit {
		return s.cfg.MaxRowLimit
	}
	return limit
}

// store persists a built graph best-effort. Failure is logged and
// swallowed: the caller still gets the in-memory graph.
func (s *graphService) store(ctx context.Context, graph *models.Graph) {
	if err := s.repo.Put(ctx, graph); err != nil {
		s.logger.Warn("Failed to cache graph",
			zap.String("datasource_id", graph.DatasourceID),
			zap.String("mode", string(graph.Mode)),
			zap.Error(err))
	}
}
