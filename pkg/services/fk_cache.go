package services

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"sync"

	"github.com/dbcanvas/dbcanvas-engine/pkg/adapters/datasource"
	"github.com/dbcanvas/dbcanvas-engine/pkg/models"
)

// FKMappingCache holds inference results per table set so the schema and
// data builders never derive different FK conclusions for the same schema
// inside one request. It is an explicit object passed by reference between
// the builders, not a module-level singleton; create one per request scope
// and let it go out of scope with the request.
type FKMappingCache struct {
	mu      sync.Mutex
	entries map[string]map[string][]models.FKMapping
}

// NewFKMappingCache creates an empty cache.
func NewFKMappingCache() *FKMappingCache {
	return &FKMappingCache{
		entries: make(map[string]map[string][]models.FKMapping),
	}
}

// GetOrCompute returns the cached mapping set for the given tables, running
// the engine exactly once per distinct table set. Safe for concurrent use.
func (c *FKMappingCache) GetOrCompute(tables []datasource.TableMetadata, engine RelationshipInference) map[string][]models.FKMapping {
	key := tableSetFingerprint(tables)

	c.mu.Lock()
	defer c.mu.Unlock()

	if cached, ok := c.entries[key]; ok {
		return cached
	}

	mappings := engine.Discover(tables)
	c.entries[key] = mappings
	return mappings
}

// Len returns the number of distinct table sets cached.
func (c *FKMappingCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// tableSetFingerprint produces a stable digest of the table set's structure:
// table names with their ordered column names. Two calls with the same
// schema snapshot share one fingerprint regardless of table order.
func tableSetFingerprint(tables []datasource.TableMetadata) string {
	parts := make([]string, 0, len(tables))
	for _, t := range tables {
		cols := make([]string, 0, len(t.Columns))
		for _, c := range t.Columns {
			cols = append(cols, c.ColumnName)
		}
		parts = append(parts, t.TableName+"("+strings.Join(cols, ",")+")")
	}
	sort.Strings(parts)

	sum := sha256.Sum256([]byte(strings.Join(parts, ";")))
	return hex.EncodeToString(sum[:])
}
