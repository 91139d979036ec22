package datasource

import (
	"context"
	"fmt"
	"sync"

	"github.com/dbcanvas/dbcanvas-engine/pkg/apperrors"
)

// AdapterInfo describes a registered datasource adapter.
type AdapterInfo struct {
	Type        string `json:"type"`         // "postgres", "sqlserver"
	DisplayName string `json:"display_name"` // "PostgreSQL", "Microsoft SQL Server"
}

// AdapterRegistration contains adapter info plus the factory that opens a
// DataSource from a generic config map.
type AdapterRegistration struct {
	Info    AdapterInfo
	Factory func(ctx context.Context, config map[string]any) (DataSource, error)
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]AdapterRegistration)
)

// Register is called by each adapter's init() function.
// Thread-safe for concurrent init() calls.
func Register(reg AdapterRegistration) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[reg.Info.Type] = reg
}

// RegisteredAdapters returns info for all registered adapters.
func RegisteredAdapters() []AdapterInfo {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]AdapterInfo, 0, len(registry))
	for _, reg := range registry {
		result = append(result, reg.Info)
	}
	return result
}

// GetFactory returns the DataSource factory for a datasource type.
// Returns nil if the type is not registered.
func GetFactory(dsType string) func(ctx context.Context, config map[string]any) (DataSource, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	if reg, ok := registry[dsType]; ok {
		return reg.Factory
	}
	return nil
}

// Open creates a DataSource of the given type from a generic config map.
func Open(ctx context.Context, dsType string, config map[string]any) (DataSource, error) {
	factory := GetFactory(dsType)
	if factory == nil {
		return nil, fmt.Errorf("%w: %q", apperrors.ErrUnknownDatasource, dsType)
	}
	return factory(ctx, config)
}
