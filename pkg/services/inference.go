package services

import (
	"sort"
	"strings"

	"github.com/jinzhu/inflection"
	"github.com/texttheater/golang-levenshtein/levenshtein"
	"go.uber.org/zap"

	"github.com/dbcanvas/dbcanvas-engine/pkg/adapters/datasource"
	"github.com/dbcanvas/dbcanvas-engine/pkg/models"
)

// Inference configuration constants
const (
	// MinTableNameLenForSubstring guards the substring fallback against
	// matching very short table names inside unrelated column names.
	MinTableNameLenForSubstring = 3

	// SuffixNearMatchThreshold is the minimum Levenshtein similarity for a
	// stripped column remainder to count as a table-name hit when no exact
	// match exists.
	SuffixNearMatchThreshold = 0.85
)

// fkSuffixes are the recognized foreign-key column suffixes, in match order.
// Longer suffixes are tried first so "InvoiceNumber" strips "number" rather
// than nothing.
var fkSuffixes = []string{"number", "code", "key", "id"}

// RelationshipInference infers foreign-key mappings from table metadata.
// Implementations must be deterministic: identical input yields identical
// output, including confidences and winning mappings.
type RelationshipInference interface {
	Discover(tables []datasource.TableMetadata) map[string][]models.FKMapping
}

// InferenceEngine discovers likely foreign keys using three ranked
// name-based heuristics. It is a pure function of schema metadata: no
// queries, no side effects.
//
// Discovery is best-effort. The heuristics can disagree with the true
// constraints a database would declare; confidence scores exist so consumers
// can treat low-confidence edges accordingly.
type InferenceEngine struct {
	// roleTargets maps normalized semantic role names to target tables,
	// e.g. "invoicingparty" -> "Supplier". Checked before any pattern
	// matching and carries the highest confidence.
	roleTargets map[string]string
	logger      *zap.Logger
}

// NewInferenceEngine creates an inference engine with the default role table.
// If logger is nil, a no-op logger is used.
func NewInferenceEngine(logger *zap.Logger) *InferenceEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InferenceEngine{
		roleTargets: defaultRoleTargets(),
		logger:      logger,
	}
}

// defaultRoleTargets returns the built-in semantic role table. Keys are
// normalized column names (lowercase, underscores removed).
func defaultRoleTargets() map[string]string {
	return map[string]string{
		"invoicingparty": "Supplier",
		"vendor":         "Supplier",
		"companycode":    "Company",
		"buyer":          "Customer",
		"soldtoparty":    "Customer",
	}
}

// WithRole registers an additional semantic role mapping and returns the
// engine for chaining. Role names are normalized before lookup.
func (e *InferenceEngine) WithRole(roleName, targetTable string) *InferenceEngine {
	e.roleTargets[normalizeName(roleName)] = targetTable
	return e
}

// Discover returns, for every supplied table, zero or more FK mappings for
// columns that look like foreign keys. Strategies are applied per column in
// rank order and the first strategy that matches wins; ties inside a
// strategy are broken by name length and lexicographic order, never by
// confidence, so output is fully deterministic.
//
// Self-references are retained; callers that need to suppress self-loops
// check FKMapping.IsSelfReference. Empty input returns an empty map and
// never fails.
func (e *InferenceEngine) Discover(tables []datasource.TableMetadata) map[string][]models.FKMapping {
	result := make(map[string][]models.FKMapping, len(tables))
	if len(tables) == 0 {
		return result
	}

	lookup := buildTableLookup(tables)

	total := 0
	for _, table := range tables {
		mappings := make([]models.FKMapping, 0)
		for _, col := range table.Columns {
			mappings = append(mappings, e.inferColumn(table.TableName, col.ColumnName, lookup)...)
		}
		result[table.TableName] = mappings
		total += len(mappings)
	}

	e.logger.Debug("Discovered FK mappings",
		zap.Int("tables", len(tables)),
		zap.Int("mappings", total))

	return result
}

// inferColumn applies the ranked strategies to one column. Returns at most
// one mapping for strategies 1 and 2; the substring fallback may return
// several when the column name contains more than one known table name, in
// which case they are ordered best-first.
func (e *InferenceEngine) inferColumn(tableName, columnName string, lookup *tableLookup) []models.FKMapping {
	normalized := normalizeName(columnName)

	// Strategy 1: role-based name match.
	if target, ok := e.roleTargets[normalized]; ok {
		return []models.FKMapping{{
			SourceTable:  tableName,
			SourceColumn: columnName,
			TargetTable:  target,
			Confidence:   models.ConfidenceRoleName,
			Method:       models.DiscoveryMethodRoleName,
		}}
	}

	// Strategy 2: suffix-pattern match.
	if target, ok := e.matchSuffixPattern(normalized, lookup); ok {
		return []models.FKMapping{{
			SourceTable:  tableName,
			SourceColumn: columnName,
			TargetTable:  target,
			Confidence:   models.ConfidenceSuffixPattern,
			Method:       models.DiscoveryMethodSuffixPattern,
		}}
	}

	// Strategy 3: known-table-name substring fallback.
	targets := lookup.substringMatches(normalized)
	if len(targets) == 0 {
		return nil
	}
	mappings := make([]models.FKMapping, 0, len(targets))
	for _, target := range targets {
		mappings = append(mappings, models.FKMapping{
			SourceTable:  tableName,
			SourceColumn: columnName,
			TargetTable:  target,
			Confidence:   models.ConfidenceTableNameMatch,
			Method:       models.DiscoveryMethodTableNameMatch,
		})
	}
	return mappings
}

// matchSuffixPattern strips a recognized FK suffix from the normalized
// column name and resolves the remainder against known table names, first
// exactly, then by Levenshtein near-match.
func (e *InferenceEngine) matchSuffixPattern(normalized string, lookup *tableLookup) (string, bool) {
	for _, suffix := range fkSuffixes {
		if !strings.HasSuffix(normalized, suffix) || len(normalized) <= len(suffix) {
			continue
		}
		remainder := strings.TrimSuffix(normalized, suffix)

		if target, ok := lookup.exactMatch(remainder); ok {
			return target, true
		}
		if target, ok := lookup.nearMatch(remainder); ok {
			return target, true
		}
	}
	return "", false
}

// tableLookup resolves normalized name variants back to original table names.
type tableLookup struct {
	// variants maps normalized table names, including singular and plural
	// forms, to the original table name.
	variants map[string]string
	// ordered holds normalized original names sorted longest-first then
	// lexicographic, the deterministic scan order for substring and
	// near-match resolution.
	ordered []string
}

func buildTableLookup(tables []datasource.TableMetadata) *tableLookup {
	l := &tableLookup{variants: make(map[string]string, len(tables)*3)}

	names := make([]string, 0, len(tables))
	for _, t := range tables {
		names = append(names, t.TableName)
	}
	// Shorter names registered first so longer originals win variant
	// collisions (e.g. "order" vs "orders" both singularize to "order").
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) < len(names[j])
		}
		return names[i] < names[j]
	})

	for _, name := range names {
		normalized := normalizeName(name)
		l.variants[normalized] = name
		l.variants[normalizeName(inflection.Singular(name))] = name
		l.variants[normalizeName(inflection.Plural(name))] = name
	}

	for v := range l.variants {
		l.ordered = append(l.ordered, v)
	}
	sort.Slice(l.ordered, func(i, j int) bool {
		if len(l.ordered[i]) != len(l.ordered[j]) {
			return len(l.ordered[i]) > len(l.ordered[j])
		}
		return l.ordered[i] < l.ordered[j]
	})

	return l
}

// exactMatch resolves a normalized name to a table, including
// singular/plural variants.
func (l *tableLookup) exactMatch(normalized string) (string, bool) {
	target, ok := l.variants[normalized]
	return target, ok
}

// nearMatch finds the closest table variant by Levenshtein similarity.
// Scan order is deterministic (longest variant first, then lexicographic)
// and the first variant at the best similarity wins.
func (l *tableLookup) nearMatch(normalized string) (string, bool) {
	if normalized == "" {
		return "", false
	}

	best := ""
	bestScore := 0.0
	for _, variant := range l.ordered {
		maxLen := len(variant)
		if len(normalized) > maxLen {
			maxLen = len(normalized)
		}
		if maxLen == 0 {
			continue
		}
		distance := levenshtein.DistanceForStrings([]rune(normalized), []rune(variant), levenshtein.DefaultOptions)
		similarity := 1.0 - float64(distance)/float64(maxLen)
		if similarity >= SuffixNearMatchThreshold && similarity > bestScore {
			best = variant
			bestScore = similarity
		}
	}

	if best == "" {
		return "", false
	}
	return l.variants[best], true
}

// substringMatches returns tables whose normalized name occurs inside the
// normalized column name, best-first (longest table name, then
// lexicographic). Duplicate targets from singular/plural variants collapse
// to one entry.
func (l *tableLookup) substringMatches(normalized string) []string {
	var targets []string
	seen := make(map[string]bool)
	for _, variant := range l.ordered {
		if len(variant) < MinTableNameLenForSubstring {
			continue
		}
		if !strings.Contains(normalized, variant) {
			continue
		}
		target := l.variants[variant]
		if seen[target] {
			continue
		}
		seen[target] = true
		targets = append(targets, target)
	}
	return targets
}

// normalizeName lowercases an identifier and strips underscores so that
// "supplier_id", "SupplierID" and "SUPPLIERID" all compare equal.
func normalizeName(name string) string {
	return strings.ReplaceAll(strings.ToLower(name), "_", "")
}

// WinningMappings reduces a table's mapping list to one mapping per source
// column. Discover orders mappings best-first within a column, so the first
// occurrence of each column wins. Input order is preserved otherwise.
func WinningMappings(mappings []models.FKMapping) []models.FKMapping {
	if len(mappings) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(mappings))
	winners := make([]models.FKMapping, 0, len(mappings))
	for _, m := range mappings {
		if seen[m.SourceColumn] {
			continue
		}
		seen[m.SourceColumn] = true
		winners = append(winners, m)
	}
	return winners
}

var _ RelationshipInference = (*InferenceEngine)(nil)
