package services

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultProductName groups tables that match no prefix and carry no
// namespace prefix of their own.
const DefaultProductName = "general"

// ProductGroups configures how the schema builder groups tables into
// logical products. Resolution order: explicit table assignment, then
// prefix match, then the table's own namespace prefix, then the default.
type ProductGroups struct {
	DefaultProduct string         `yaml:"default_product"`
	Groups         []ProductGroup `yaml:"groups"`
}

// ProductGroup assigns tables to one product, either by explicit name or by
// table-name prefix.
type ProductGroup struct {
	Name     string   `yaml:"name"`
	Prefixes []string `yaml:"prefixes"`
	Tables   []string `yaml:"tables"`
}

// LoadProductGroups reads grouping configuration from a YAML file.
func LoadProductGroups(path string) (*ProductGroups, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read product groups file: %w", err)
	}

	var groups ProductGroups
	if err := yaml.Unmarshal(data, &groups); err != nil {
		return nil, fmt.Errorf("parse product groups file: %w", err)
	}

	if groups.DefaultProduct == "" {
		groups.DefaultProduct = DefaultProductName
	}

	return &groups, nil
}

// ProductFor resolves the product name for a table. A nil receiver falls
// back to namespace-prefix grouping, so the schema builder can run without
// any grouping configuration.
func (g *ProductGroups) ProductFor(table string) string {
	if g != nil {
		lower := strings.ToLower(table)
		for _, group := range g.Groups {
			for _, t := range group.Tables {
				if strings.EqualFold(t, table) {
					return group.Name
				}
			}
			for _, prefix := range group.Prefixes {
				if strings.HasPrefix(lower, strings.ToLower(prefix)) {
					return group.Name
				}
			}
		}
		if prefix := namespacePrefix(table); prefix != "" {
			return prefix
		}
		return g.DefaultProduct
	}

	if prefix := namespacePrefix(table); prefix != "" {
		return prefix
	}
	return DefaultProductName
}

// namespacePrefix extracts the lowercase part before the first underscore,
// e.g. "billing_invoices" belongs to "billing". Tables without an
// underscore have no namespace prefix.
func namespacePrefix(table string) string {
	idx := strings.Index(table, "_")
	if idx <= 0 {
		return ""
	}
	return strings.ToLower(table[:idx])
}
