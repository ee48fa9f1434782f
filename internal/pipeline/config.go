// Package pipeline ties discovery, inference, classification, and loading
// together for one named publication, and owns the pipeline's persisted
// configuration document.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/eamazon/datawarp-v3.1/internal/mapping"
	"github.com/eamazon/datawarp-v3.1/internal/storage"
)

// Config is the persisted state of one pipeline. It is stored as a single
// JSON document in the metadata store; the storage layer treats it as
// opaque bytes, so fields can evolve without backend changes.
type Config struct {
	Name string `json:"name"`

	// SourceURL is the publication listing page scanned during discovery.
	SourceURL string `json:"source_url,omitempty"`

	// FilePatterns filter discovered files by case-insensitive substring.
	// Empty means take everything.
	FilePatterns []string `json:"file_patterns,omitempty"`

	// TablePrefix namespaces the pipeline's tables, e.g. "workforce_".
	TablePrefix string `json:"table_prefix,omitempty"`

	// ReloadLast is how many recent periods to re-fetch on every run, to
	// pick up revisions publishers make to already-released months.
	ReloadLast int `json:"reload_last,omitempty"`

	// LoadUnknownGrain loads tables whose grain could not be classified.
	// Off by default: an unclassified table is usually a parsing accident.
	LoadUnknownGrain bool `json:"load_unknown_grain,omitempty"`

	// SheetMappings hold column identity per sheet, keyed by normalized
	// sheet name.
	SheetMappings map[string]*mapping.SheetMapping `json:"sheet_mappings,omitempty"`

	// LoadedPeriods are the canonical period strings ever loaded, sorted.
	LoadedPeriods []string `json:"loaded_periods,omitempty"`
}

// DefaultReloadLast re-fetches the two most recent periods, covering the
// publishers' habit of revising last month alongside the new release.
const DefaultReloadLast = 2

// LoadConfig fetches a pipeline's document, returning a fresh default
// config when the pipeline has never been saved.
func LoadConfig(ctx context.Context, meta storage.MetaStore, name string) (*Config, error) {
	doc, err := meta.LoadPipeline(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("load pipeline %s: %w", name, err)
	}
	if doc == nil {
		return &Config{Name: name, ReloadLast: DefaultReloadLast}, nil
	}

	var cfg Config
	if err := json.Unmarshal(doc, &cfg); err != nil {
		return nil, fmt.Errorf("decode pipeline %s: %w", name, err)
	}
	if cfg.Name == "" {
		cfg.Name = name
	}
	if cfg.ReloadLast == 0 {
		cfg.ReloadLast = DefaultReloadLast
	}
	return &cfg, nil
}

// Save persists the document.
func (c *Config) Save(ctx context.Context, meta storage.MetaStore) error {
	doc, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode pipeline %s: %w", c.Name, err)
	}
	if err := meta.SavePipeline(ctx, c.Name, doc); err != nil {
		return fmt.Errorf("save pipeline %s: %w", c.Name, err)
	}
	return nil
}

// Mapping returns the saved mapping for a sheet, or nil.
func (c *Config) Mapping(sheetKey string) *mapping.SheetMapping {
	return c.SheetMappings[sheetKey]
}

// SetMapping stores a sheet's mapping.
func (c *Config) SetMapping(sheetKey string, m *mapping.SheetMapping) {
	if c.SheetMappings == nil {
		c.SheetMappings = map[string]*mapping.SheetMapping{}
	}
	c.SheetMappings[sheetKey] = m
}

// TableName derives the physical table name for a sheet.
func (c *Config) TableName(sheetName string) string {
	return mapping.Truncate(c.TablePrefix + mapping.Identifier(sheetName))
}

// MarkPeriodLoaded records a period as loaded, keeping the list sorted and
// unique.
func (c *Config) MarkPeriodLoaded(p string) {
	for _, have := range c.LoadedPeriods {
		if have == p {
			return
		}
	}
	c.LoadedPeriods = append(c.LoadedPeriods, p)
	sort.Strings(c.LoadedPeriods)
}

// PeriodLoaded reports whether a period has been loaded before.
func (c *Config) PeriodLoaded(p string) bool {
	for _, have := range c.LoadedPeriods {
		if have == p {
			return true
		}
	}
	return false
}

// ShouldFetch decides whether a discovered period needs fetching: anything
// never loaded, plus the ReloadLast most recent loaded periods.
func (c *Config) ShouldFetch(p string) bool {
	if !c.PeriodLoaded(p) {
		return true
	}
	n := c.ReloadLast
	if n <= 0 {
		return false
	}
	recent := c.LoadedPeriods
	if len(recent) > n {
		recent = recent[len(recent)-n:]
	}
	for _, have := range recent {
		if have == p {
			return true
		}
	}
	return false
}
