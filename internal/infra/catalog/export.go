package catalog

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"vmpool/internal/domain"
)

type ExportFormat string

const (
	ExportYAML ExportFormat = "yaml"
	ExportTOML ExportFormat = "toml"
)

// ParseExportFormat accepts a format name or a file name whose extension
// selects the format.
func ParseExportFormat(value string) (ExportFormat, error) {
	v := strings.ToLower(strings.TrimSpace(value))
	if ext := filepath.Ext(v); ext != "" {
		v = strings.TrimPrefix(ext, ".")
	}
	switch v {
	case "yaml", "yml":
		return ExportYAML, nil
	case "toml":
		return ExportTOML, nil
	default:
		return "", fmt.Errorf("unsupported export format %q (want yaml or toml)", value)
	}
}

// exportDocument mirrors the pools section of the config file so a YAML export
// can be pasted back into configuration.
type exportDocument struct {
	Pools []exportPool `yaml:"pools" toml:"pools"`
}

type exportPool struct {
	ID                string           `yaml:"id" toml:"id"`
	DisplayName       string           `yaml:"displayName" toml:"displayName"`
	MaximumCount      int              `yaml:"maximumCount" toml:"maximumCount"`
	Enabled           bool             `yaml:"enabled" toml:"enabled"`
	Description       string           `yaml:"description,omitempty" toml:"description,omitempty"`
	OSName            string           `yaml:"osName,omitempty" toml:"osName,omitempty"`
	InstalledSoftware []exportSoftware `yaml:"installedSoftware,omitempty" toml:"installedSoftware,omitempty"`
}

type exportSoftware struct {
	Name    string `yaml:"name" toml:"name"`
	Version string `yaml:"version" toml:"version"`
}

// ExportPools writes pools to w in the requested format.
func ExportPools(w io.Writer, pools []domain.Pool, format ExportFormat) error {
	doc := exportDocument{Pools: make([]exportPool, 0, len(pools))}
	for _, p := range pools {
		ep := exportPool{
			ID:           p.ID,
			DisplayName:  p.DisplayName,
			MaximumCount: p.MaximumCount,
			Enabled:      p.Enabled,
			Description:  p.Description,
			OSName:       p.OSName,
		}
		for _, sw := range p.InstalledSoftware {
			ep.InstalledSoftware = append(ep.InstalledSoftware, exportSoftware(sw))
		}
		doc.Pools = append(doc.Pools, ep)
	}

	switch format {
	case ExportYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	case ExportTOML:
		if err := toml.NewEncoder(w).Encode(doc); err != nil {
			return fmt.Errorf("encode toml: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unsupported export format %q", format)
	}
}

// DecodePools reads a document produced by ExportPools.
func DecodePools(r io.Reader, format ExportFormat) ([]domain.Pool, error) {
	var doc exportDocument
	switch format {
	case ExportYAML:
		if err := yaml.NewDecoder(r).Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
	case ExportTOML:
		if err := toml.NewDecoder(r).Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode toml: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported import format %q", format)
	}

	pools := make([]domain.Pool, 0, len(doc.Pools))
	var errs []string
	for i, ep := range doc.Pools {
		pool := domain.Pool{
			ID:           strings.TrimSpace(ep.ID),
			DisplayName:  ep.DisplayName,
			MaximumCount: ep.MaximumCount,
			Enabled:      ep.Enabled,
			Description:  ep.Description,
			OSName:       ep.OSName,
		}
		for _, sw := range ep.InstalledSoftware {
			pool.InstalledSoftware = append(pool.InstalledSoftware, domain.Software(sw))
		}
		if poolErrs := validatePool(pool, fmt.Sprintf("pools[%d]", i)); len(poolErrs) > 0 {
			errs = append(errs, poolErrs...)
			continue
		}
		pools = append(pools, pool)
	}
	if len(errs) > 0 {
		return nil, errors.New(strings.Join(errs, "; "))
	}
	return pools, nil
}
