package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"vmpool/internal/domain"
)

const (
	unknownValue          = " - "
	maxSoftwareVersionLen = 10
	maxBareSoftwareLen    = 20
)

// ParsePoolsCSV reads pool definitions from the admin import format. The first
// row is a header. Columns are: id, "Display Name (OS)", maximum count,
// enabled ("true" enables, anything else disables) and an optional
// comma-separated software list of "Name (Version)" entries.
func ParsePoolsCSV(r io.Reader) ([]domain.Pool, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	if _, err := reader.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	var (
		pools []domain.Pool
		errs  []string
		seen  = make(map[string]struct{})
	)
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		line, _ := reader.FieldPos(0)
		if isBlankRow(row) {
			continue
		}
		pool, err := parsePoolRow(row)
		if err != nil {
			errs = append(errs, fmt.Sprintf("line %d: %v", line, err))
			continue
		}
		if _, dup := seen[pool.ID]; dup {
			errs = append(errs, fmt.Sprintf("line %d: duplicate id %q", line, pool.ID))
			continue
		}
		seen[pool.ID] = struct{}{}
		pools = append(pools, pool)
	}
	if len(errs) > 0 {
		return nil, errors.New(strings.Join(errs, "; "))
	}
	return pools, nil
}

func parsePoolRow(row []string) (domain.Pool, error) {
	if len(row) < 4 {
		return domain.Pool{}, fmt.Errorf("expected at least 4 columns, got %d", len(row))
	}
	id := strings.TrimSpace(row[0])
	if id == "" {
		return domain.Pool{}, errors.New("id is required")
	}
	count, err := strconv.Atoi(strings.TrimSpace(row[2]))
	if err != nil {
		return domain.Pool{}, fmt.Errorf("maximum count %q is not a number", row[2])
	}
	if count < 0 {
		return domain.Pool{}, fmt.Errorf("maximum count must be >= 0, got %d", count)
	}

	displayName, osName := splitDisplayName(row[1])
	pool := domain.Pool{
		ID:           id,
		DisplayName:  displayName,
		MaximumCount: count,
		Enabled:      strings.TrimSpace(row[3]) == "true",
		OSName:       osName,
	}
	if len(row) > 4 {
		software, notes := parseSoftwareList(row[4])
		pool.InstalledSoftware = software
		pool.Description = strings.Join(notes, " | ")
	}
	return pool, nil
}

// splitDisplayName separates "Ubuntu 20.04 (Linux)" into display name and OS.
func splitDisplayName(value string) (string, string) {
	open := strings.Index(value, "(")
	closing := strings.Index(value, ")")
	if open < 0 || closing < open {
		return strings.TrimSpace(value), unknownValue
	}
	return strings.TrimSpace(value[:open]), strings.TrimSpace(value[open+1 : closing])
}

// parseSoftwareList splits the software column. Long entries without a version
// are free-text notes rather than packages and are returned separately.
func parseSoftwareList(value string) ([]domain.Software, []string) {
	var (
		software []domain.Software
		notes    []string
	)
	for _, entry := range strings.Split(value, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		open := strings.Index(entry, "(")
		closing := strings.Index(entry, ")")
		if open < 0 || closing < open {
			if len(entry) > maxBareSoftwareLen {
				notes = append(notes, entry)
				continue
			}
			software = append(software, domain.Software{Name: entry, Version: unknownValue})
			continue
		}
		version := strings.TrimSpace(entry[open+1 : closing])
		if len(version) > maxSoftwareVersionLen {
			version = unknownValue
		}
		software = append(software, domain.Software{
			Name:    strings.TrimSpace(entry[:open]),
			Version: version,
		})
	}
	return software, notes
}

func isBlankRow(row []string) bool {
	for _, field := range row {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}
