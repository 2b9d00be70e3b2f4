// Package directory loads the company-to-document mapping that scopes every
// question to one source filing. Mappings ship either as CSV exports or as
// the original XLSX dataset sheet.
package directory

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/antonkh/filings-qa/internal/core/domain"
)

const (
	nameColumn     = "company_name"
	documentColumn = "sha1"
)

// Load reads an entity mapping file and returns name to document-id pairs.
// The format is picked by extension; CSV is the default.
func Load(path string) (map[string]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return LoadXLSX(path)
	default:
		return LoadCSV(path)
	}
}

// LoadCSV reads a mapping with company_name and sha1 columns, located by
// header name so extra columns and any column order are fine.
func LoadCSV(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, domain.WrapError(domain.ErrConfiguration, "directory.LoadCSV", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, domain.WrapError(domain.ErrConfiguration, "directory.LoadCSV", fmt.Errorf("read header: %w", err))
	}
	nameIdx, docIdx, err := locateColumns(header)
	if err != nil {
		return nil, domain.WrapError(domain.ErrConfiguration, "directory.LoadCSV", err)
	}

	entries := make(map[string]string)
	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, domain.WrapError(domain.ErrConfiguration, "directory.LoadCSV", fmt.Errorf("line %d: %w", line, err))
		}
		if err := addEntry(entries, record, nameIdx, docIdx, line); err != nil {
			return nil, err
		}
	}
	return entries, nil
}

// LoadXLSX reads the same mapping from the first sheet of a workbook.
func LoadXLSX(path string) (map[string]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, domain.WrapError(domain.ErrConfiguration, "directory.LoadXLSX", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, domain.WrapError(domain.ErrConfiguration, "directory.LoadXLSX", fmt.Errorf("workbook has no sheets"))
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, domain.WrapError(domain.ErrConfiguration, "directory.LoadXLSX", err)
	}
	if len(rows) == 0 {
		return nil, domain.WrapError(domain.ErrConfiguration, "directory.LoadXLSX", fmt.Errorf("sheet %q is empty", sheet))
	}

	nameIdx, docIdx, err := locateColumns(rows[0])
	if err != nil {
		return nil, domain.WrapError(domain.ErrConfiguration, "directory.LoadXLSX", err)
	}

	entries := make(map[string]string)
	for i, row := range rows[1:] {
		// Trailing empty cells are dropped by excelize; pad before indexing.
		for len(row) <= nameIdx || len(row) <= docIdx {
			row = append(row, "")
		}
		if err := addEntry(entries, row, nameIdx, docIdx, i+2); err != nil {
			return nil, err
		}
	}
	return entries, nil
}

func locateColumns(header []string) (nameIdx, docIdx int, err error) {
	nameIdx, docIdx = -1, -1
	for i, column := range header {
		switch strings.ToLower(strings.TrimSpace(column)) {
		case nameColumn:
			nameIdx = i
		case documentColumn:
			docIdx = i
		}
	}
	if nameIdx < 0 || docIdx < 0 {
		return 0, 0, fmt.Errorf("header must contain %q and %q columns, got %v", nameColumn, documentColumn, header)
	}
	return nameIdx, docIdx, nil
}

func addEntry(entries map[string]string, record []string, nameIdx, docIdx, line int) error {
	name := strings.TrimSpace(strings.Trim(strings.TrimSpace(record[nameIdx]), `"`))
	documentID := strings.TrimSpace(record[docIdx])
	if name == "" && documentID == "" {
		return nil
	}
	if name == "" || documentID == "" {
		return domain.WrapError(domain.ErrConfiguration, "directory",
			fmt.Errorf("line %d: incomplete mapping entry %q -> %q", line, name, documentID))
	}
	if existing, ok := entries[name]; ok && existing != documentID {
		return domain.WrapError(domain.ErrConfiguration, "directory",
			fmt.Errorf("line %d: company %q mapped to both %q and %q", line, name, existing, documentID))
	}
	entries[name] = documentID
	return nil
}
