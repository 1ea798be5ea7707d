// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package tables reads the whitespace-delimited label tables distributed with the CelebA
// family of datasets (partitions, attributes, identities, bounding boxes, landmarks and the
// CelebA-HQ to CelebA mapping).
//
// Each row starts with an index column (usually an image file name) followed by integer values.
// Some files start with a count line and/or a header line, skipped with the `header` argument.
package tables

import (
	"bufio"
	"os"
	"strconv"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/pkg/errors"
)

// NoHeader can be passed as the header line to Load for files without a header.
const NoHeader = -1

// Table holds the contents of an integer label table.
type Table struct {
	// Header holds the column names, if the file has a header line.
	// Notice the header may or may not include a name for the index column.
	Header []string

	// Index holds the first column of each row.
	Index []string

	// Data holds the integer columns of each row. All rows have the same number of columns.
	Data [][]int64
}

// NumRows in the table.
func (t *Table) NumRows() int { return len(t.Index) }

// NumCols returns the number of data columns (excluding the index).
func (t *Table) NumCols() int {
	if len(t.Data) == 0 {
		return len(t.Header)
	}
	return len(t.Data[0])
}

// readFields reads path and returns the whitespace separated fields of each non-empty line.
func readFields(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open table %q", path)
	}
	defer func() { _ = f.Close() }()
	var lines [][]string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		lines = append(lines, fields)
	}
	if err = scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "failed reading table %q", path)
	}
	return lines, nil
}

// Load a table from path. The line (0-based) `header` holds the column names, and the rows follow it.
// Lines before the header line are discarded. Use NoHeader if the file has no header.
func Load(path string, header int) (*Table, error) {
	lines, err := readFields(path)
	if err != nil {
		return nil, err
	}
	t := &Table{}
	if header != NoHeader {
		if header >= len(lines) {
			return nil, errors.Errorf("table %q has %d lines, can't read header from line %d", path, len(lines), header)
		}
		t.Header = lines[header]
		lines = lines[header+1:]
	}
	t.Index = make([]string, 0, len(lines))
	t.Data = make([][]int64, 0, len(lines))
	for lineIdx, fields := range lines {
		row := make([]int64, len(fields)-1)
		for col, field := range fields[1:] {
			row[col], err = strconv.ParseInt(field, 10, 64)
			if err != nil {
				return nil, errors.Wrapf(err, "table %q, row %d (%q), column %d", path, lineIdx, fields[0], col+1)
			}
		}
		if len(t.Data) > 0 && len(row) != len(t.Data[0]) {
			return nil, errors.Errorf("table %q, row %d (%q) has %d columns, expected %d",
				path, lineIdx, fields[0], len(row), len(t.Data[0]))
		}
		t.Index = append(t.Index, fields[0])
		t.Data = append(t.Data, row)
	}
	return t, nil
}

// LoadIDMap loads the CelebA-HQ to CelebA mapping file: it maps the original CelebA file name
// (third column) to the CelebA-HQ file name "<idx>.jpg", where idx is the first column.
//
// Lines up to and including the `header` line are skipped.
func LoadIDMap(path string, header int) (map[string]string, error) {
	lines, err := readFields(path)
	if err != nil {
		return nil, err
	}
	if header != NoHeader {
		lines = lines[min(header+1, len(lines)):]
	}
	idMap := make(map[string]string, len(lines))
	for lineIdx, fields := range lines {
		if len(fields) < 3 {
			return nil, errors.Errorf("id map %q, row %d has %d columns, expected at least 3", path, lineIdx, len(fields))
		}
		idMap[fields[2]] = fields[0] + ".jpg"
	}
	return idMap, nil
}

// DataFrame converts the table to a gota DataFrame, with the index in a string column named
// indexName, followed by one integer column per data column.
//
// Column names are taken from the last NumCols() entries of the header, or "col_<i>" if
// there is no header.
func (t *Table) DataFrame(indexName string) dataframe.DataFrame {
	numCols := t.NumCols()
	names := make([]string, numCols)
	offset := len(t.Header) - numCols
	for col := range names {
		if offset >= 0 && len(t.Header) > 0 {
			names[col] = t.Header[offset+col]
		} else {
			names[col] = "col_" + strconv.Itoa(col)
		}
	}
	columns := make([]series.Series, 0, numCols+1)
	columns = append(columns, series.New(t.Index, series.String, indexName))
	for col, name := range names {
		values := make([]int, len(t.Data))
		for row := range t.Data {
			values[row] = int(t.Data[row][col])
		}
		columns = append(columns, series.New(values, series.Int, name))
	}
	return dataframe.New(columns...)
}
