package fetcher

import (
	"net/url"
	"path"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/ohss-collector/internal/model"
)

// Table is a parsed tabular file. The first row of the file supplies Headers;
// each remaining row becomes a Row keyed by those header labels.
type Table struct {
	Name    string
	Headers []string
	Rows    []model.Row
}

// Format is a supported tabular file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatXLS  Format = "xls"
)

// FormatOf returns the format implied by a file name or URL, ignoring any
// query string or fragment.
func FormatOf(name string) (Format, bool) {
	p := name
	if u, err := url.Parse(name); err == nil && u.Path != "" {
		p = u.Path
	}
	switch strings.ToLower(path.Ext(p)) {
	case ".csv":
		return FormatCSV, true
	case ".xlsx":
		return FormatXLSX, true
	case ".xls":
		return FormatXLS, true
	default:
		return "", false
	}
}

// ParseTable dispatches on the extension of name.
func ParseTable(name string, data []byte) (*Table, error) {
	format, ok := FormatOf(name)
	if !ok {
		return nil, eris.Errorf("fetcher: unsupported file type %q", name)
	}

	var (
		grid [][]model.Value
		err  error
	)
	switch format {
	case FormatCSV:
		grid, err = readCSV(data)
	case FormatXLSX:
		grid, err = readXLSX(data)
	case FormatXLS:
		grid, err = readXLS(data)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: parse %s", name)
	}
	return buildTable(name, grid), nil
}

// buildTable turns a cell grid into header-keyed rows. Columns with a blank
// header are dropped; a repeated header keeps its first column.
func buildTable(name string, grid [][]model.Value) *Table {
	t := &Table{Name: name}
	for len(grid) > 0 && blankCells(grid[0]) {
		grid = grid[1:]
	}
	if len(grid) == 0 {
		return t
	}

	cols := make([]string, len(grid[0]))
	seen := make(map[string]bool, len(grid[0]))
	for i, v := range grid[0] {
		label := v.Text()
		if label == "" || seen[label] {
			continue
		}
		seen[label] = true
		cols[i] = label
		t.Headers = append(t.Headers, label)
	}

	for _, cells := range grid[1:] {
		row := make(model.Row, len(t.Headers))
		for i, label := range cols {
			if label == "" {
				continue
			}
			if i < len(cells) {
				row[label] = cells[i]
			} else {
				row[label] = model.Absent()
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

func blankCells(cells []model.Value) bool {
	for _, v := range cells {
		if !v.IsAbsent() {
			return false
		}
	}
	return true
}
