// Package fetcher downloads portal documents and parses CSV, XLSX and XLS tables.
package fetcher

import (
	"bytes"
	"encoding/csv"
	"io"

	"github.com/rotisserie/eris"

	"github.com/sells-group/ohss-collector/internal/model"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// readCSV reads every record as String cells. Empty cells become Absent.
func readCSV(data []byte) ([][]model.Value, error) {
	reader := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, utf8BOM)))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var grid [][]model.Value
	for {
		record, err := reader.Read()
		if err == io.EOF {
			return grid, nil
		}
		if err != nil {
			return nil, eris.Wrap(err, "csv: read row")
		}
		cells := make([]model.Value, len(record))
		for i, field := range record {
			cells[i] = model.String(field)
		}
		grid = append(grid, cells)
	}
}
