package fetcher

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/ohss-collector/internal/model"
)

// readXLSX reads the first sheet of a workbook. Numeric cells become Number
// unless their display format renders them as non-numeric text (dates), in
// which case the formatted text is kept.
func readXLSX(data []byte) ([][]model.Value, error) {
	f, err := xlsx.OpenBinary(data)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: open")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("xlsx: workbook has no sheets")
	}

	sheet := f.Sheets[0]
	grid := make([][]model.Value, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		if row == nil {
			grid = append(grid, nil)
			continue
		}
		cells := make([]model.Value, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = xlsxValue(cell)
		}
		grid = append(grid, cells)
	}
	return grid, nil
}

func xlsxValue(cell *xlsx.Cell) model.Value {
	if cell == nil {
		return model.Absent()
	}
	text := cell.String()
	if cell.Type() != xlsx.CellTypeNumeric {
		return model.String(text)
	}
	if _, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(text), ",", ""), 64); err != nil {
		return model.String(text)
	}
	f, err := cell.Float()
	if err != nil {
		return model.String(text)
	}
	return model.Number(f)
}
