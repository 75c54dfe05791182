package fetcher

import (
	"bytes"

	"github.com/extrame/xls"
	"github.com/rotisserie/eris"

	"github.com/sells-group/ohss-collector/internal/model"
)

// readXLS reads the first sheet of a legacy BIFF workbook. The reader only
// exposes rendered text, so every cell is a String.
func readXLS(data []byte) (grid [][]model.Value, err error) {
	// The BIFF decoder panics on some malformed streams.
	defer func() {
		if r := recover(); r != nil {
			grid, err = nil, eris.Errorf("xls: malformed workbook: %v", r)
		}
	}()

	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, eris.Wrap(err, "xls: open")
	}
	if wb.NumSheets() == 0 {
		return nil, eris.New("xls: workbook has no sheets")
	}
	sheet := wb.GetSheet(0)
	if sheet == nil {
		return nil, eris.New("xls: first sheet unreadable")
	}

	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := sheet.Row(i)
		if row == nil {
			grid = append(grid, nil)
			continue
		}
		last := row.LastCol()
		cells := make([]model.Value, last)
		for j := range cells {
			if j < row.FirstCol() {
				cells[j] = model.Absent()
				continue
			}
			cells[j] = model.String(row.Col(j))
		}
		grid = append(grid, cells)
	}
	return grid, nil
}
