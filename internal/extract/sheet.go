package extract

import (
	"bytes"
	"encoding/csv"
	"io"
	"path"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/sports-intake/internal/model"
)

const (
	mediaXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	mediaCSV  = "text/csv"
	mediaText = "text/plain"
)

// isSheet reports whether the artifact is a spreadsheet rendered to text.
func isSheet(mediaType, filename string) bool {
	if mediaType == mediaXLSX || mediaType == mediaCSV {
		return true
	}
	switch strings.ToLower(path.Ext(filename)) {
	case ".xlsx", ".csv":
		return true
	}
	return false
}

// renderSheet converts a spreadsheet into pipe-delimited rows, one sheet after
// another, keeping at most maxRows rows per sheet.
func renderSheet(data []byte, mediaType, filename string, maxRows int) (string, error) {
	var sheets map[string][][]string
	var order []string
	var err error

	if mediaType == mediaXLSX || strings.EqualFold(path.Ext(filename), ".xlsx") {
		sheets, order, err = readXLSX(data)
	} else {
		var rows [][]string
		rows, err = readCSV(bytes.NewReader(data))
		sheets, order = map[string][][]string{"": rows}, []string{""}
	}
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, name := range order {
		rows := sheets[name]
		if name != "" {
			b.WriteString("## ")
			b.WriteString(name)
			b.WriteByte('\n')
		}
		for i, row := range rows {
			if maxRows > 0 && i >= maxRows {
				b.WriteString("(truncated)\n")
				break
			}
			if isBlank(row) {
				continue
			}
			b.WriteString(strings.Join(row, " | "))
			b.WriteByte('\n')
		}
	}
	out := strings.TrimSpace(b.String())
	if out == "" {
		return "", eris.Wrap(model.ErrInvalidInput, "extract: spreadsheet has no rows")
	}
	return out, nil
}

func readXLSX(data []byte) (map[string][][]string, []string, error) {
	f, err := xlsx.OpenBinary(data)
	if err != nil {
		return nil, nil, eris.Wrapf(model.ErrInvalidInput, "extract: open xlsx: %v", err)
	}
	sheets := make(map[string][][]string, len(f.Sheets))
	order := make([]string, 0, len(f.Sheets))
	for _, sheet := range f.Sheets {
		rows := make([][]string, 0, len(sheet.Rows))
		for _, row := range sheet.Rows {
			rows = append(rows, rowToStrings(row))
		}
		sheets[sheet.Name] = rows
		order = append(order, sheet.Name)
	}
	return sheets, order, nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = strings.TrimSpace(cell.String())
	}
	return cells
}

func readCSV(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return nil, eris.Wrapf(model.ErrInvalidInput, "extract: read csv: %v", err)
		}
		for i, field := range record {
			record[i] = strings.TrimSpace(field)
		}
		rows = append(rows, record)
	}
}

func isBlank(row []string) bool {
	for _, c := range row {
		if c != "" {
			return false
		}
	}
	return true
}
