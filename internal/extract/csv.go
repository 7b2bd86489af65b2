package extract

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// csvSampleRows bounds the rows rendered into the description.
const csvSampleRows = 10

// describeCSV renders a header-first CSV as a textual summary: the column
// list followed by the first rows as "column: value" blocks.
func describeCSV(data []byte) (string, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	var records [][]string
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse csv: %w", err)
		}
		if isBlankRecord(rec) {
			continue
		}
		records = append(records, rec)
	}
	if len(records) == 0 {
		return "", errors.New("csv has no rows")
	}

	headers := records[0]
	rows := records[1:]

	var b strings.Builder
	fmt.Fprintf(&b, "CSV Document with %d rows and %d columns\n\n", len(rows), len(headers))
	fmt.Fprintf(&b, "Columns: %s\n\n", strings.Join(headers, ", "))
	for i, row := range rows {
		if i == csvSampleRows {
			break
		}
		fmt.Fprintf(&b, "Row %d:\n", i+1)
		for col, header := range headers {
			value := ""
			if col < len(row) {
				value = row[col]
			}
			fmt.Fprintf(&b, "  %s: %s\n", header, value)
		}
		b.WriteString("\n")
	}
	return b.String(), nil
}

func isBlankRecord(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
