package export

import (
	"bytes"
	"strings"
)

const (
	utf8BOM      = "\ufeff"
	csvSeparator = ";"
)

// renderCSV writes the accounting import format: BOM, ';' separated,
// every field quoted, one '\n' terminated line per receipt
func renderCSV(buf *bytes.Buffer, doc *document) error {
	buf.WriteString(utf8BOM)
	writeCSVLine(buf, Columns)
	for _, row := range doc.rows {
		writeCSVLine(buf, row.Values())
	}
	return nil
}

func writeCSVLine(buf *bytes.Buffer, fields []string) {
	for i, f := range fields {
		if i > 0 {
			buf.WriteString(csvSeparator)
		}
		buf.WriteByte('"')
		buf.WriteString(strings.ReplaceAll(f, `"`, `""`))
		buf.WriteByte('"')
	}
	buf.WriteByte('\n')
}
