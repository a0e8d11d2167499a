package export

import (
	"bytes"
	"fmt"
	"strings"
	"text/tabwriter"
)

// renderText writes an aligned table for reading, not for parsing
func renderText(buf *bytes.Buffer, doc *document) error {
	fmt.Fprintf(buf, "Belege\nExportiert am: %s\n\n", doc.exportedAt.Format("02.01.2006 15:04"))

	tw := tabwriter.NewWriter(buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(columnLabels, "\t"))
	for _, row := range doc.rows {
		fmt.Fprintln(tw, strings.Join(row.Values(), "\t"))
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("writing table: %w", err)
	}

	if len(doc.rows) == 0 {
		buf.WriteString("\nKeine genehmigten Belege.\n")
		return nil
	}
	fmt.Fprintf(buf, "\n%d Belege, Summe brutto: %s EUR\n", len(doc.rows), doc.grossTotal.StringFixed(2))
	return nil
}
