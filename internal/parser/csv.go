package parser

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/dgallion1/docshift/internal/doctree"
)

// CSVParser handles CSV files. The file becomes one table whose first record
// is the header row.
type CSVParser struct{}

func (p *CSVParser) Parse(r io.Reader, filename string) (*doctree.Document, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}

	doc := newDocument("csv", filename)
	if len(records) == 0 {
		return doc, nil
	}

	table := &doctree.Table{}
	for i, record := range records {
		row := &doctree.TableRow{
			Base:   doctree.Base{Source: source("csv", 0, i+1, "")},
			Header: i == 0,
		}
		for _, field := range record {
			cell := &doctree.TableCell{}
			if field != "" {
				cell.Children = textLines(field)
			}
			row.Cells = append(row.Cells, cell)
		}
		table.Rows = append(table.Rows, row)
	}
	doc.Children = append(doc.Children, table)
	doctree.SetMeta(doc, "rows", len(records)-1)
	return doc, nil
}
