package corpus

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/segment-advisor/internal/core/domain"
)

// extractCSV turns every data row into one document of "header: value" lines.
func extractCSV(raw []byte, base map[string]string) ([]domain.Document, error) {
	reader := csv.NewReader(strings.NewReader(decodeText(raw)))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	var out []domain.Document
	for row := 0; ; row++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row %d: %w", row, err)
		}
		if content := rowContent(header, record); content != "" {
			out = append(out, domain.NewDocument(content, withMeta(base, domain.MetaRow, strconv.Itoa(row))))
		}
	}
	return out, nil
}

func extractXLSX(raw []byte, base map[string]string) ([]domain.Document, error) {
	f, err := excelize.OpenReader(readerOf(raw))
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	var out []domain.Document
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
		}
		if len(rows) < 2 {
			continue
		}
		header := rows[0]
		for i, record := range rows[1:] {
			if content := rowContent(header, record); content != "" {
				out = append(out, domain.NewDocument(content, withMeta(base,
					domain.MetaSheet, sheet,
					domain.MetaRow, strconv.Itoa(i),
				)))
			}
		}
	}
	return out, nil
}

// extractPDF emits one document per page with text; page numbers start at 1.
func extractPDF(raw []byte, base map[string]string) ([]domain.Document, error) {
	reader, err := pdf.NewReader(readerOf(raw), int64(len(raw)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	var out []domain.Document
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("extract page %d: %w", i, err)
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		out = append(out, domain.NewDocument(text, withMeta(base, domain.MetaPage, strconv.Itoa(i))))
	}
	return out, nil
}

func rowContent(header, record []string) string {
	lines := make([]string, 0, len(record))
	for i, value := range record {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		name := ""
		if i < len(header) {
			name = strings.TrimSpace(header[i])
		}
		if name == "" {
			name = "col" + strconv.Itoa(i+1)
		}
		lines = append(lines, name+": "+value)
	}
	return strings.Join(lines, "\n")
}
