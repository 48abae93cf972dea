package handlers

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/dlow/portfolio-dashboard/internal/models"
)

// ParseTradesCSV parses a trade-history export CSV into raw rows.
// Required columns: symbol, date/time (or date), quantity, t. price (or price)
// Optional columns: action, currency (missing columns default to "")
// Rows with an empty symbol are skipped. Values are kept as strings: semantic
// validation (dates, numbers, currencies) is the normalizer's job, so one bad
// value rejects one row downstream instead of failing the file here.
func ParseTradesCSV(r io.Reader) ([]models.RawTradeRow, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	colIdx := make(map[string]int)
	for i, col := range header {
		colIdx[strings.ToLower(strings.TrimSpace(col))] = i
	}

	col := func(record []string, names ...string) string {
		for _, name := range names {
			if idx, ok := colIdx[name]; ok && idx < len(record) {
				return strings.TrimSpace(record[idx])
			}
		}
		return ""
	}

	if _, ok := colIdx["symbol"]; !ok {
		return nil, fmt.Errorf("missing required column: symbol")
	}
	if _, ok := colIdx["date/time"]; !ok {
		if _, ok := colIdx["date"]; !ok {
			return nil, fmt.Errorf("missing required column: date/time")
		}
	}
	if _, ok := colIdx["quantity"]; !ok {
		return nil, fmt.Errorf("missing required column: quantity")
	}
	if _, ok := colIdx["t. price"]; !ok {
		if _, ok := colIdx["price"]; !ok {
			return nil, fmt.Errorf("missing required column: t. price")
		}
	}

	var rows []models.RawTradeRow
	rowNum := 1 // header is row 1, data starts at row 2
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("row %d: failed to read CSV record: %w", rowNum+1, err)
		}
		rowNum++

		symbol := col(record, "symbol")
		if symbol == "" {
			continue
		}

		rows = append(rows, models.RawTradeRow{
			Symbol:   symbol,
			DateTime: col(record, "date/time", "date"),
			Action:   col(record, "action"),
			Quantity: col(record, "quantity"),
			Price:    col(record, "t. price", "price"),
			Currency: col(record, "currency"),
		})
	}

	return rows, nil
}
