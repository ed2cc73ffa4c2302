package domain

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const csvDelimiter = ","

// ExportCSV writes rows as a comma-delimited document. An empty input writes
// nothing.
//
// The first row defines the schema: headers are its keys in order and every
// later row is rendered against them. Missing or null values become empty
// cells and fields absent from the first row are dropped. Text containing the
// delimiter is quoted with embedded quotes doubled; all other values are
// written verbatim. Lines are separated by "\n" with no trailing newline.
func ExportCSV(w io.Writer, rows []Row) error {
	if len(rows) == 0 {
		return nil
	}

	headers := rows[0].Keys()
	bw := bufio.NewWriter(w)

	if _, err := bw.WriteString(strings.Join(headers, csvDelimiter)); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	cells := make([]string, len(headers))
	for i, row := range rows {
		for j, h := range headers {
			v, _ := row.Get(h)
			cells[j] = formatCell(v)
		}
		if _, err := bw.WriteString("\n" + strings.Join(cells, csvDelimiter)); err != nil {
			return fmt.Errorf("write csv row %d: %w", i, err)
		}
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// ExportFilename names an export file after the source and the UTC bounds of
// the range, with ':' and 'T' replaced so the name is safe on any filesystem.
func ExportFilename(source string, r DateRange) string {
	clean := strings.NewReplacer(":", "-", "T", "-", "/", "-", "\\", "-", " ", "-")
	start := clean.Replace(r.Start.UTC().Format("2006-01-02T15:04:05"))
	end := clean.Replace(r.End.UTC().Format("2006-01-02T15:04:05"))
	name := strings.NewReplacer("/", "-", "\\", "-", " ", "-").Replace(source)
	return fmt.Sprintf("%s-%s-%s.csv", name, start, end)
}

func formatCell(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return quoteIfDelimited(t)
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return quoteIfDelimited(fmt.Sprint(t))
		}
		return quoteIfDelimited(string(b))
	}
}

func quoteIfDelimited(s string) string {
	if !strings.Contains(s, csvDelimiter) {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
