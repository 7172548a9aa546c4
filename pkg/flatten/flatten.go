// Package flatten reshapes harvested records into flat tabular rows for
// CSV export. It is a pure, stateless collaborator of the pipeline: it
// never mutates the records it reads.
package flatten

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/draftpark/carharvest/pkg/scraper"
)

// Flatten converts one record into a flat column map:
//
//   - seed attributes map to columns of the same name
//   - seller_types (a list) collapses into a comma-joined string
//   - the image sub-object expands into image_<key> columns
//   - each spec group becomes <group title>_<attr label> columns, with
//     titles and labels lowercased and spaces replaced by underscores
func Flatten(rec scraper.Record) map[string]string {
	row := make(map[string]string, len(rec.Attrs))

	for key, value := range rec.Attrs {
		switch key {
		case "seller_types":
			row[key] = joinList(value)
		case "image":
			if img, ok := value.(map[string]any); ok {
				for k, v := range img {
					row["image_"+k] = stringify(v)
				}
			} else {
				row[key] = stringify(value)
			}
		default:
			row[key] = stringify(value)
		}
	}

	groups, ok := rec.Specs.([]any)
	if !ok {
		return row
	}
	for _, g := range groups {
		group, ok := g.(map[string]any)
		if !ok {
			continue
		}
		title, _ := group["title"].(string)
		attrs, _ := group["attrs"].([]any)
		prefix := snake(title)
		for _, a := range attrs {
			attr, ok := a.(map[string]any)
			if !ok {
				continue
			}
			label, _ := attr["label"].(string)
			if label == "" {
				continue
			}
			row[prefix+"_"+snake(label)] = stringify(attr["value"])
		}
	}

	return row
}

// Columns returns the sorted union of column names across all rows.
func Columns(rows []map[string]string) []string {
	seen := make(map[string]struct{})
	for _, row := range rows {
		for col := range row {
			seen[col] = struct{}{}
		}
	}
	cols := make([]string, 0, len(seen))
	for col := range seen {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	return cols
}

// WriteCSV flattens all records and writes them as CSV with a header row.
func WriteCSV(w io.Writer, records []scraper.Record) error {
	rows := make([]map[string]string, 0, len(records))
	for _, rec := range records {
		rows = append(rows, Flatten(rec))
	}
	cols := Columns(rows)

	cw := csv.NewWriter(w)
	if err := cw.Write(cols); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	line := make([]string, len(cols))
	for _, row := range rows {
		for i, col := range cols {
			line[i] = row[col]
		}
		if err := cw.Write(line); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func snake(s string) string {
	return strings.ToLower(strings.ReplaceAll(s, " ", "_"))
}

func joinList(v any) string {
	list, ok := v.([]any)
	if !ok {
		return stringify(v)
	}
	parts := make([]string, 0, len(list))
	for _, item := range list {
		parts = append(parts, stringify(item))
	}
	return strings.Join(parts, ",")
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", t)
	}
}
