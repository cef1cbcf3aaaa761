package menu

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"gopkg.in/yaml.v3"
)

// File reads a menu from disk. The format follows the extension: .json and
// .yaml/.yml hold a list of names; .csv and .xlsx use the first column of
// the first sheet, skipping a recognised header cell.
type File string

func (f File) String() string { return "file:" + string(f) }

func (f File) Load(context.Context) ([]string, error) {
	path := string(f)
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".xlsx" {
		return readXLSX(path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "menu: read %s", path)
	}
	switch ext {
	case ".yaml", ".yml":
		return parseYAML(data)
	case ".csv":
		return parseCSV(bytes.NewReader(data))
	default:
		return parseJSON(data)
	}
}

func parseYAML(data []byte) ([]string, error) {
	var arr []any
	if err := yaml.Unmarshal(data, &arr); err != nil {
		return nil, eris.Wrap(err, "menu: parse yaml list")
	}
	out := make([]string, 0, len(arr))
	for _, v := range arr {
		switch x := v.(type) {
		case nil:
		case string:
			out = appendName(out, x)
		case map[string]any:
			// - name: Croissant
			if name, ok := x["name"].(string); ok {
				out = appendName(out, name)
			}
		default:
			out = appendName(out, yamlScalar(x))
		}
	}
	return out, nil
}

func yamlScalar(v any) string {
	b, err := yaml.Marshal(v)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}

var headerCells = map[string]bool{"name": true, "item": true, "items": true, "menu": true}

func parseCSV(r io.Reader) ([]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.Comment = '#'

	var out []string
	first := true
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "menu: read csv row")
		}
		if len(record) == 0 {
			continue
		}
		cell := strings.TrimSpace(record[0])
		if first {
			first = false
			if headerCells[strings.ToLower(cell)] {
				continue
			}
		}
		out = appendName(out, cell)
	}
	if out == nil {
		out = []string{}
	}
	return out, nil
}

func readXLSX(path string) ([]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "menu: open xlsx")
	}
	if len(f.Sheets) == 0 {
		return []string{}, nil
	}

	out := []string{}
	for i, row := range f.Sheets[0].Rows {
		if row == nil || len(row.Cells) == 0 {
			continue
		}
		cell := strings.TrimSpace(row.Cells[0].String())
		if i == 0 && headerCells[strings.ToLower(cell)] {
			continue
		}
		out = appendName(out, cell)
	}
	return out, nil
}
