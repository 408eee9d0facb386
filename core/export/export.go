// Package export writes slices of structs into Excel workbooks.
//
// Columns are derived by reflection from `excel:"Header"` struct tags, in
// field order. Fields without a tag or tagged "-" are skipped. A tag may carry
// one format option:
//
//	Data       time.Time `excel:"Data,date"`       // dd/mm/yyyy
//	Hora       string    `excel:"Hora,time"`       // text, kept as is
//	Percentual float64   `excel:"Frequência,percent"` // 87.5 is shown as 87.50%
package export

import (
	"bytes"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

// ContentType is the MIME type of the files produced by Workbook
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// format options
const (
	formatDate    = "date"
	formatTime    = "time"
	formatPercent = "percent"
)

const (
	minColumnWidth = 8
	maxColumnWidth = 60
	dateLayout     = "02/01/2006"
)

// Column describes one exported column
type Column struct {
	Header string
	Format string
	index  []int
}

// Columns returns the exported columns of the struct type t, or of the struct
// t points to
func Columns(t reflect.Type) ([]Column, error) {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("cannot export %v, need a struct", t)
	}
	var columns []Column
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag, ok := f.Tag.Lookup("excel")
		if !ok || tag == "-" || !f.IsExported() {
			continue
		}
		parts := strings.SplitN(tag, ",", 2)
		c := Column{Header: parts[0], index: f.Index}
		if c.Header == "" {
			c.Header = f.Name
		}
		if len(parts) == 2 {
			c.Format = parts[1]
			switch c.Format {
			case formatDate, formatTime, formatPercent:
			default:
				return nil, fmt.Errorf("field %s: unknown excel format '%s'", f.Name, c.Format)
			}
		}
		columns = append(columns, c)
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("%v has no excel columns", t)
	}
	return columns, nil
}

// Workbook is an Excel workbook under construction
type Workbook struct {
	file   *excelize.File
	sheets int
	styles map[string]int
}

// NewWorkbook returns an empty workbook
func NewWorkbook() *Workbook {
	return &Workbook{file: excelize.NewFile(), styles: map[string]int{}}
}

func (w *Workbook) style(name string) (int, error) {
	if id, ok := w.styles[name]; ok {
		return id, nil
	}
	var style excelize.Style
	switch name {
	case "bold":
		style.Font = &excelize.Font{Bold: true}
	case "title":
		style.Font = &excelize.Font{Bold: true, Size: 13}
	case formatDate:
		layout := "dd/mm/yyyy"
		style.CustomNumFmt = &layout
	case formatPercent:
		style.NumFmt = 10 // 0.00%
	}
	id, err := w.file.NewStyle(&style)
	if err != nil {
		return 0, err
	}
	w.styles[name] = id
	return id, nil
}

// AddSheet adds a sheet with one row per element of rows, which must be a
// slice of structs or of pointers to structs. Each title is written in bold
// in its own row above the table. The header row is written even when rows is
// empty.
func (w *Workbook) AddSheet(name string, rows interface{}, titles ...string) error {
	v := reflect.ValueOf(rows)
	if !v.IsValid() || v.Kind() != reflect.Slice {
		return errors.New("rows must be a slice")
	}
	columns, err := Columns(v.Type().Elem())
	if err != nil {
		return err
	}

	f := w.file
	if w.sheets == 0 {
		if err := f.SetSheetName(f.GetSheetName(0), name); err != nil {
			return err
		}
	} else if _, err := f.NewSheet(name); err != nil {
		return err
	}
	w.sheets++

	widths := make([]int, len(columns))
	row := 1

	titleStyle, err := w.style("title")
	if err != nil {
		return err
	}
	for _, title := range titles {
		if err := f.SetCellValue(name, cell(1, row), title); err != nil {
			return err
		}
		if err := f.SetCellStyle(name, cell(1, row), cell(1, row), titleStyle); err != nil {
			return err
		}
		row++
	}
	if len(titles) > 0 {
		row++
	}

	boldStyle, err := w.style("bold")
	if err != nil {
		return err
	}
	for i, c := range columns {
		if err := f.SetCellValue(name, cell(i+1, row), c.Header); err != nil {
			return err
		}
		widths[i] = utf8.RuneCountInString(c.Header)
	}
	if err := f.SetCellStyle(name, cell(1, row), cell(len(columns), row), boldStyle); err != nil {
		return err
	}
	if err := f.SetPanes(name, &excelize.Panes{Freeze: true, YSplit: row, TopLeftCell: cell(1, row+1), ActivePane: "bottomLeft"}); err != nil {
		return err
	}
	row++

	for i := 0; i < v.Len(); i++ {
		item := v.Index(i)
		if item.Kind() == reflect.Ptr {
			if item.IsNil() {
				continue
			}
			item = item.Elem()
		}
		for j, c := range columns {
			value, text := cellValue(item.FieldByIndex(c.index), c.Format)
			if value == nil {
				continue
			}
			if err := f.SetCellValue(name, cell(j+1, row), value); err != nil {
				return err
			}
			if c.Format == formatDate || c.Format == formatPercent {
				style, err := w.style(c.Format)
				if err != nil {
					return err
				}
				if err := f.SetCellStyle(name, cell(j+1, row), cell(j+1, row), style); err != nil {
					return err
				}
			}
			if n := utf8.RuneCountInString(text); n > widths[j] {
				widths[j] = n
			}
		}
		row++
	}

	for i, width := range widths {
		width += 2
		if width < minColumnWidth {
			width = minColumnWidth
		}
		if width > maxColumnWidth {
			width = maxColumnWidth
		}
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(name, col, col, float64(width)); err != nil {
			return err
		}
	}
	return nil
}

// Bytes returns the workbook as xlsx file
func (w *Workbook) Bytes() ([]byte, error) {
	if w.sheets == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	var buf bytes.Buffer
	if _, err := w.file.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Close releases the resources of the workbook
func (w *Workbook) Close() error {
	return w.file.Close()
}

func cell(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}

// dated is implemented by date types which wrap a time.Time
type dated interface {
	Time() time.Time
}

// cellValue returns the value to store for field and its textual form, used
// to size the column. A nil value leaves the cell empty.
func cellValue(field reflect.Value, format string) (interface{}, string) {
	for field.Kind() == reflect.Ptr {
		if field.IsNil() {
			return nil, ""
		}
		field = field.Elem()
	}
	value := field.Interface()
	if d, ok := value.(dated); ok {
		value = d.Time()
	}

	switch t := value.(type) {
	case time.Time:
		if t.IsZero() {
			return nil, ""
		}
		switch format {
		case formatTime:
			s := t.Format("15:04")
			return s, s
		case formatDate:
			return t, t.Format(dateLayout)
		}
		s := t.Format("02/01/2006 15:04")
		return s, s
	case bool:
		if t {
			return "Sim", "Sim"
		}
		return "Não", "Não"
	case fmt.Stringer:
		s := t.String()
		return s, s
	}

	switch field.Kind() {
	case reflect.String:
		s := field.String()
		return s, s
	case reflect.Float32, reflect.Float64:
		f := field.Float()
		if format == formatPercent {
			s := fmt.Sprintf("%.2f%%", f)
			return f / 100, s
		}
		s := fmt.Sprintf("%.2f", f)
		return f, s
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return field.Int(), fmt.Sprint(field.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return field.Uint(), fmt.Sprint(field.Uint())
	case reflect.Slice, reflect.Array:
		parts := make([]string, field.Len())
		for i := range parts {
			parts[i] = fmt.Sprint(field.Index(i).Interface())
		}
		s := strings.Join(parts, ", ")
		return s, s
	}
	s := fmt.Sprint(value)
	return s, s
}
