package output

import (
	"encoding/json"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/charmbracelet/lipgloss/v2"
	"github.com/muesli/termenv"
)

// Formatter is the interface for output formatting.
//
// Only auxiliary commands (status, config list) go through a Formatter.
// Credential-protocol responses are written raw to stdout by the dispatcher
// and must never be styled or re-encoded.
type Formatter interface {
	Print(data any) error
	PrintList(items any, columns []Column) error
	PrintError(err error)
	PrintHint(msg string)
}

// Column defines a column for table/list output
type Column struct {
	Name  string // Display name
	Key   string // Struct field name or map key
	Width int    // Width for rich mode (0 = auto)
}

// New creates a formatter for the specified mode
func New(mode string) Formatter {
	switch mode {
	case "json":
		return &jsonFormatter{}
	case "plain":
		return &plainFormatter{}
	case "rich":
		profile := termenv.ColorProfile()
		return &richFormatter{profile: profile}
	default:
		return &plainFormatter{}
	}
}

// jsonFormatter outputs JSON to stdout
type jsonFormatter struct{}

func (f *jsonFormatter) Print(data any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

func (f *jsonFormatter) PrintList(items any, columns []Column) error {
	return f.Print(items)
}

func (f *jsonFormatter) PrintError(err error) {
	errObj := map[string]string{"error": err.Error()}
	enc := json.NewEncoder(os.Stderr)
	enc.SetIndent("", "  ")
	enc.Encode(errObj)
}

func (f *jsonFormatter) PrintHint(msg string) {
	// Hints are human-facing; skip them in JSON mode.
}

// plainFormatter outputs tab-separated values
type plainFormatter struct{}

func (f *plainFormatter) Print(data any) error {
	v := reflect.ValueOf(data)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}

	if v.Kind() == reflect.Struct {
		t := v.Type()
		for i := 0; i < v.NumField(); i++ {
			fmt.Fprintf(os.Stdout, "%s\t%v\n", t.Field(i).Name, v.Field(i).Interface())
		}
		return nil
	}

	fmt.Fprintf(os.Stdout, "%v\n", data)
	return nil
}

func (f *plainFormatter) PrintList(items any, columns []Column) error {
	rows, err := rowsOf(items, columns)
	if err != nil {
		return err
	}

	headers := make([]string, len(columns))
	for i, col := range columns {
		headers[i] = col.Name
	}
	fmt.Fprintf(os.Stdout, "%s\n", strings.Join(headers, "\t"))

	for _, row := range rows {
		values := make([]string, len(columns))
		for j, col := range columns {
			values[j] = row[col.Key]
		}
		fmt.Fprintf(os.Stdout, "%s\n", strings.Join(values, "\t"))
	}
	return nil
}

func (f *plainFormatter) PrintError(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
}

func (f *plainFormatter) PrintHint(msg string) {
	fmt.Fprintf(os.Stderr, "hint: %v\n", msg)
}

// richFormatter outputs styled content for terminal
type richFormatter struct {
	profile termenv.Profile
}

func (f *richFormatter) Print(data any) error {
	v := reflect.ValueOf(data)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}

	if v.Kind() == reflect.Struct {
		t := v.Type()
		keyStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("33"))
		valueStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("15"))

		for i := 0; i < v.NumField(); i++ {
			fmt.Fprintf(os.Stdout, "%s: %s\n",
				keyStyle.Render(t.Field(i).Name),
				valueStyle.Render(fmt.Sprintf("%v", v.Field(i).Interface())),
			)
		}
		return nil
	}

	fmt.Fprintf(os.Stdout, "%v\n", data)
	return nil
}

func (f *richFormatter) PrintList(items any, columns []Column) error {
	rows, err := rowsOf(items, columns)
	if err != nil {
		return err
	}
	RenderTable(os.Stdout, columns, rows)
	return nil
}

func (f *richFormatter) PrintError(err error) {
	errorStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("9"))

	fmt.Fprintf(os.Stderr, "%s\n", errorStyle.Render("error: "+err.Error()))
}

func (f *richFormatter) PrintHint(msg string) {
	hintStyle := lipgloss.NewStyle().
		Faint(true).
		Foreground(lipgloss.Color("8"))

	fmt.Fprintf(os.Stderr, "%s\n", hintStyle.Render("hint: "+msg))
}

// rowsOf flattens a slice of structs or maps into string rows keyed by column.
func rowsOf(items any, columns []Column) ([]map[string]string, error) {
	v := reflect.ValueOf(items)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	if v.Kind() != reflect.Slice {
		return nil, fmt.Errorf("PrintList requires a slice")
	}

	rows := make([]map[string]string, v.Len())
	for i := 0; i < v.Len(); i++ {
		item := v.Index(i)
		if item.Kind() == reflect.Ptr {
			item = item.Elem()
		}

		row := make(map[string]string)
		for _, col := range columns {
			switch item.Kind() {
			case reflect.Map:
				mapVal := item.MapIndex(reflect.ValueOf(col.Key))
				if mapVal.IsValid() {
					row[col.Key] = fmt.Sprintf("%v", mapVal.Interface())
				}
			case reflect.Struct:
				field := item.FieldByName(col.Key)
				if field.IsValid() {
					row[col.Key] = fmt.Sprintf("%v", field.Interface())
				}
			}
		}
		rows[i] = row
	}
	return rows, nil
}
