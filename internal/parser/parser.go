// Package parser extracts named fields from command output so a fleet-wide
// command can be shown as one table row per host.
package parser

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/agent462/corral/internal/config"
	"github.com/agent462/corral/internal/normalize"
)

// missing is shown for a field that could not be extracted.
const missing = "-"

// FieldValue holds a single extracted field name and its value.
type FieldValue struct {
	Field string
	Value string
}

// HostParsed holds the parsed extraction results for a single host.
type HostParsed struct {
	Host   string
	Fields []FieldValue
	Err    error
}

// rule is a compiled extract rule.
type rule struct {
	field  string
	re     *regexp.Regexp // nil in column mode
	column int            // 1-based; 0 in regex mode
}

// OutputParser extracts structured fields from command output.
type OutputParser struct {
	rules []rule
}

// New creates an OutputParser from config extract rules.
func New(rules []config.ExtractRule) (*OutputParser, error) {
	compiled := make([]rule, 0, len(rules))
	for _, r := range rules {
		cr := rule{field: r.Field}
		switch {
		case r.Pattern != "":
			re, err := regexp.Compile(r.Pattern)
			if err != nil {
				return nil, fmt.Errorf("invalid regex for field %q: %w", r.Field, err)
			}
			cr.re = re
		case r.Column > 0:
			cr.column = r.Column
		default:
			return nil, fmt.Errorf("rule for field %q must have pattern or column", r.Field)
		}
		compiled = append(compiled, cr)
	}
	return &OutputParser{rules: compiled}, nil
}

// Fields returns the field names in rule order.
func (p *OutputParser) Fields() []string {
	names := make([]string, len(p.rules))
	for i, r := range p.rules {
		names[i] = r.field
	}
	return names
}

// Parse extracts fields from a single host's stdout.
func (p *OutputParser) Parse(host, stdout string) *HostParsed {
	hp := &HostParsed{
		Host:   host,
		Fields: make([]FieldValue, 0, len(p.rules)),
	}
	for _, r := range p.rules {
		value := missing
		if r.re != nil {
			if m := r.re.FindStringSubmatch(stdout); len(m) >= 2 {
				value = m[1]
			}
		} else {
			value = extractColumn(stdout, r.column)
		}
		hp.Fields = append(hp.Fields, FieldValue{Field: r.field, Value: value})
	}
	return hp
}

// extractColumn returns the 1-based column of the first non-empty line after
// the header line.
func extractColumn(text string, col int) string {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	for _, line := range lines[1:] {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if col <= len(fields) {
			return fields[col-1]
		}
		return missing
	}
	return missing
}

// errNoOutput marks an ok result that reported no stdout.
var errNoOutput = errors.New("no output")

// ParseAll parses every result. Failed results and results without stdout
// carry an error and placeholder fields.
func (p *OutputParser) ParseAll(results []normalize.Result) []*HostParsed {
	parsed := make([]*HostParsed, 0, len(results))
	for _, r := range results {
		hp := p.Parse(r.Host, r.StdoutString())
		switch {
		case !r.OK:
			msg := r.Msg
			if msg == "" {
				msg = "failed"
			}
			hp.Err = errors.New(msg)
		case r.Stdout == nil:
			hp.Err = errNoOutput
		}
		parsed = append(parsed, hp)
	}
	return parsed
}

// FormatTable renders parsed results as an aligned text table.
// If color is true, the header is highlighted with ANSI codes.
func FormatTable(parsed []*HostParsed, color bool) string {
	if len(parsed) == 0 {
		return ""
	}

	headers := []string{"HOST"}
	for _, fv := range parsed[0].Fields {
		headers = append(headers, strings.ToUpper(fv.Field))
	}
	rows := make([][]string, 0, len(parsed))
	for _, hp := range parsed {
		row := []string{hp.Host}
		for _, fv := range hp.Fields {
			row = append(row, fv.Value)
		}
		if hp.Err != nil {
			row = append(row, "("+hp.Err.Error()+")")
		}
		rows = append(rows, row)
	}

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i := range widths {
			if i < len(row) && len(row[i]) > widths[i] {
				widths[i] = len(row[i])
			}
		}
	}

	pad := func(values []string) string {
		parts := make([]string, len(values))
		for i, v := range values {
			if i < len(widths) {
				parts[i] = fmt.Sprintf("%-*s", widths[i], v)
			} else {
				parts[i] = v
			}
		}
		return strings.TrimRight(strings.Join(parts, "  "), " ")
	}

	var sb strings.Builder
	header := pad(headers)
	if color {
		header = "\033[1;36m" + header + "\033[0m"
	}
	sb.WriteString(header)
	sb.WriteString("\n")

	dashes := make([]string, len(widths))
	for i, w := range widths {
		dashes[i] = strings.Repeat("-", w)
	}
	sb.WriteString(strings.Join(dashes, "  "))
	sb.WriteString("\n")

	for _, row := range rows {
		sb.WriteString(pad(row))
		sb.WriteString("\n")
	}
	return sb.String()
}
