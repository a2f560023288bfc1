package control

import (
	"encoding/json"
	"fmt"
	"strings"
)

// OutputColumn describes one column of the result table. A plain entry
// carries only Name. Two-sided entries name the contributing column on
// each side; when both are set the output value is their coalesce.
type OutputColumn struct {
	Name    string
	ColumnA string
	ColumnB string
}

type outputTableJSON struct {
	Columns []json.RawMessage `json:"columns"`
}

// ParseOutputColumns decodes an output_table configuration, an object
// with a columns list whose entries are either plain column names or
// {column, column_a, column_b} objects. Nil means no explicit output
// configuration, select everything.
func ParseOutputColumns(raw json.RawMessage) ([]OutputColumn, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var table outputTableJSON
	if err := json.Unmarshal(raw, &table); err != nil {
		return nil, fmt.Errorf("parse output table: %w", err)
	}
	if len(table.Columns) == 0 {
		return nil, nil
	}
	columns := make([]OutputColumn, 0, len(table.Columns))
	for i, entry := range table.Columns {
		var column OutputColumn
		var name string
		if err := json.Unmarshal(entry, &name); err == nil {
			if column.Name, err = RequireIdentifier(name); err != nil {
				return nil, fmt.Errorf("output column %d: %w", i+1, err)
			}
			columns = append(columns, column)
			continue
		}
		var object struct {
			Column  string `json:"column"`
			ColumnA string `json:"column_a"`
			ColumnB string `json:"column_b"`
		}
		if err := json.Unmarshal(entry, &object); err != nil {
			return nil, fmt.Errorf("output column %d: %w", i+1, err)
		}
		var err error
		if column.Name, err = optionalIdentifier(object.Column); err != nil {
			return nil, fmt.Errorf("output column %d: %w", i+1, err)
		}
		if column.ColumnA, err = optionalIdentifier(object.ColumnA); err != nil {
			return nil, fmt.Errorf("output column %d: %w", i+1, err)
		}
		if column.ColumnB, err = optionalIdentifier(object.ColumnB); err != nil {
			return nil, fmt.Errorf("output column %d: %w", i+1, err)
		}
		if column.Name == "" && column.ColumnA == "" && column.ColumnB == "" {
			return nil, fmt.Errorf("output column %d is empty", i+1)
		}
		columns = append(columns, column)
	}
	return columns, nil
}

// Expr renders the select expression for a two-sided output column with
// the given table aliases.
func (c OutputColumn) Expr(aliasA, aliasB string) string {
	var expr string
	switch {
	case c.ColumnA != "" && c.ColumnB != "":
		expr = fmt.Sprintf("coalesce(%s.%s, %s.%s)", aliasA, c.ColumnA, aliasB, c.ColumnB)
	case c.ColumnA != "":
		expr = aliasA + "." + c.ColumnA
	case c.ColumnB != "":
		expr = aliasB + "." + c.ColumnB
	default:
		return c.Name
	}
	if c.Name != "" {
		expr += " as " + c.Name
	}
	return expr
}

// Names lists the declared column names, falling back to the side A then
// side B column when no alias was given.
func Names(columns []OutputColumn) []string {
	names := make([]string, 0, len(columns))
	for _, c := range columns {
		switch {
		case c.Name != "":
			names = append(names, c.Name)
		case c.ColumnA != "":
			names = append(names, c.ColumnA)
		case c.ColumnB != "":
			names = append(names, c.ColumnB)
		}
	}
	return names
}

// SelectList joins plain output column names for a one-sided select.
func SelectList(columns []OutputColumn) string {
	if len(columns) == 0 {
		return "*"
	}
	return strings.Join(Names(columns), ", ")
}
