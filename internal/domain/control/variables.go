package control

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Variables are the named values substituted into configured source
// names, filters and hook statements.
type Variables map[string]string

// NewVariables builds the standard substitution set of one run.
func NewVariables(controlName string, processID int64, window Window) Variables {
	return Variables{
		"control_name":      controlName,
		"control_date":      window.FromText(),
		"control_date_from": window.FromText(),
		"control_date_to":   window.ToText(),
		"process_id":        strconv.FormatInt(processID, 10),
	}
}

// WithTrigger adds the scheduler moment under control_trigger.
func (v Variables) WithTrigger(moment time.Time) Variables {
	v["control_trigger"] = moment.Format(DateTimeFormat)
	return v
}

// Expand replaces {name} placeholders with variable values. Unknown names
// are rejected rather than passed through, and doubled braces escape
// literal ones.
func (v Variables) Expand(text string) (string, error) {
	var out strings.Builder
	out.Grow(len(text))
	for i := 0; i < len(text); i++ {
		ch := text[i]
		switch ch {
		case '{':
			if i+1 < len(text) && text[i+1] == '{' {
				out.WriteByte('{')
				i++
				continue
			}
			end := strings.IndexByte(text[i+1:], '}')
			if end < 0 {
				return "", fmt.Errorf("unclosed placeholder at offset %d", i)
			}
			name := text[i+1 : i+1+end]
			value, ok := v[name]
			if !ok {
				return "", fmt.Errorf("unknown placeholder: %q", name)
			}
			out.WriteString(value)
			i += end + 1
		case '}':
			if i+1 < len(text) && text[i+1] == '}' {
				out.WriteByte('}')
				i++
				continue
			}
			return "", fmt.Errorf("stray brace at offset %d", i)
		default:
			out.WriteByte(ch)
		}
	}
	return out.String(), nil
}
