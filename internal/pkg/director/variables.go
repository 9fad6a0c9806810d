package director

import (
	"strconv"
	"strings"

	"github.com/jake-scott/control4-bridge/internal/pkg/c4api"
)

// Variables maps variable names to values for one item
type Variables map[string]interface{}

func (v Variables) Has(name string) bool {
	_, ok := v[name]
	return ok
}

// Truthy reports whether the variable is set to a true-ish value.  Missing
// variables are false.
func (v Variables) Truthy(name string) bool {
	switch val := v[name].(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		s := strings.ToLower(strings.TrimSpace(val))
		return s != "" && s != "0" && s != "false"
	default:
		f, ok := toFloat(val)
		return ok && f != 0
	}
}

func (v Variables) Float(name string) (float64, bool) {
	return toFloat(v[name])
}

func (v Variables) Int(name string) (int, bool) {
	f, ok := toFloat(v[name])
	return int(f), ok
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}

	return 0, false
}

// coerce converts a value according to the variable type the director
// reports.  Unknown types pass through unchanged.
func coerce(v c4api.VariableValue) interface{} {
	switch v.Type {
	case "Boolean":
		if f, ok := toFloat(v.Value); ok {
			return int(f) != 0
		}
	case "Number":
		if f, ok := toFloat(v.Value); ok {
			return f
		}
	}

	return v.Value
}

func reshape(values []c4api.VariableValue) map[int]Variables {
	out := make(map[int]Variables)
	for _, v := range values {
		id := int(v.ID)
		if out[id] == nil {
			out[id] = Variables{}
		}
		out[id][v.VarName] = coerce(v)
	}

	return out
}
