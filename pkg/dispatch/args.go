package dispatch

import (
	"fmt"
	"math"

	"github.com/pharmakg/sentinel/pkg/tools"
)

// coerceArgs validates the planner's raw arguments against the tool's
// declared parameters and coerces JSON-decoded values onto declared types.
// It returns the coerced map, or a non-empty error message on the first
// violated constraint. Undeclared arguments are dropped.
func coerceArgs(spec tools.Spec, raw map[string]any) (map[string]any, string) {
	coerced := make(map[string]any, len(raw))
	for _, param := range spec.Params {
		value, present := raw[param.Name]
		if !present || value == nil {
			if param.Required {
				return nil, fmt.Sprintf("missing required argument %q", param.Name)
			}
			continue
		}

		converted, ok := coerceValue(param.Kind, value)
		if !ok {
			return nil, fmt.Sprintf("argument %q has wrong type %T", param.Name, value)
		}
		coerced[param.Name] = converted
	}
	return coerced, ""
}

func coerceValue(kind tools.ParamKind, value any) (any, bool) {
	switch kind {
	case tools.ParamString:
		s, ok := value.(string)
		return s, ok
	case tools.ParamInt:
		return toInt64(value)
	case tools.ParamFloat:
		return toFloat64(value)
	case tools.ParamBool:
		b, ok := value.(bool)
		return b, ok
	case tools.ParamStringList:
		return toStringList(value)
	case tools.ParamIntList:
		return toIntList(value)
	}
	return nil, false
}

func toInt64(value any) (int64, bool) {
	switch v := value.(type) {
	case int:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		if v != math.Trunc(v) {
			return 0, false
		}
		return int64(v), true
	}
	return 0, false
}

func toFloat64(value any) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case float64:
		return v, true
	}
	return 0, false
}

func toStringList(value any) ([]string, bool) {
	switch v := value.(type) {
	case []string:
		return v, true
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}

func toIntList(value any) ([]int64, bool) {
	switch v := value.(type) {
	case []int64:
		return v, true
	case []any:
		out := make([]int64, 0, len(v))
		for _, item := range v {
			n, ok := toInt64(item)
			if !ok {
				return nil, false
			}
			out = append(out, n)
		}
		return out, true
	}
	return nil, false
}

// The arg* getters read values coerceArgs already validated. Required
// parameters are guaranteed present; optional ones fall back to defaults.

func argString(args map[string]any, name string) string {
	s, _ := args[name].(string)
	return s
}

func argInt(args map[string]any, name string) int64 {
	n, _ := args[name].(int64)
	return n
}

func argIntDefault(args map[string]any, name string, def int) int {
	if n, ok := args[name].(int64); ok {
		return int(n)
	}
	return def
}

func argIntPtr(args map[string]any, name string) *int64 {
	if n, ok := args[name].(int64); ok {
		return &n
	}
	return nil
}

func argFloatDefault(args map[string]any, name string, def float64) float64 {
	if f, ok := args[name].(float64); ok {
		return f
	}
	return def
}

func argFloatPtr(args map[string]any, name string) *float64 {
	if f, ok := args[name].(float64); ok {
		return &f
	}
	return nil
}

func argBoolDefault(args map[string]any, name string, def bool) bool {
	if b, ok := args[name].(bool); ok {
		return b
	}
	return def
}

func argStringList(args map[string]any, name string) []string {
	s, _ := args[name].([]string)
	return s
}

func argIntList(args map[string]any, name string) []int64 {
	s, _ := args[name].([]int64)
	return s
}
