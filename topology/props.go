package topology

import (
	"fmt"
	"maps"
	"strconv"
	"strings"
)

// Props is the property bag a component carries from the canvas. Values are
// whatever the document parser produced (strings, numbers, bools, nested
// lists for the VGcore service tables).
type Props map[string]any

func (p Props) Clone() Props {
	if p == nil {
		return nil
	}
	return maps.Clone(p)
}

// present reports whether the key holds a usable value. Empty strings count
// as absent so that blank dialog fields fall through to defaults.
func (p Props) present(key string) bool {
	v, ok := p[key]
	if !ok || v == nil {
		return false
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) != ""
	}
	return true
}

// Str returns the trimmed string value of key, or def when absent.
func (p Props) Str(key, def string) string {
	if !p.present(key) {
		return def
	}
	switch v := p[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case float64:
		// round-trip without a trailing .0 for whole numbers, matching how
		// the dialogs store spinbox values
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return fmt.Sprint(p[key])
}

// Int returns the integer value of key, or def when absent. A present but
// non-numeric value is a coercion error.
func (p Props) Int(key string, def int) (int, error) {
	if !p.present(key) {
		return def, nil
	}
	switch v := p[key].(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case uint64:
		return int(v), nil
	case float64:
		return int(v), nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return def, fmt.Errorf("%s: %q is not an integer", key, v)
		}
		return n, nil
	}
	return def, fmt.Errorf("%s: %T is not an integer", key, p[key])
}

// Float returns the float value of key, or def when absent.
func (p Props) Float(key string, def float64) (float64, error) {
	if !p.present(key) {
		return def, nil
	}
	switch v := p[key].(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return def, fmt.Errorf("%s: %q is not a number", key, v)
		}
		return f, nil
	}
	return def, fmt.Errorf("%s: %T is not a number", key, p[key])
}

// Bool returns the boolean value of key, or def when absent. The dialogs
// store checkboxes as bools or the strings "true"/"false".
func (p Props) Bool(key string, def bool) bool {
	if !p.present(key) {
		return def
	}
	switch v := p[key].(type) {
	case bool:
		return v
	case string:
		return strings.EqualFold(strings.TrimSpace(v), "true")
	case int:
		return v != 0
	case float64:
		return v != 0
	}
	return def
}
