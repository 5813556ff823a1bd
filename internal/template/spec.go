package template

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"unicode/utf8"
)

type formatSpec struct {
	fill      rune
	align     byte
	sign      byte
	width     int
	precision int
	verb      byte
}

func parseSpec(spec string) (formatSpec, error) {
	fs := formatSpec{fill: ' ', precision: -1}
	rest := spec

	if r, size := utf8.DecodeRuneInString(rest); size > 0 && len(rest) > size && isAlign(rest[size]) {
		fs.fill = r
		fs.align = rest[size]
		rest = rest[size+1:]
	} else if len(rest) > 0 && isAlign(rest[0]) {
		fs.align = rest[0]
		rest = rest[1:]
	}

	if len(rest) > 0 && strings.IndexByte("+- ", rest[0]) >= 0 {
		fs.sign = rest[0]
		rest = rest[1:]
	}
	if len(rest) > 0 && rest[0] == '#' {
		rest = rest[1:]
	}
	if len(rest) > 0 && rest[0] == '0' {
		if fs.align == 0 {
			fs.fill = '0'
			fs.align = '='
		}
		rest = rest[1:]
	}

	digits := leadingDigits(rest)
	if digits != "" {
		fs.width, _ = strconv.Atoi(digits)
		rest = rest[len(digits):]
	}

	if len(rest) > 0 && rest[0] == '.' {
		digits = leadingDigits(rest[1:])
		if digits == "" {
			return fs, fmt.Errorf("format specifier missing precision in %q", spec)
		}
		fs.precision, _ = strconv.Atoi(digits)
		rest = rest[1+len(digits):]
	}

	switch len(rest) {
	case 0:
	case 1:
		if strings.IndexByte("sdfFxXob", rest[0]) < 0 {
			return fs, fmt.Errorf("unknown format code '%c' in %q", rest[0], spec)
		}
		fs.verb = rest[0]
	default:
		return fs, fmt.Errorf("invalid format specifier %q", spec)
	}
	return fs, nil
}

func isAlign(c byte) bool {
	return c == '<' || c == '>' || c == '^' || c == '='
}

func leadingDigits(s string) string {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	return s[:i]
}

func applySpec(value any, spec string) (string, error) {
	if spec == "" {
		return plain(value), nil
	}
	fs, err := parseSpec(spec)
	if err != nil {
		return "", err
	}

	var (
		body    string
		numeric bool
		neg     bool
	)

	switch fs.verb {
	case 'd', 'x', 'X', 'o', 'b':
		n, ok := asInt(value)
		if !ok {
			return "", fmt.Errorf("format code '%c' needs an integer, got %T", fs.verb, value)
		}
		numeric, neg = true, n < 0
		if neg {
			n = -n
		}
		base := map[byte]int{'d': 10, 'x': 16, 'X': 16, 'o': 8, 'b': 2}[fs.verb]
		body = strconv.FormatInt(n, base)
		if fs.verb == 'X' {
			body = strings.ToUpper(body)
		}
	case 'f', 'F':
		f, ok := asFloat(value)
		if !ok {
			return "", fmt.Errorf("format code '%c' needs a number, got %T", fs.verb, value)
		}
		precision := fs.precision
		if precision < 0 {
			precision = 6
		}
		numeric, neg = true, f < 0
		body = strconv.FormatFloat(math.Abs(f), 'f', precision, 64)
	default:
		if n, ok := asInt(value); ok && fs.verb == 0 {
			numeric, neg = true, n < 0
			if neg {
				n = -n
			}
			body = strconv.FormatInt(n, 10)
		} else if f, ok := asFloat(value); ok && fs.verb == 0 {
			numeric, neg = true, f < 0
			if fs.precision >= 0 {
				body = strconv.FormatFloat(math.Abs(f), 'f', fs.precision, 64)
			} else {
				body = strconv.FormatFloat(math.Abs(f), 'f', -1, 64)
			}
		} else {
			body = plain(value)
			if fs.precision >= 0 && utf8.RuneCountInString(body) > fs.precision {
				body = string([]rune(body)[:fs.precision])
			}
		}
	}

	prefix := ""
	if numeric {
		switch {
		case neg:
			prefix = "-"
		case fs.sign == '+':
			prefix = "+"
		case fs.sign == ' ':
			prefix = " "
		}
	}

	align := fs.align
	if align == 0 {
		align = '<'
		if numeric {
			align = '>'
		}
	}
	return pad(prefix, body, fs.fill, align, fs.width), nil
}

func pad(prefix, body string, fill rune, align byte, width int) string {
	missing := width - utf8.RuneCountInString(prefix) - utf8.RuneCountInString(body)
	if missing <= 0 {
		return prefix + body
	}
	padding := func(n int) string { return strings.Repeat(string(fill), n) }

	switch align {
	case '<':
		return prefix + body + padding(missing)
	case '^':
		left := missing / 2
		return padding(left) + prefix + body + padding(missing-left)
	case '=':
		return prefix + padding(missing) + body
	default:
		return padding(missing) + prefix + body
	}
}

func plain(value any) string {
	if value == nil {
		return ""
	}
	if s, ok := value.(string); ok {
		return s
	}
	if n, ok := asInt(value); ok {
		return strconv.FormatInt(n, 10)
	}
	if f, ok := asFloat(value); ok {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	if s, ok := value.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprint(value)
}

// asInt accepts integer kinds and whole floats, which is how JSON-decoded
// version numbers arrive.
func asInt(value any) (int64, bool) {
	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(v.Uint()), true
	case reflect.Float32, reflect.Float64:
		f := v.Float()
		if f == math.Trunc(f) && !math.IsInf(f, 0) {
			return int64(f), true
		}
	}
	return 0, false
}

func asFloat(value any) (float64, bool) {
	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Float32, reflect.Float64:
		return v.Float(), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(v.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(v.Uint()), true
	}
	return 0, false
}
