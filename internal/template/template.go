// Package template renders studio path templates written in the
// "{key[sub]:spec}" field syntax, with "<...>" groups that vanish when a key
// inside them is missing.
package template

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// MissingKeyError reports a field whose key is absent from the data.
type MissingKeyError struct {
	Key string
}

func (e *MissingKeyError) Error() string {
	return fmt.Sprintf("missing template key %q", e.Key)
}

// IsMissingKey reports whether err is, or wraps, a MissingKeyError.
func IsMissingKey(err error) bool {
	var missing *MissingKeyError
	return errors.As(err, &missing)
}

// TokenKind classifies template tokens.
type TokenKind int

const (
	Literal TokenKind = iota
	Field
	OptionalStart
	OptionalEnd
)

// Token is one piece of a tokenized template.
type Token struct {
	Kind TokenKind

	// Text is the literal text, or the raw field including braces.
	Text string

	// Name, Path and Spec describe a field: {Name[Path0][Path1]:Spec}.
	Name string
	Path []string
	Spec string
}

// Tokenize splits a template into tokens. "{{" and "}}" are literal braces.
// When optional is true, "<" and ">" outside fields delimit optional groups.
func Tokenize(tmpl string, optional bool) ([]Token, error) {
	var (
		tokens  []Token
		literal strings.Builder
		depth   int
	)

	flush := func() {
		if literal.Len() > 0 {
			tokens = append(tokens, Token{Kind: Literal, Text: literal.String()})
			literal.Reset()
		}
	}

	for i := 0; i < len(tmpl); i++ {
		c := tmpl[i]
		switch {
		case c == '{' && i+1 < len(tmpl) && tmpl[i+1] == '{':
			literal.WriteByte('{')
			i++
		case c == '}' && i+1 < len(tmpl) && tmpl[i+1] == '}':
			literal.WriteByte('}')
			i++
		case c == '{':
			end := strings.IndexByte(tmpl[i:], '}')
			if end < 0 {
				return nil, fmt.Errorf("unclosed field at offset %d in %q", i, tmpl)
			}
			flush()
			field, err := parseField(tmpl[i+1 : i+end])
			if err != nil {
				return nil, err
			}
			field.Text = tmpl[i : i+end+1]
			tokens = append(tokens, field)
			i += end
		case c == '}':
			return nil, fmt.Errorf("single '}' at offset %d in %q", i, tmpl)
		case optional && c == '<':
			if depth > 0 {
				return nil, fmt.Errorf("nested optional group at offset %d in %q", i, tmpl)
			}
			flush()
			depth++
			tokens = append(tokens, Token{Kind: OptionalStart, Text: "<"})
		case optional && c == '>':
			if depth == 0 {
				return nil, fmt.Errorf("unmatched '>' at offset %d in %q", i, tmpl)
			}
			flush()
			depth--
			tokens = append(tokens, Token{Kind: OptionalEnd, Text: ">"})
		default:
			literal.WriteByte(c)
		}
	}
	if depth > 0 {
		return nil, fmt.Errorf("unclosed optional group in %q", tmpl)
	}
	flush()
	return tokens, nil
}

func parseField(body string) (Token, error) {
	tok := Token{Kind: Field}

	if colon := strings.IndexByte(body, ':'); colon >= 0 {
		tok.Spec = body[colon+1:]
		body = body[:colon]
	}
	if bang := strings.IndexByte(body, '!'); bang >= 0 {
		body = body[:bang]
	}

	end := strings.IndexAny(body, "[.")
	if end < 0 {
		end = len(body)
	}
	tok.Name = body[:end]
	if tok.Name == "" {
		return tok, fmt.Errorf("positional fields are not supported: {%s}", body)
	}

	rest := body[end:]
	for rest != "" {
		switch rest[0] {
		case '[':
			closing := strings.IndexByte(rest, ']')
			if closing < 0 {
				return tok, fmt.Errorf("missing ']' in field {%s}", body)
			}
			tok.Path = append(tok.Path, rest[1:closing])
			rest = rest[closing+1:]
		case '.':
			next := strings.IndexAny(rest[1:], "[.")
			if next < 0 {
				next = len(rest) - 1
			}
			tok.Path = append(tok.Path, rest[1:next+1])
			rest = rest[next+1:]
		default:
			return tok, fmt.Errorf("invalid field {%s}", body)
		}
	}
	return tok, nil
}

// Fields returns the distinct top-level keys referenced by tmpl.
func Fields(tmpl string) ([]string, error) {
	tokens, err := Tokenize(tmpl, true)
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var out []string
	for _, tok := range tokens {
		if tok.Kind == Field && !seen[tok.Name] {
			seen[tok.Name] = true
			out = append(out, tok.Name)
		}
	}
	return out, nil
}

// Format renders tmpl with data. "<" and ">" are ordinary characters.
func Format(tmpl string, data map[string]any) (string, error) {
	tokens, err := Tokenize(tmpl, false)
	if err != nil {
		return "", err
	}
	return render(tokens, data)
}

// FormatOptional renders tmpl, dropping every "<...>" group that references
// a missing key. The group delimiters are removed from the result and a
// doubled dot left behind by a dropped group collapses to one.
func FormatOptional(tmpl string, data map[string]any) (string, error) {
	tokens, err := Tokenize(tmpl, true)
	if err != nil {
		return "", err
	}

	var out strings.Builder
	for i := 0; i < len(tokens); i++ {
		if tokens[i].Kind != OptionalStart {
			rendered, err := render(tokens[i:i+1], data)
			if err != nil {
				return "", err
			}
			out.WriteString(rendered)
			continue
		}

		end := i + 1
		for tokens[end].Kind != OptionalEnd {
			end++
		}
		rendered, err := render(tokens[i+1:end], data)
		switch {
		case err == nil:
			out.WriteString(rendered)
		case !IsMissingKey(err):
			return "", err
		}
		i = end
	}

	return strings.ReplaceAll(out.String(), "..", "."), nil
}

func render(tokens []Token, data map[string]any) (string, error) {
	var out strings.Builder
	for _, tok := range tokens {
		switch tok.Kind {
		case Literal:
			out.WriteString(tok.Text)
		case Field:
			value, err := Lookup(data, tok.Name, tok.Path...)
			if err != nil {
				return "", err
			}
			formatted, err := applySpec(value, tok.Spec)
			if err != nil {
				return "", fmt.Errorf("field %s: %w", tok.Text, err)
			}
			out.WriteString(formatted)
		}
	}
	return out.String(), nil
}

// Lookup resolves name and the nested path through maps and slices.
func Lookup(data map[string]any, name string, path ...string) (any, error) {
	value, ok := data[name]
	if !ok {
		return nil, &MissingKeyError{Key: name}
	}

	key := name
	for _, segment := range path {
		key += "[" + segment + "]"
		next, ok := index(value, segment)
		if !ok {
			return nil, &MissingKeyError{Key: key}
		}
		value = next
	}
	return value, nil
}

func index(container any, segment string) (any, bool) {
	v := reflect.ValueOf(container)
	for v.Kind() == reflect.Interface || v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil, false
		}
		v = v.Elem()
	}

	switch v.Kind() {
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			return nil, false
		}
		item := v.MapIndex(reflect.ValueOf(segment).Convert(v.Type().Key()))
		if !item.IsValid() {
			return nil, false
		}
		return item.Interface(), true
	case reflect.Slice, reflect.Array:
		n, err := strconv.Atoi(segment)
		if err != nil || n < 0 || n >= v.Len() {
			return nil, false
		}
		return v.Index(n).Interface(), true
	case reflect.Struct:
		field := v.FieldByName(segment)
		if !field.IsValid() || !field.CanInterface() {
			return nil, false
		}
		return field.Interface(), true
	}
	return nil, false
}
