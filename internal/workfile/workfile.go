package workfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strconv"
	"strings"

	"github.com/alexisbeaulieu97/avalon/internal/template"
)

// Workfile is an existing workfile found on disk.
type Workfile struct {
	Name    string
	Version int
}

// caseInsensitive reports whether file names on this platform match
// regardless of case.
var caseInsensitive = runtime.GOOS == "windows" || runtime.GOOS == "darwin"

// LastWithVersion returns the highest versioned workfile in dir whose name
// matches fileTemplate. Ties on version go to the name that sorts last. The
// boolean is false when dir is missing or nothing matches.
func LastWithVersion(dir, fileTemplate string, fillData map[string]any, extensions []string) (Workfile, bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Workfile{}, false, nil
		}
		return Workfile{}, false, fmt.Errorf("list workfiles in %s: %w", dir, err)
	}

	exts := normalizeExtensions(extensions)
	pattern, err := Pattern(fileTemplate, fillData, exts)
	if err != nil {
		return Workfile{}, false, err
	}

	var (
		found Workfile
		ok    bool
	)
	// os.ReadDir returns entries sorted by name.
	for _, entry := range entries {
		if entry.IsDir() || !hasExtension(entry.Name(), exts) {
			continue
		}
		match := pattern.FindStringSubmatch(entry.Name())
		if match == nil {
			continue
		}
		version, err := strconv.Atoi(match[1])
		if err != nil {
			continue
		}
		if !ok || version >= found.Version {
			found = Workfile{Name: entry.Name(), Version: version}
			ok = true
		}
	}
	return found, ok, nil
}

// Last returns the latest workfile name in dir or, when none exists, the name
// version 1 would get. With fullPath the result is joined to dir.
func Last(dir, fileTemplate string, fillData map[string]any, extensions []string, fullPath bool) (string, error) {
	found, ok, err := LastWithVersion(dir, fileTemplate, fillData, extensions)
	if err != nil {
		return "", err
	}

	name := found.Name
	if !ok {
		data := make(map[string]any, len(fillData)+2)
		for k, v := range fillData {
			data[k] = v
		}
		data["version"] = 1
		delete(data, "comment")
		if ext, _ := data["ext"].(string); ext == "" && len(extensions) > 0 {
			data["ext"] = extensions[0]
		}
		name, err = template.FormatOptional(fileTemplate, data)
		if err != nil {
			return "", fmt.Errorf("format first workfile name: %w", err)
		}
	}

	if fullPath {
		return filepath.Join(dir, name), nil
	}
	return name, nil
}

// Pattern converts a workfile template into an anchored regular expression.
// Optional groups match anything, {version} is captured as digits, {comment}
// matches any text and {ext} matches one of extensions. When the template has
// no {ext} field the extension alternation is appended.
func Pattern(fileTemplate string, fillData map[string]any, extensions []string) (*regexp.Regexp, error) {
	tokens, err := template.Tokenize(fileTemplate, true)
	if err != nil {
		return nil, err
	}

	exts := normalizeExtensions(extensions)
	quoted := make([]string, len(exts))
	for i, ext := range exts {
		quoted[i] = regexp.QuoteMeta(ext)
	}
	alternation := "(?:" + strings.Join(quoted, "|") + ")"

	var (
		expr       strings.Builder
		hasVersion bool
		hasExt     bool
	)
	if caseInsensitive {
		expr.WriteString("(?i)")
	}
	expr.WriteString("^")

	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		switch tok.Kind {
		case template.OptionalStart:
			for tokens[i].Kind != template.OptionalEnd {
				i++
			}
			expr.WriteString(".*?")
		case template.Literal:
			expr.WriteString(regexp.QuoteMeta(tok.Text))
		case template.Field:
			switch tok.Name {
			case "version":
				if hasVersion {
					expr.WriteString("[0-9]+")
				} else {
					expr.WriteString("([0-9]+)")
					hasVersion = true
				}
			case "comment":
				expr.WriteString(".+?")
			case "ext":
				current := strings.TrimSuffix(expr.String(), `\.`)
				expr.Reset()
				expr.WriteString(current)
				expr.WriteString(alternation)
				hasExt = true
			default:
				value, err := template.Format(tok.Text, fillData)
				if err != nil {
					return nil, err
				}
				expr.WriteString(regexp.QuoteMeta(value))
			}
		}
	}

	if !hasVersion {
		return nil, fmt.Errorf("workfile template %q has no {version} field", fileTemplate)
	}
	if !hasExt {
		expr.WriteString(alternation)
	}
	expr.WriteString("$")
	return regexp.Compile(expr.String())
}

func normalizeExtensions(extensions []string) []string {
	out := make([]string, 0, len(extensions))
	for _, ext := range extensions {
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		out = append(out, ext)
	}
	return out
}

func hasExtension(name string, exts []string) bool {
	ext := filepath.Ext(name)
	for _, candidate := range exts {
		if ext == candidate || (caseInsensitive && strings.EqualFold(ext, candidate)) {
			return true
		}
	}
	return false
}
