package config

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	avalonerrors "github.com/alexisbeaulieu97/avalon/pkg/errors"
)

var yamlLineRegex = regexp.MustCompile(`line (\d+)`)

// DecodeYAMLFile reads path and unmarshals it into out. Read and decode
// failures are reported as *errors.ParseError carrying the YAML line when
// known.
func DecodeYAMLFile(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return avalonerrors.NewParseError(path, 0, err)
	}

	if err := yaml.Unmarshal(data, out); err != nil {
		return avalonerrors.NewParseError(path, extractLine(err), err)
	}
	return nil
}

func extractLine(err error) int {
	if err == nil {
		return 0
	}

	matches := yamlLineRegex.FindStringSubmatch(err.Error())
	if len(matches) != 2 {
		return 0
	}

	var line int
	if _, scanErr := fmt.Sscanf(matches[1], "%d", &line); scanErr != nil {
		return 0
	}
	return line
}
