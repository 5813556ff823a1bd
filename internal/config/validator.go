package config

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/alexisbeaulieu97/avalon/internal/logger"
	"github.com/alexisbeaulieu97/avalon/pkg/api"
	avalonerrors "github.com/alexisbeaulieu97/avalon/pkg/errors"
)

var (
	validatorOnce sync.Once
	validateInst  *validator.Validate

	sshGitPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+:[a-zA-Z0-9._/~-]+$`)
)

func validatorInstance() *validator.Validate {
	validatorOnce.Do(func() {
		v := validator.New()

		_ = v.RegisterValidation("plugin_kind", func(fl validator.FieldLevel) bool {
			_, err := api.ParseKind(fl.Field().String())
			return err == nil
		})

		_ = v.RegisterValidation("loglevel", func(fl validator.FieldLevel) bool {
			_, err := logger.ParseLevel(fl.Field().String())
			return err == nil
		})

		_ = v.RegisterValidation("git_url", func(fl validator.FieldLevel) bool {
			raw := strings.TrimSpace(fl.Field().String())
			if raw == "" {
				return false
			}
			if parsed, err := url.Parse(raw); err == nil {
				switch strings.ToLower(parsed.Scheme) {
				case "http", "https", "ssh", "git":
					return parsed.Host != ""
				case "file":
					return parsed.Path != ""
				}
			}
			if sshGitPattern.MatchString(raw) {
				return true
			}
			return !strings.Contains(raw, "\x00") && !strings.Contains(raw, "://")
		})

		validateInst = v
	})

	return validateInst
}

// ValidateSettings checks the settings structure and reports the first
// problem as *errors.ValidationError.
func ValidateSettings(s *Settings) error {
	if s == nil {
		return avalonerrors.NewValidationError("settings", "settings are nil", nil)
	}

	if err := validatorInstance().Struct(s); err != nil {
		return convertValidationError(err)
	}

	seen := map[string]int{}
	for i, repo := range s.Repositories {
		if previous, ok := seen[repo.Destination]; ok {
			return avalonerrors.NewValidationError(
				fmt.Sprintf("repositories[%d].destination", i),
				fmt.Sprintf("duplicates repositories[%d].destination", previous),
				nil,
			)
		}
		seen[repo.Destination] = i
	}
	return nil
}

func convertValidationError(err error) error {
	var ves validator.ValidationErrors
	if errors.As(err, &ves) && len(ves) > 0 {
		ve := ves[0]
		field := yamlishFieldName(ve)
		msg := fmt.Sprintf("%s failed validation for tag '%s'", field, ve.Tag())
		return avalonerrors.NewValidationError(field, msg, err)
	}
	return avalonerrors.NewValidationError("settings", err.Error(), err)
}

func yamlishFieldName(fe validator.FieldError) string {
	parts := strings.Split(fe.StructNamespace(), ".")
	if len(parts) > 1 {
		parts = parts[1:]
	}
	lowered := make([]string, 0, len(parts))
	for _, part := range parts {
		lowered = append(lowered, strings.ToLower(part))
	}
	return strings.Join(lowered, ".")
}
