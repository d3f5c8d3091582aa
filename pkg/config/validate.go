package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validate checks field rules and the extraction date range.
func (c *Config) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())

	if err := validate.Struct(c); err != nil {
		var errs validator.ValidationErrors
		if errors.As(err, &errs) {
			messages := make([]string, 0, len(errs))
			for _, e := range errs {
				messages = append(messages, fmt.Sprintf("%s: failed '%s' (value: '%v')", e.Namespace(), e.Tag(), redact(e)))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(messages, "; "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}

	start, err := c.Extraction.RangeStart()
	if err != nil {
		return fmt.Errorf("invalid configuration: extraction.date_start: %w", err)
	}
	end, err := c.Extraction.RangeEnd()
	if err != nil {
		return fmt.Errorf("invalid configuration: extraction.date_end: %w", err)
	}
	if end.Before(start) {
		return fmt.Errorf("invalid configuration: extraction.date_end %s is before date_start %s", c.Extraction.DateEnd, c.Extraction.DateStart)
	}
	return nil
}

func redact(e validator.FieldError) any {
	name := strings.ToLower(e.StructField())
	if strings.Contains(name, "token") || strings.Contains(name, "key") || strings.Contains(name, "password") {
		return "***"
	}
	return e.Value()
}
