package validation

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/oakmoor/jobsheet-audit/internal/entity"
)

// Predicate checks one field value. When the value fails, detail carries a
// short human-readable explanation for the finding message.
type Predicate func(value entity.FieldValue) (ok bool, detail string)

// ValidatorFactory builds a Predicate from the parameter text following the
// validator name in a rule's customValidator reference ("minLength:3" gives
// param "3"). A parameter the factory cannot use is a spec-authoring
// mistake and is returned as an error.
type ValidatorFactory func(param string) (Predicate, error)

var reISOShape = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// builtinValidators returns the default validator set. All builtins are
// pure functions of the value, so repeated runs stay reproducible.
func builtinValidators() map[string]ValidatorFactory {
	return map[string]ValidatorFactory{
		"minLength": minLengthValidator,
		"maxLength": maxLengthValidator,
		"oneOf":     oneOfValidator,
		"prefix":    prefixValidator,
		"isoDate":   isoDateValidator,
		"positive":  positiveValidator,
	}
}

func minLengthValidator(param string) (Predicate, error) {
	n, err := lengthParam(param)
	if err != nil {
		return nil, err
	}
	return func(value entity.FieldValue) (bool, string) {
		text := strings.TrimSpace(value.String())
		if len([]rune(text)) < n {
			return false, fmt.Sprintf("value %q is shorter than %d characters", text, n)
		}
		return true, ""
	}, nil
}

func maxLengthValidator(param string) (Predicate, error) {
	n, err := lengthParam(param)
	if err != nil {
		return nil, err
	}
	return func(value entity.FieldValue) (bool, string) {
		text := strings.TrimSpace(value.String())
		if len([]rune(text)) > n {
			return false, fmt.Sprintf("value %q is longer than %d characters", text, n)
		}
		return true, ""
	}, nil
}

func oneOfValidator(param string) (Predicate, error) {
	if param == "" {
		return nil, fmt.Errorf("oneOf requires a |-separated option list")
	}
	options := strings.Split(param, "|")
	allowed := make(map[string]bool, len(options))
	for _, option := range options {
		allowed[strings.ToLower(strings.TrimSpace(option))] = true
	}
	return func(value entity.FieldValue) (bool, string) {
		text := strings.TrimSpace(value.String())
		if !allowed[strings.ToLower(text)] {
			return false, fmt.Sprintf("value %q is not one of %s", text, param)
		}
		return true, ""
	}, nil
}

func prefixValidator(param string) (Predicate, error) {
	if param == "" {
		return nil, fmt.Errorf("prefix requires a parameter")
	}
	return func(value entity.FieldValue) (bool, string) {
		text := strings.TrimSpace(value.String())
		if !strings.HasPrefix(text, param) {
			return false, fmt.Sprintf("value %q does not start with %q", text, param)
		}
		return true, ""
	}, nil
}

func isoDateValidator(param string) (Predicate, error) {
	if param != "" {
		return nil, fmt.Errorf("isoDate takes no parameter")
	}
	return func(value entity.FieldValue) (bool, string) {
		text := strings.TrimSpace(value.String())
		if !reISOShape.MatchString(text) {
			return false, fmt.Sprintf("value %q is not an ISO date", text)
		}
		month, _ := strconv.Atoi(text[5:7])
		day, _ := strconv.Atoi(text[8:10])
		if month < 1 || month > 12 || day < 1 || day > 31 {
			return false, fmt.Sprintf("value %q is not a real calendar date", text)
		}
		return true, ""
	}, nil
}

func positiveValidator(param string) (Predicate, error) {
	if param != "" {
		return nil, fmt.Errorf("positive takes no parameter")
	}
	return func(value entity.FieldValue) (bool, string) {
		number, ok := value.AsNumber()
		if !ok {
			return false, fmt.Sprintf("value %q is not numeric", value.String())
		}
		if number <= 0 {
			return false, fmt.Sprintf("value %s is not positive", formatNumber(number))
		}
		return true, ""
	}, nil
}

func lengthParam(param string) (int, error) {
	n, err := strconv.Atoi(param)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("length parameter %q is not a non-negative integer", param)
	}
	return n, nil
}

func formatNumber(n float64) string {
	return strconv.FormatFloat(n, 'f', -1, 64)
}
