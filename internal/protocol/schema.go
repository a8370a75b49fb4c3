package protocol

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"slices"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/hashicorp/go-multierror"
	"github.com/mitchellh/mapstructure"

	scopeerr "github.com/Aman-CERP/protoscope/internal/errors"
)

// FieldType is the value type of a configuration field.
type FieldType int

const (
	FieldString FieldType = iota
	FieldInteger
	FieldDouble
	FieldBoolean
	FieldEnum
)

var fieldTypeNames = map[FieldType]string{
	FieldString:  "string",
	FieldInteger: "integer",
	FieldDouble:  "double",
	FieldBoolean: "boolean",
	FieldEnum:    "enum",
}

// String returns the lowercase type name.
func (t FieldType) String() string {
	if name, ok := fieldTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("FieldType(%d)", int(t))
}

// MarshalText implements encoding.TextMarshaler.
func (t FieldType) MarshalText() ([]byte, error) {
	if _, ok := fieldTypeNames[t]; !ok {
		return nil, fmt.Errorf("unknown field type %d", int(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *FieldType) UnmarshalText(text []byte) error {
	name := strings.ToLower(string(text))
	for ft, n := range fieldTypeNames {
		if n == name {
			*t = ft
			return nil
		}
	}
	return fmt.Errorf("unknown field type %q", text)
}

// Constraints restrict the values a field accepts. Min and Max bound numbers,
// or the length of strings. Options and Pattern apply to strings and enums.
type Constraints struct {
	Min     *float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max     *float64 `json:"max,omitempty" yaml:"max,omitempty"`
	Options []string `json:"options,omitempty" yaml:"options,omitempty"`
	Pattern string   `json:"pattern,omitempty" yaml:"pattern,omitempty"`
}

// ConfigField describes one configuration key.
type ConfigField struct {
	Name        string      `json:"name" yaml:"name"`
	Type        FieldType   `json:"type" yaml:"type"`
	Default     any         `json:"default,omitempty" yaml:"default,omitempty"`
	Required    bool        `json:"required" yaml:"required"`
	Description string      `json:"description,omitempty" yaml:"description,omitempty"`
	Constraints Constraints `json:"constraints,omitzero" yaml:"constraints,omitempty"`
}

// Schema is the ordered list of fields a plugin accepts.
type Schema []ConfigField

// Field returns the field called name.
func (s Schema) Field(name string) (ConfigField, bool) {
	for _, f := range s {
		if f.Name == name {
			return f, true
		}
	}
	return ConfigField{}, false
}

// Check reports problems with the schema itself: empty or duplicate names,
// enums without options, bad patterns, inverted bounds and defaults that
// their own field would reject.
func (s Schema) Check() error {
	var result *multierror.Error
	seen := make(map[string]bool, len(s))

	for i, f := range s {
		bad := func(format string, args ...any) {
			msg := fmt.Sprintf("field %d (%q): ", i, f.Name) + fmt.Sprintf(format, args...)
			result = multierror.Append(result, scopeerr.New(scopeerr.ErrCodeSchemaInvalid, msg, nil))
		}

		if f.Name == "" {
			bad("name is empty")
			continue
		}
		if seen[f.Name] {
			bad("duplicate name")
		}
		seen[f.Name] = true

		if _, ok := fieldTypeNames[f.Type]; !ok {
			bad("unknown type %d", int(f.Type))
			continue
		}
		if f.Type == FieldEnum && len(f.Constraints.Options) == 0 {
			bad("enum without options")
		}
		if f.Constraints.Pattern != "" {
			if _, err := regexp.Compile(f.Constraints.Pattern); err != nil {
				bad("invalid pattern: %v", err)
				continue
			}
		}
		if c := f.Constraints; c.Min != nil && c.Max != nil && *c.Min > *c.Max {
			bad("min %v greater than max %v", *c.Min, *c.Max)
			continue
		}
		if f.Default != nil {
			if err := checkValue(f, f.Default); err != nil {
				bad("default rejected: %s", err.Message)
			}
		}
	}

	return formatted(result).ErrorOrNil()
}

// ValidateConfig checks cfg against the schema and returns every problem at
// once: missing required fields, wrong types, constraint violations and keys
// the schema does not know.
func ValidateConfig(schema Schema, cfg Config) error {
	var result *multierror.Error

	for _, f := range schema {
		v, ok := cfg[f.Name]
		if !ok || v == nil {
			if f.Required {
				result = multierror.Append(result, fieldError(scopeerr.ErrCodeFieldRequired, f.Name,
					fmt.Sprintf("field %q is required", f.Name)))
			}
			continue
		}
		if err := checkValue(f, v); err != nil {
			result = multierror.Append(result, err)
		}
	}

	unknown := make([]string, 0)
	for k := range cfg {
		if _, ok := schema.Field(k); !ok {
			unknown = append(unknown, k)
		}
	}
	sort.Strings(unknown)
	for _, k := range unknown {
		result = multierror.Append(result, fieldError(scopeerr.ErrCodeFieldUnknown, k,
			fmt.Sprintf("field %q is not part of the schema", k)))
	}

	return formatted(result).ErrorOrNil()
}

// WithDefaults returns a copy of cfg with schema defaults filled in for
// absent fields. cfg itself is not modified.
func WithDefaults(schema Schema, cfg Config) Config {
	out := make(Config, len(cfg)+len(schema))
	for k, v := range cfg {
		out[k] = v
	}
	for _, f := range schema {
		if v, ok := out[f.Name]; (!ok || v == nil) && f.Default != nil {
			out[f.Name] = f.Default
		}
	}
	return out
}

// Decode copies cfg into the struct pointed to by out. Struct fields are
// matched by their `config` tag, falling back to a case-insensitive name match.
func Decode(cfg Config, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "config",
		Result:           out,
		WeaklyTypedInput: false,
	})
	if err != nil {
		return scopeerr.InternalError("failed to build config decoder", err)
	}
	if err := dec.Decode(map[string]any(cfg)); err != nil {
		return scopeerr.New(scopeerr.ErrCodeFieldType, "failed to decode plugin config", err)
	}
	return nil
}

// Problems flattens an error returned by ValidateConfig or Schema.Check.
func Problems(err error) []error {
	if err == nil {
		return nil
	}
	var merr *multierror.Error
	if errors.As(err, &merr) {
		return merr.Errors
	}
	return []error{err}
}

func checkValue(f ConfigField, v any) *scopeerr.ScopeError {
	typeErr := func() *scopeerr.ScopeError {
		return fieldError(scopeerr.ErrCodeFieldType, f.Name,
			fmt.Sprintf("field %q must be %s, got %T", f.Name, articled(f.Type), v))
	}
	c := f.Constraints

	switch f.Type {
	case FieldBoolean:
		if _, ok := v.(bool); !ok {
			return typeErr()
		}
		return nil

	case FieldInteger:
		n, ok := asInteger(v)
		if !ok {
			return typeErr()
		}
		return checkBounds(f, float64(n), "")

	case FieldDouble:
		n, ok := asFloat(v)
		if !ok {
			return typeErr()
		}
		return checkBounds(f, n, "")

	case FieldString, FieldEnum:
		s, ok := v.(string)
		if !ok {
			return typeErr()
		}
		if len(c.Options) > 0 && !slices.Contains(c.Options, s) {
			return fieldError(scopeerr.ErrCodeFieldConstraint, f.Name,
				fmt.Sprintf("field %q must be one of [%s], got %q", f.Name, strings.Join(c.Options, ", "), s))
		}
		if c.Pattern != "" {
			re, err := regexp.Compile(c.Pattern)
			if err != nil || !re.MatchString(s) {
				return fieldError(scopeerr.ErrCodeFieldConstraint, f.Name,
					fmt.Sprintf("field %q must match %s", f.Name, c.Pattern))
			}
		}
		return checkBounds(f, float64(utf8.RuneCountInString(s)), "length of ")
	}

	return typeErr()
}

func checkBounds(f ConfigField, n float64, what string) *scopeerr.ScopeError {
	c := f.Constraints
	if c.Min != nil && n < *c.Min {
		return fieldError(scopeerr.ErrCodeFieldConstraint, f.Name,
			fmt.Sprintf("%sfield %q must be >= %v, got %v", what, f.Name, *c.Min, n))
	}
	if c.Max != nil && n > *c.Max {
		return fieldError(scopeerr.ErrCodeFieldConstraint, f.Name,
			fmt.Sprintf("%sfield %q must be <= %v, got %v", what, f.Name, *c.Max, n))
	}
	return nil
}

// asInteger accepts Go integers and integral floats (JSON numbers decode as float64).
func asInteger(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), uint64(n) <= math.MaxInt64
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), n <= math.MaxInt64
	case float32:
		return asInteger(float64(n))
	case float64:
		if n != math.Trunc(n) || n >= 1<<63 || n < -(1<<63) {
			return 0, false
		}
		return int64(n), true
	}
	return 0, false
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, !math.IsNaN(n)
	case float32:
		return float64(n), true
	}
	if i, ok := asInteger(v); ok {
		return float64(i), true
	}
	return 0, false
}

func fieldError(code, field, msg string) *scopeerr.ScopeError {
	return scopeerr.New(code, msg, nil).WithDetail("field", field)
}

func articled(t FieldType) string {
	if t == FieldInteger || t == FieldEnum {
		return "an " + t.String()
	}
	return "a " + t.String()
}

// formatted gives the multierror a single-line message.
func formatted(result *multierror.Error) *multierror.Error {
	if result == nil {
		return nil
	}
	result.ErrorFormat = func(errs []error) string {
		msgs := make([]string, len(errs))
		for i, err := range errs {
			if se, ok := scopeerr.As(err); ok {
				msgs[i] = se.Message
			} else {
				msgs[i] = err.Error()
			}
		}
		if len(msgs) == 1 {
			return msgs[0]
		}
		return fmt.Sprintf("%d problems: %s", len(msgs), strings.Join(msgs, "; "))
	}
	return result
}
