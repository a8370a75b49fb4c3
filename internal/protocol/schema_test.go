package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	scopeerr "github.com/Aman-CERP/protoscope/internal/errors"
)

func ptr(f float64) *float64 { return &f }

func testSchema() Schema {
	return Schema{
		{Name: "host", Type: FieldString, Required: true, Constraints: Constraints{Pattern: `^[a-z0-9.-]+$`}},
		{Name: "port", Type: FieldInteger, Default: 502, Constraints: Constraints{Min: ptr(1), Max: ptr(65535)}},
		{Name: "scale", Type: FieldDouble, Default: 1.0},
		{Name: "enabled", Type: FieldBoolean, Default: true},
		{Name: "mode", Type: FieldEnum, Default: "tcp", Constraints: Constraints{Options: []string{"tcp", "rtu"}}},
	}
}

func codes(err error) []string {
	var out []string
	for _, p := range Problems(err) {
		out = append(out, scopeerr.GetCode(p))
	}
	return out
}

func TestValidateConfig_Valid(t *testing.T) {
	// Given: a config that satisfies every field
	cfg := Config{"host": "plc-1.local", "port": 1502, "scale": 0.5, "enabled": false, "mode": "rtu"}

	// Then: no error
	assert.NoError(t, ValidateConfig(testSchema(), cfg))
}

func TestValidateConfig_OptionalFieldsMayBeAbsent(t *testing.T) {
	assert.NoError(t, ValidateConfig(testSchema(), Config{"host": "plc"}))
}

func TestValidateConfig_ReportsAllProblems(t *testing.T) {
	// Given: a config with four different problems
	cfg := Config{
		"port":    70000,
		"enabled": "yes",
		"mode":    "udp",
		"extra":   1,
	}

	// When: validating
	err := ValidateConfig(testSchema(), cfg)

	// Then: every problem is reported, schema order first, unknown keys last
	require.Error(t, err)
	assert.Equal(t, []string{
		scopeerr.ErrCodeFieldRequired,
		scopeerr.ErrCodeFieldConstraint,
		scopeerr.ErrCodeFieldType,
		scopeerr.ErrCodeFieldConstraint,
		scopeerr.ErrCodeFieldUnknown,
	}, codes(err))
	assert.Contains(t, err.Error(), "5 problems")
	assert.Contains(t, err.Error(), `field "host" is required`)
}

func TestValidateConfig_SingleProblemMessage(t *testing.T) {
	err := ValidateConfig(testSchema(), Config{})

	require.Error(t, err)
	assert.Equal(t, `field "host" is required`, err.Error())
	assert.Equal(t, scopeerr.ErrCodeFieldRequired, scopeerr.GetCode(err))
}

func TestValidateConfig_NilValueCountsAsAbsent(t *testing.T) {
	err := ValidateConfig(testSchema(), Config{"host": nil})

	assert.Equal(t, []string{scopeerr.ErrCodeFieldRequired}, codes(err))
}

func TestValidateConfig_IntegerAcceptsIntegralFloats(t *testing.T) {
	// JSON numbers decode as float64
	assert.NoError(t, ValidateConfig(testSchema(), Config{"host": "plc", "port": float64(8080)}))

	err := ValidateConfig(testSchema(), Config{"host": "plc", "port": 80.5})
	assert.Equal(t, []string{scopeerr.ErrCodeFieldType}, codes(err))
}

func TestValidateConfig_DoubleAcceptsIntegers(t *testing.T) {
	assert.NoError(t, ValidateConfig(testSchema(), Config{"host": "plc", "scale": 2}))
}

func TestValidateConfig_PatternMismatch(t *testing.T) {
	err := ValidateConfig(testSchema(), Config{"host": "PLC_1"})

	assert.Equal(t, []string{scopeerr.ErrCodeFieldConstraint}, codes(err))
	assert.Contains(t, err.Error(), "must match")
}

func TestValidateConfig_StringLengthBounds(t *testing.T) {
	schema := Schema{{Name: "tag", Type: FieldString, Constraints: Constraints{Min: ptr(2), Max: ptr(4)}}}

	assert.NoError(t, ValidateConfig(schema, Config{"tag": "äbc"}))
	assert.Error(t, ValidateConfig(schema, Config{"tag": "a"}))
	assert.Error(t, ValidateConfig(schema, Config{"tag": "abcde"}))
}

func TestValidateConfig_ProblemsCarryFieldDetail(t *testing.T) {
	err := ValidateConfig(testSchema(), Config{"host": "plc", "port": 0})

	problems := Problems(err)
	require.Len(t, problems, 1)
	se, ok := scopeerr.As(problems[0])
	require.True(t, ok)
	assert.Equal(t, "port", se.Details["field"])
}

func TestWithDefaults(t *testing.T) {
	// Given: a partial config
	cfg := Config{"host": "plc", "port": 1502}

	// When: applying defaults
	out := WithDefaults(testSchema(), cfg)

	// Then: absent fields get defaults, present ones are kept, input untouched
	assert.Equal(t, Config{"host": "plc", "port": 1502, "scale": 1.0, "enabled": true, "mode": "tcp"}, out)
	assert.Len(t, cfg, 2)
}

func TestDecode(t *testing.T) {
	type settings struct {
		Host    string  `config:"host"`
		Port    int     `config:"port"`
		Scale   float64 `config:"scale"`
		Enabled bool    `config:"enabled"`
	}

	var s settings
	err := Decode(Config{"host": "plc", "port": float64(1502), "scale": 2, "enabled": true}, &s)

	require.NoError(t, err)
	assert.Equal(t, settings{Host: "plc", Port: 1502, Scale: 2, Enabled: true}, s)
}

func TestDecode_TypeMismatch(t *testing.T) {
	var s struct {
		Port int `config:"port"`
	}

	err := Decode(Config{"port": "not a number"}, &s)

	assert.Equal(t, scopeerr.ErrCodeFieldType, scopeerr.GetCode(err))
}

func TestSchemaCheck_Valid(t *testing.T) {
	assert.NoError(t, testSchema().Check())
}

func TestSchemaCheck_Problems(t *testing.T) {
	schema := Schema{
		{Name: "", Type: FieldString},
		{Name: "a", Type: FieldString},
		{Name: "a", Type: FieldString},
		{Name: "e", Type: FieldEnum},
		{Name: "p", Type: FieldString, Constraints: Constraints{Pattern: "("}},
		{Name: "r", Type: FieldInteger, Constraints: Constraints{Min: ptr(5), Max: ptr(1)}},
		{Name: "d", Type: FieldInteger, Default: "zero"},
		{Name: "t", Type: FieldType(42)},
	}

	err := schema.Check()

	require.Error(t, err)
	assert.Len(t, Problems(err), 7)
	for _, c := range codes(err) {
		assert.Equal(t, scopeerr.ErrCodeSchemaInvalid, c)
	}
}

func TestFieldType_TextRoundTrip(t *testing.T) {
	for ft, name := range fieldTypeNames {
		text, err := ft.MarshalText()
		require.NoError(t, err)
		assert.Equal(t, name, string(text))

		var back FieldType
		require.NoError(t, back.UnmarshalText([]byte(name)))
		assert.Equal(t, ft, back)
	}

	var bad FieldType
	assert.Error(t, bad.UnmarshalText([]byte("decimal")))
	_, err := FieldType(42).MarshalText()
	assert.Error(t, err)
}

func TestSchema_EncodesTypeNames(t *testing.T) {
	data, err := json.Marshal(Schema{{Name: "dummy", Type: FieldInteger, Default: 0}})
	require.NoError(t, err)
	assert.JSONEq(t, `[{"name":"dummy","type":"integer","default":0,"required":false}]`, string(data))

	var fromYAML Schema
	require.NoError(t, yaml.Unmarshal([]byte("- name: mode\n  type: enum\n  constraints:\n    options: [a, b]\n"), &fromYAML))
	require.Len(t, fromYAML, 1)
	assert.Equal(t, FieldEnum, fromYAML[0].Type)
	assert.Equal(t, []string{"a", "b"}, fromYAML[0].Constraints.Options)
}

func TestCompatible(t *testing.T) {
	assert.True(t, Compatible("1.0"))
	assert.True(t, Compatible("1.3"))
	assert.False(t, Compatible("2.0"))
	assert.False(t, Compatible(""))
	assert.Equal(t, "1", MajorVersion(" 1.2.3 "))
}
