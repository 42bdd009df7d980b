package value

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDecodeJSON_PreservesOrder(t *testing.T) {
	v, err := DecodeJSON([]byte(`{"z": 1, "a": [true, null, "s", 2.5], "m": {"y": {}, "b": []}}`))
	require.NoError(t, err)

	m := v.(*Mapping)
	assert.Equal(t, []string{"z", "a", "m"}, m.Keys())

	inner, _ := m.Get("m")
	assert.Equal(t, []string{"y", "b"}, inner.(*Mapping).Keys())

	out, err := EncodeJSON(v)
	require.NoError(t, err)
	assert.Equal(t, `{"z":1,"a":[true,null,"s",2.5],"m":{"y":{},"b":[]}}`, string(out))
}

func TestDecodeJSON_Errors(t *testing.T) {
	for _, input := range []string{`{"a":`, `{"a":1} extra`, `[1,`, ``} {
		_, err := DecodeJSON([]byte(input))
		assert.Error(t, err, input)
	}
}

func TestDecodeYAML(t *testing.T) {
	src := `
name: arbor
count: 3
ratio: 0.5
enabled: true
nothing: ~
defaults: &defaults
  color: red
theme:
  <<: *defaults
  size: 12
items:
  - one
  - 2
`
	v, err := DecodeYAML([]byte(src))
	require.NoError(t, err)

	m := v.(*Mapping)
	assert.Equal(t, []string{"name", "count", "ratio", "enabled", "nothing", "defaults", "theme", "items"}, m.Keys())
	assert.Equal(t, map[string]any{
		"name":     "arbor",
		"count":    3.0,
		"ratio":    0.5,
		"enabled":  true,
		"nothing":  nil,
		"defaults": map[string]any{"color": "red"},
		"theme":    map[string]any{"color": "red", "size": 12.0},
		"items":    []any{"one", 2.0},
	}, ToAny(v))
}

func TestDecodeYAML_Empty(t *testing.T) {
	v, err := DecodeYAML(nil)
	require.NoError(t, err)
	assert.Equal(t, KindMapping, v.Kind())
	assert.Equal(t, 0, v.(*Mapping).Len())
}

func TestDecodeYAMLNode(t *testing.T) {
	var holder struct {
		Value yaml.Node `yaml:"value"`
	}
	require.NoError(t, yaml.Unmarshal([]byte("value:\n  b: 1\n  a: [x]\n"), &holder))

	v, err := DecodeYAMLNode(&holder.Value)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, v.(*Mapping).Keys())

	v, err = DecodeYAMLNode(&yaml.Node{})
	require.NoError(t, err)
	assert.Equal(t, KindMapping, v.Kind())
}

func TestDecodeTOML(t *testing.T) {
	src := `
title = "doc"
port = 8080

[owner]
name = "x"
tags = ["a", "b"]
`
	v, err := DecodeTOML([]byte(src))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"title": "doc",
		"port":  8080.0,
		"owner": map[string]any{"name": "x", "tags": []any{"a", "b"}},
	}, ToAny(v))
}

func TestDecode_Dispatch(t *testing.T) {
	_, err := Decode(Format("xml"), []byte("<a/>"))
	assert.Error(t, err)

	v, err := Decode(FormatJSON, []byte(`[1]`))
	require.NoError(t, err)
	assert.Equal(t, KindSequence, v.Kind())
}

func TestFormatFromExt(t *testing.T) {
	tests := []struct {
		ext    string
		format Format
		ok     bool
	}{
		{".json", FormatJSON, true},
		{"yml", FormatYAML, true},
		{".YAML", FormatYAML, true},
		{".toml", FormatTOML, true},
		{".ini", "", false},
	}
	for _, tt := range tests {
		f, ok := FormatFromExt(tt.ext)
		assert.Equal(t, tt.ok, ok, tt.ext)
		assert.Equal(t, tt.format, f, tt.ext)
	}
}

func TestEncodeJSONIndent(t *testing.T) {
	v := MustFromAny(map[string]any{"a": 1})
	out, err := EncodeJSONIndent(v, "", "  ")
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"a\": 1\n}", string(out))
}
