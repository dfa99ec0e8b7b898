package cursor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	errs "twaler/pkg/errors"
)

func TestParseNormalizes(t *testing.T) {
	tests := []struct {
		raw  string
		want Cursor
	}{
		{"0", Terminal},
		{"000", Terminal},
		{"-0", Terminal},
		{" -1 ", Start},
		{"1374004777531007833", "1374004777531007833"},
		{"+42", "42"},
		{"abc123", "abc123"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := Parse(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := Parse("   ")
	assert.True(t, errs.Is(err, errs.ErrorTypeParsing))
}

func TestTerminal(t *testing.T) {
	assert.True(t, Terminal.IsTerminal())
	assert.False(t, Start.IsTerminal())
	assert.True(t, MustParse("00").IsTerminal())
}

func TestFromJSON(t *testing.T) {
	tests := []struct {
		name string
		body string
		want Cursor
	}{
		{"integer", `{"ids":[1,2],"next_cursor":1374004777531007833,"previous_cursor":0}`, "1374004777531007833"},
		{"terminal integer", `{"ids":[],"next_cursor":0}`, Terminal},
		{"string", `{"next_cursor":"0"}`, Terminal},
		{"prefers string form", `{"next_cursor":1.5e18,"next_cursor_str":"1500000000000000001"}`, "1500000000000000001"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromJSON([]byte(tt.body))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFromJSONFailures(t *testing.T) {
	for name, body := range map[string]string{
		"missing":   `{"ids":[1,2,3]}`,
		"null":      `{"next_cursor":null}`,
		"truncated": `{"ids":[1,2`,
		"html":      `Twitter is over capacity`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := FromJSON([]byte(body))
			require.Error(t, err)
			assert.Equal(t, errs.ErrorTypeParsing, errs.TypeOf(err))
		})
	}
}

func TestFromXML(t *testing.T) {
	body := `<?xml version="1.0" encoding="UTF-8"?>
<id_list>
  <ids><id>12</id><id>13</id></ids>
  <next_cursor>1374004777531007833</next_cursor>
  <previous_cursor>0</previous_cursor>
</id_list>`

	got, err := FromXML([]byte(body))
	require.NoError(t, err)
	assert.Equal(t, Cursor("1374004777531007833"), got)

	got, err = FromXML([]byte(`<users_list><next_cursor>0</next_cursor></users_list>`))
	require.NoError(t, err)
	assert.True(t, got.IsTerminal())

	_, err = FromXML([]byte(`<id_list><ids/></id_list>`))
	assert.True(t, errs.Is(err, errs.ErrorTypeParsing))
}

func TestExtractDetectsFormat(t *testing.T) {
	got, err := Extract([]byte("\n  <id_list><next_cursor>7</next_cursor></id_list>"))
	require.NoError(t, err)
	assert.Equal(t, Cursor("7"), got)

	got, err = Extract([]byte(`  {"next_cursor": 8}`))
	require.NoError(t, err)
	assert.Equal(t, Cursor("8"), got)
}

func TestExtractSkipsByteOrderMark(t *testing.T) {
	got, err := Extract([]byte("\ufeff<id_list><next_cursor>9</next_cursor></id_list>"))
	require.NoError(t, err)
	assert.Equal(t, Cursor("9"), got)

	got, err = Extract([]byte("\ufeff\n{\"next_cursor_str\": \"10\"}"))
	require.NoError(t, err)
	assert.Equal(t, Cursor("10"), got)
}
