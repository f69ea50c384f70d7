package cli

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOutputFormat(t *testing.T) {
	tests := []struct {
		input   string
		want    OutputFormat
		wantErr bool
	}{
		{"", OutputFormatText, false},
		{"text", OutputFormatText, false},
		{"json", OutputFormatJSON, false},
		{"yaml", OutputFormatYAML, false},
		{"yml", OutputFormatYAML, false},
		{"xml", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseOutputFormat(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWrite(t *testing.T) {
	data := struct {
		Name string `json:"name" yaml:"name"`
	}{Name: "x"}

	tests := []struct {
		format OutputFormat
		want   string
	}{
		{OutputFormatJSON, "{\n  \"name\": \"x\"\n}\n"},
		{OutputFormatYAML, "name: x\n"},
		{OutputFormatText, "text x\n"},
	}

	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			var buf bytes.Buffer
			c := &CLI{out: &buf, format: tt.format}
			err := c.write(data, func(w io.Writer) error {
				_, err := w.Write([]byte("text x\n"))
				return err
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestRenderTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, renderTable(&buf, []string{"Setting", "Value"}, [][]string{
		{"Host", "https://api.tiledb.com"},
		{"Verify TLS", "yes"},
	}))

	assert.Contains(t, buf.String(), "https://api.tiledb.com")
	assert.Contains(t, buf.String(), "Verify TLS")
}
