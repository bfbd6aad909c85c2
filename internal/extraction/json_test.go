package extraction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain object", `{"a":1}`, `{"a":1}`},
		{"fenced json", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"fenced no language", "```\n[1,2]\n```", `[1,2]`},
		{"prose around object", `Here is the result: {"a":1} hope that helps`, `{"a":1}`},
		{"prose around array", `The items are [{"x":1}] as requested.`, `[{"x":1}]`},
		{"object before array wins", `{"items":[1]}`, `{"items":[1]}`},
		{"whitespace", "  \n {\"a\":1} \n", `{"a":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanJSON(tt.in))
		})
	}
}

func TestParseMoney(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"$12,345.67", 12345.67, false},
		{"12,345.67", 12345.67, false},
		{"1000", 1000, false},
		{"$5,000", 5000, false},
		{"847.3", 847.3, false},
		{" $ 99.95", 99.95, false},
		{"", 0, true},
		{"abc", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseMoney(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"3/15/2024", "2024-03-15", false},
		{"03/15/2024", "2024-03-15", false},
		{"3/15/24", "2024-03-15", false}, // two-digit year is 2000+YY
		{"12/31/99", "2099-12-31", false},
		{"2/29/2024", "2024-02-29", false}, // leap day
		{"2/30/2024", "", true},            // not a calendar date
		{"13/01/2024", "", true},           // no month 13
		{"0/10/2024", "", true},
		{"3-15-2024", "", true},
		{"3/15", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseDate(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
