package oracle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{
			name: "bare object",
			in:   `{"importance": "重要", "score": 80}`,
			want: `{"importance": "重要", "score": 80}`,
			ok:   true,
		},
		{
			name: "fenced object",
			in:   "```json\n{\"a\": 1}\n```",
			want: `{"a": 1}`,
			ok:   true,
		},
		{
			name: "prose around object",
			in:   "Here is the analysis:\n{\"a\": 1}\nHope this helps.",
			want: `{"a": 1}`,
			ok:   true,
		},
		{
			name: "no object",
			in:   "I cannot answer that.",
			ok:   false,
		},
		{
			name: "malformed object",
			in:   `{"a": }`,
			ok:   false,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			raw, err := extractJSON(tc.in)
			if !tc.ok {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.JSONEq(t, tc.want, string(raw))
		})
	}
}
