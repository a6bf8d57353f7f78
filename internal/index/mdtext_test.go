package index

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPlainText(t *testing.T) {
	tests := []struct {
		name     string
		markdown string
		want     string
	}{
		{
			name:     "plain paragraph",
			markdown: "Patient presented with acute symptoms.",
			want:     "Patient presented with acute symptoms.",
		},
		{
			name:     "emphasis stripped",
			markdown: "The result was **negative** for _all_ markers.",
			want:     "The result was negative for all markers.",
		},
		{
			name:     "heading and paragraph",
			markdown: "## Findings\n\nNo anomalies detected.",
			want:     "Findings\nNo anomalies detected.",
		},
		{
			name:     "link keeps label",
			markdown: "See [appendix B](https://example.com/b) for details.",
			want:     "See appendix B for details.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, PlainText(tt.markdown))
		})
	}
}

func TestPlainTextTable(t *testing.T) {
	markdown := "| Test | Result |\n| --- | --- |\n| HDL | 58 |\n| LDL | 102 |"
	got := PlainText(markdown)
	require.Contains(t, got, "HDL 58")
	require.Contains(t, got, "LDL 102")
	require.NotContains(t, got, "|")
	require.NotContains(t, got, "---")
}

func TestExcerptOf(t *testing.T) {
	require.Equal(t, "short text", excerptOf("short text"))

	long := strings.Repeat("word ", 100)
	got := excerptOf(long)
	require.LessOrEqual(t, len(got), maxExcerptLen)
	require.False(t, strings.HasSuffix(got, " "))
	require.True(t, strings.HasSuffix(got, "word"))

	require.Equal(t, "bold value", excerptOf("**bold** value"))
}
