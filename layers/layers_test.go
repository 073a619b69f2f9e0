package layers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleIndex = `- "dependencies":
  - "BOOT-INF/lib/"
- "spring-boot-loader":
  - "org/"
- "snapshot-dependencies":
- "application":
  - "BOOT-INF/classes/"
  - "BOOT-INF/classpath.idx"
  - "BOOT-INF/layers.idx"
  - "META-INF/"
`

func TestParse(t *testing.T) {
	x, err := Parse(sampleIndex, "BOOT-INF/classes/")
	require.NoError(t, err)

	assert.Equal(t, []string{"dependencies", "spring-boot-loader", "snapshot-dependencies", "application"}, x.Names())

	application, err := x.ApplicationLayer()
	require.NoError(t, err)
	assert.Equal(t, "application", application)
}

func TestParse_CRLF(t *testing.T) {
	crlf := "- \"base\":\r\n  - \"a/\"\r\n  - \"b.jar\"\r\n"

	x, err := Parse(crlf, "a/")
	require.NoError(t, err)
	assert.Equal(t, []string{"base"}, x.Names())

	l, err := x.Layer("b.jar")
	require.NoError(t, err)
	assert.Equal(t, "base", l)
}

func TestParse_Idempotent(t *testing.T) {
	first, err := Parse(sampleIndex, "BOOT-INF/classes/")
	require.NoError(t, err)

	second, err := Parse(sampleIndex, "BOOT-INF/classes/")
	require.NoError(t, err)

	assert.Equal(t, first.Names(), second.Names())
}

func TestParse_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		index string
	}{
		{
			name:  "bogus line",
			index: "- \"base\":\nbogus-line\n",
		},
		{
			name:  "content before any layer",
			index: "  - \"a/\"\n- \"base\":\n",
		},
		{
			name:  "missing quotes",
			index: "- base:\n",
		},
		{
			name:  "bad indentation",
			index: "- \"base\":\n   - \"a/\"\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.index, "")
			assert.ErrorIs(t, err, ErrMalformedIndex)
		})
	}
}

func TestParse_Empty(t *testing.T) {
	for _, index := range []string{"", "\n", "\r\n\r\n"} {
		_, err := Parse(index, "")
		assert.ErrorIs(t, err, ErrEmptyIndex)
	}
}

func TestLayer(t *testing.T) {
	x, err := Parse("- \"base\":\n  - \"a/\"\n  - \"b/\"\n- \"app\":\n  - \"app.jar\"\n", "")
	require.NoError(t, err)

	tests := []struct {
		entry string
		layer string
	}{
		{entry: "a/x.class", layer: "base"},
		{entry: "a/deep/nested/y.class", layer: "base"},
		{entry: "b/z.txt", layer: "base"},
		{entry: "app.jar", layer: "app"},
	}

	for _, tt := range tests {
		t.Run(tt.entry, func(t *testing.T) {
			l, err := x.Layer(tt.entry)
			require.NoError(t, err)
			assert.Equal(t, tt.layer, l)
		})
	}
}

func TestLayer_NotIndexed(t *testing.T) {
	x, err := Parse("- \"base\":\n  - \"a/\"\n", "")
	require.NoError(t, err)

	for _, entry := range []string{"missing", "ab/x.class", "app.jar"} {
		_, err = x.Layer(entry)
		assert.ErrorIs(t, err, ErrNotIndexed, entry)
	}
}

func TestLayer_FirstMatchWins(t *testing.T) {
	// "a/" is claimed by both layers; declaration order decides.
	x, err := Parse("- \"first\":\n  - \"a/\"\n- \"second\":\n  - \"a/\"\n  - \"b/\"\n", "")
	require.NoError(t, err)

	l, err := x.Layer("a/x")
	require.NoError(t, err)
	assert.Equal(t, "first", l)

	l, err = x.Layer("b/x")
	require.NoError(t, err)
	assert.Equal(t, "second", l)
}

func TestAll(t *testing.T) {
	x, err := Parse(sampleIndex, "")
	require.NoError(t, err)

	var names []string
	for name, contents := range x.All() {
		names = append(names, name)
		if name == "snapshot-dependencies" {
			assert.Empty(t, contents)
		}
	}
	assert.Equal(t, x.Names(), names)
}
