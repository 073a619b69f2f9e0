package jarl

import (
	"archive/zip"
	"bytes"
	"io"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tdvo/jarl/layers"
)

const testManifest = "" +
	"Manifest-Version: 1.0\r\n" +
	"Main-Class: org.springframework.boot.loader.launch.JarLauncher\r\n" +
	"Start-Class: com.example.DemoApplication\r\n" +
	"Spring-Boot-Classes: BOOT-INF/classes/\r\n" +
	"Spring-Boot-Lib: BOOT-INF/lib/\r\n" +
	"Spring-Boot-Layers-Index: BOOT-INF/layers.idx\r\n" +
	"\r\n"

const testLayersIndex = "" +
	"- \"dependencies\":\n" +
	"  - \"BOOT-INF/lib/\"\n" +
	"- \"application\":\n" +
	"  - \"BOOT-INF/classes/\"\n" +
	"  - \"BOOT-INF/layers.idx\"\n" +
	"  - \"META-INF/\"\n"

// buildBootJar writes a minimal layered boot JAR; entries beyond the
// metadata pair come from extra in order.
func buildBootJar(t *testing.T, manifest, layersIndex string, extra map[string]string) []byte {
	t.Helper()

	buf := &bytes.Buffer{}
	zw := zip.NewWriter(buf)

	write := func(name, content string) {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}

	if manifest != "" {
		write("META-INF/MANIFEST.MF", manifest)
	}
	if layersIndex != "" {
		write("BOOT-INF/layers.idx", layersIndex)
	}
	for name, content := range extra {
		write(name, content)
	}

	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestOpen_Layered(t *testing.T) {
	b := buildBootJar(t, testManifest, testLayersIndex, map[string]string{
		"BOOT-INF/classes/com/example/DemoApplication.class": "classbytes",
		"BOOT-INF/lib/spring-core.jar":                       "jarbytes",
	})

	a, err := Open(bytes.NewReader(b), int64(len(b)))
	require.NoError(t, err)

	assert.True(t, a.Layered())
	assert.Equal(t, "com.example.DemoApplication", a.Manifest.Get("Start-Class"))
	assert.Equal(t, []string{"dependencies", "application"}, a.Layers.Names())

	application, err := a.Layers.ApplicationLayer()
	require.NoError(t, err)
	assert.Equal(t, "application", application)

	deps, err := a.EntriesInLayer("dependencies")
	require.NoError(t, err)
	require.Len(t, deps, 1)
	assert.Equal(t, "BOOT-INF/lib/spring-core.jar", deps[0].Name)

	app, err := a.EntriesInLayer("application")
	require.NoError(t, err)
	names := make([]string, 0, len(app))
	for _, fh := range app {
		names = append(names, fh.Name)
	}
	assert.Contains(t, names, "META-INF/MANIFEST.MF")
	assert.Contains(t, names, "BOOT-INF/layers.idx")
	assert.Contains(t, names, "BOOT-INF/classes/com/example/DemoApplication.class")
}

func TestOpen_NotLayered(t *testing.T) {
	// manifest without the layer index marker: a distinguished "not
	// layered" outcome rather than an error.
	b := buildBootJar(t, "Manifest-Version: 1.0\r\n\r\n", "", map[string]string{
		"app.jar": "jarbytes",
	})

	a, err := Open(bytes.NewReader(b), int64(len(b)))
	require.NoError(t, err)

	assert.False(t, a.Layered())
	assert.Nil(t, a.Layers)
}

func TestOpen_MarkerWithoutIndexEntry(t *testing.T) {
	// marker names an index entry that doesn't exist: also not layered.
	b := buildBootJar(t, testManifest, "", map[string]string{
		"app.jar": "jarbytes",
	})

	a, err := Open(bytes.NewReader(b), int64(len(b)))
	require.NoError(t, err)
	assert.False(t, a.Layered())
}

func TestOpen_MalformedIndex(t *testing.T) {
	b := buildBootJar(t, testManifest, "bogus-line\n", nil)

	_, err := Open(bytes.NewReader(b), int64(len(b)))
	assert.ErrorIs(t, err, layers.ErrMalformedIndex)
}

func TestOpen_EmptyIndex(t *testing.T) {
	b := buildBootJar(t, testManifest, "\n", nil)

	_, err := Open(bytes.NewReader(b), int64(len(b)))
	assert.ErrorIs(t, err, layers.ErrEmptyIndex)
}

func TestOpenEntry(t *testing.T) {
	b := buildBootJar(t, testManifest, testLayersIndex, map[string]string{
		"BOOT-INF/lib/spring-core.jar": "some reasonably long content so deflate has something to do, repeated: some reasonably long content",
	})

	a, err := Open(bytes.NewReader(b), int64(len(b)))
	require.NoError(t, err)

	r, err := a.OpenEntry("BOOT-INF/lib/spring-core.jar")
	require.NoError(t, err)
	defer r.Close()

	content, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "some reasonably long content so deflate has something to do, repeated: some reasonably long content", string(content))

	_, err = a.OpenEntry("nope")
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestOpen_PrefixedBootJar(t *testing.T) {
	// a fully executable jar: launch script, then the ZIP data.
	script := []byte("#!/bin/bash\nexec java -jar \"$0\" \"$@\"\nexit 0\n")
	plain := buildBootJar(t, testManifest, testLayersIndex, map[string]string{
		"BOOT-INF/classes/App.class": "classbytes",
	})
	b := append(append([]byte{}, script...), plain...)

	a, err := Open(bytes.NewReader(b), int64(len(b)))
	require.NoError(t, err)

	assert.Equal(t, int64(len(script)), a.EOCD.StartOfArchive())
	assert.True(t, a.Layered())

	content, err := a.ReadEntry("BOOT-INF/classes/App.class")
	require.NoError(t, err)
	assert.Equal(t, "classbytes", string(content))
}

func TestOpen_NotAZip(t *testing.T) {
	b := []byte("definitely not a zip file, but long enough to scan")

	_, err := Open(bytes.NewReader(b), int64(len(b)))
	assert.Error(t, err)
}
