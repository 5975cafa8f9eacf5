package services

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/ornithemc/installer/api"
	"github.com/ornithemc/installer/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func jarWithManifest(t *testing.T, manifest string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	entry, err := zw.Create("META-INF/MANIFEST.MF")
	require.NoError(t, err)
	_, err = entry.Write([]byte(manifest))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

type serverFixture struct {
	version      *api.MinecraftVersion
	intermediary *api.IntermediaryVersion
	loader       *api.LoaderVersion
	metaRequests *int64
}

func newServerFixture(t *testing.T) *serverFixture {
	t.Helper()
	loaderJar := jarWithManifest(t, "Manifest-Version: 1.0\r\nMain-Class: net.fabricmc.loader.impl.launch.server.FabricServerLauncher\r\n")
	var metaRequests int64

	mux := http.NewServeMux()
	mux.HandleFunc("/v3/versions/gen2/fabric-loader/1.3.2/0.16.3/server/json", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&metaRequests, 1)
		w.Write([]byte(`{"id":"fabric-loader-0.16.3-1.3.2",
			"mainClass":"net.minecraft.server.MinecraftServer",
			"arguments":{"jvm":["-Xss1M"]},
			"libraries":[{"name":"net.fabricmc:fabric-loader:0.16.3","url":"${maven}"}]}`))
	})
	mux.HandleFunc("/v3/versions/gen2/libraries/1.3.2", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})
	mux.HandleFunc("/maven/net/fabricmc/fabric-loader/0.16.3/fabric-loader-0.16.3.jar", func(w http.ResponseWriter, r *http.Request) {
		w.Write(loaderJar)
	})
	mux.HandleFunc("/api/version/flap", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"isSnapshot":false,"version":"0.4.1"}`))
	})
	mux.HandleFunc("/api/file/flap", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("flap"))
	})
	mux.HandleFunc("/versions/1.3.2.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"downloads":{"server":{"sha1":"abc","size":4,"url":"${base}/server.jar"}}}`))
	})
	mux.HandleFunc("/server.jar", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("mojang server"))
	})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		mux.ServeHTTP(&templateWriter{inner: w, host: "http://" + r.Host}, r)
	}))
	t.Cleanup(server.Close)
	pointMavenAt(t, server.URL)

	oldMeta := api.META_URL
	api.META_URL = server.URL
	t.Cleanup(func() { api.META_URL = oldMeta })

	return &serverFixture{
		version:      &api.MinecraftVersion{ID: "1.3.2", Type: "release", Details: server.URL + "/versions/1.3.2.json"},
		intermediary: &api.IntermediaryVersion{Version: "1.3.2", Maven: "net.ornithemc:calamus-intermediary:1.3.2"},
		loader:       &api.LoaderVersion{Version: "0.16.3"},
		metaRequests: &metaRequests,
	}
}

// templateWriter substitutes the test server's own address into served
// fixtures, so libraries and downloads point back at the fixture.
type templateWriter struct {
	inner http.ResponseWriter
	host  string
}

func (w *templateWriter) Header() http.Header { return w.inner.Header() }

func (w *templateWriter) WriteHeader(code int) { w.inner.WriteHeader(code) }

func (w *templateWriter) Write(data []byte) (int, error) {
	out := bytes.ReplaceAll(data, []byte("${maven}"), []byte(w.host+"/maven/"))
	out = bytes.ReplaceAll(out, []byte("${base}"), []byte(w.host))
	if _, err := w.inner.Write(out); err != nil {
		return 0, err
	}
	return len(data), nil
}

func TestInstallServer(t *testing.T) {
	fixture := newServerFixture(t)
	location := t.TempDir()

	// Stale loader state from a previous install must be cleared.
	require.NoError(t, os.MkdirAll(filepath.Join(location, ".fabric", "remappedJars"), 0755))

	err := InstallServer(context.Background(), NopReporter, fixture.version, fixture.intermediary, api.LoaderFabric, fixture.loader, 2, location, true)
	require.NoError(t, err)

	assert.NoDirExists(t, filepath.Join(location, ".fabric"))

	launchJar := filepath.Join(location, "fabric-server-launch.jar")
	require.FileExists(t, launchJar)

	installed, err := ReadJarManifestAttribute(launchJar, "Minecraft-Version")
	require.NoError(t, err)
	assert.Equal(t, "1.3.2", installed)

	assert.FileExists(t, filepath.Join(location, "libraries", "net", "fabricmc", "fabric-loader", "0.16.3", "fabric-loader-0.16.3.jar"))
	assert.FileExists(t, filepath.Join(location, "libraries", "net", "ornithemc", "flap", "flap-0.4.1.jar"))

	serverJar, err := os.ReadFile(filepath.Join(location, "server.jar"))
	require.NoError(t, err)
	assert.Equal(t, "mojang server", string(serverJar))

	// The launch arguments use the loader's real entry point, read from
	// its jar manifest, and the relative flap path.
	reader, err := zip.OpenReader(launchJar)
	require.NoError(t, err)
	defer reader.Close()
	args := readZipEntry(t, &reader.Reader, "ornithe-args.json")
	assert.Equal(t, "net.fabricmc.loader.impl.launch.server.FabricServerLauncher", gjson.Get(args, "main_class").String())
	assert.Equal(t, "libraries/net/ornithemc/flap/flap-0.4.1.jar", gjson.Get(args, "flap_jar").String())
	assert.Equal(t, "-Xss1M", gjson.Get(args, "jvm_args.0").String())
}

func TestInstallServerWithoutServerJar(t *testing.T) {
	fixture := newServerFixture(t)
	location := t.TempDir()

	err := InstallServer(context.Background(), NopReporter, fixture.version, fixture.intermediary, api.LoaderFabric, fixture.loader, 2, location, false)
	require.NoError(t, err)
	assert.NoFileExists(t, filepath.Join(location, "server.jar"))
}

func TestInstallServerQuiltRequiresLauncherMainClass(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v3/versions/quilt-loader/1.3.2/0.26.1/server/json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"quilt-loader-0.26.1-1.3.2","libraries":[]}`))
	})
	mux.HandleFunc("/v3/versions/libraries/1.3.2", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})
	server := newJSONServer(t, mux)

	oldMeta := api.META_URL
	api.META_URL = server.URL
	defer func() { api.META_URL = oldMeta }()

	version := &api.MinecraftVersion{ID: "1.3.2"}
	intermediary := &api.IntermediaryVersion{Version: "1.3.2"}
	loader := &api.LoaderVersion{Version: "0.26.1"}
	err := InstallServer(context.Background(), NopReporter, version, intermediary, api.LoaderQuilt, loader, 0, t.TempDir(), false)
	require.Error(t, err)
	assert.True(t, util.IsKind(err, util.MetadataError))
	assert.Contains(t, err.Error(), "could not find main class entry")
}

func TestInstallAndRunServerSkipsMatchingInstall(t *testing.T) {
	if _, err := exec.LookPath("true"); err != nil {
		t.Skip("no 'true' binary available")
	}

	fixture := newServerFixture(t)
	location := t.TempDir()

	installed, err := InstallAndRunServer(context.Background(), NopReporter, fixture.version, fixture.intermediary, api.LoaderFabric, fixture.loader, 2, location, "true", nil)
	require.NoError(t, err)
	assert.True(t, installed)
	requestsAfterInstall := atomic.LoadInt64(fixture.metaRequests)

	installed, err = InstallAndRunServer(context.Background(), NopReporter, fixture.version, fixture.intermediary, api.LoaderFabric, fixture.loader, 2, location, "true", nil)
	require.NoError(t, err)
	assert.False(t, installed)
	assert.Equal(t, requestsAfterInstall, atomic.LoadInt64(fixture.metaRequests))
}
