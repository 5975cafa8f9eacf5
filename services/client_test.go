package services

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ornithemc/installer/api"
	"github.com/ornithemc/installer/util"
	"github.com/ornithemc/installer/util/jsontree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

// clientFixture wires every remote endpoint a client install touches to
// one test server.
func clientFixture(t *testing.T) *api.MinecraftVersion {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/versions/1.3.2.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"1.3.2","type":"release","assets":"pre-1.6",
			"mainClass":"net.minecraft.client.Minecraft",
			"minecraftArguments":"${auth_player_name} ${auth_session}",
			"downloads":{"client":{"sha1":"abc","size":10,"url":"https://example.com/client.jar"}},
			"libraries":[{"name":"org.lwjgl.lwjgl:lwjgl:2.9.0"}]}`))
	})
	mux.HandleFunc("/v3/versions/gen2/fabric-loader/1.3.2/0.16.3/profile/json", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"fabric-loader-0.16.3-1.3.2","inheritsFrom":"1.3.2",
			"mainClass":"net.fabricmc.loader.impl.launch.knot.KnotClient",
			"libraries":[{"name":"net.fabricmc:intermediary:1.3.2","url":"https://maven.fabricmc.net/"}]}`))
	})
	mux.HandleFunc("/v3/versions/gen2/libraries/1.3.2", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})
	mux.HandleFunc("/api/file/flap", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("flap jar"))
	})
	server := newJSONServer(t, mux)

	oldMeta, oldRelease := api.META_URL, api.MAVEN_LATEST_RELEASE_API_URL
	api.META_URL = server.URL
	api.MAVEN_LATEST_RELEASE_API_URL = server.URL + "/api/file/"
	t.Cleanup(func() { api.META_URL, api.MAVEN_LATEST_RELEASE_API_URL = oldMeta, oldRelease })

	return &api.MinecraftVersion{ID: "1.3.2", Type: "release", Details: server.URL + "/versions/1.3.2.json"}
}

func clientSelection() (*api.IntermediaryVersion, *api.LoaderVersion) {
	return &api.IntermediaryVersion{Version: "1.3.2", Maven: "net.ornithemc:calamus-intermediary:1.3.2"},
		&api.LoaderVersion{Version: "0.16.3"}
}

const profilesFixture = `{"profiles":{"Vanilla Latest":{"name":"Vanilla Latest","type":"latest-release","lastVersionId":"latest-release"}},"settings":{"keepLauncherOpen":true}}`

func TestInstallClient(t *testing.T) {
	version := clientFixture(t)
	intermediary, loaderVersion := clientSelection()

	gameDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(gameDir, "launcher_profiles.json"), []byte(profilesFixture), 0644))

	err := InstallClient(context.Background(), NopReporter, version, intermediary, api.LoaderFabric, loaderVersion, 2, gameDir, true)
	require.NoError(t, err)

	vanilla, err := os.ReadFile(filepath.Join(gameDir, "versions", "1.3.2-vanilla", "1.3.2-vanilla.json"))
	require.NoError(t, err)
	assert.Equal(t, "1.3.2-vanilla", gjson.GetBytes(vanilla, "id").String())

	profileDir := filepath.Join(gameDir, "versions", "fabric-loader-0.16.3-1.3.2")
	profile, err := os.ReadFile(filepath.Join(profileDir, "fabric-loader-0.16.3-1.3.2.json"))
	require.NoError(t, err)

	// The profile keeps its own leaves and is backfilled from vanilla.
	assert.Equal(t, "fabric-loader-0.16.3-1.3.2", gjson.GetBytes(profile, "id").String())
	assert.Equal(t, "net.fabricmc.loader.impl.launch.knot.KnotClient", gjson.GetBytes(profile, "mainClass").String())
	assert.Equal(t, "pre-1.6", gjson.GetBytes(profile, "assets").String())
	assert.Equal(t, "net.ornithemc:calamus-intermediary:1.3.2", gjson.GetBytes(profile, "libraries.0.name").String())

	// The agent argument points at the flap jar next to the profile.
	flapJar := filepath.Join(profileDir, "flap.jar")
	assert.FileExists(t, flapJar)
	assert.Equal(t, "-javaagent:"+flapJar, gjson.GetBytes(profile, "arguments.jvm.0").String())

	registry, err := os.ReadFile(filepath.Join(gameDir, "launcher_profiles.json"))
	require.NoError(t, err)
	entry := gjson.GetBytes(registry, `profiles.Ornithe Gen2 Fabric 1\.3\.2`)
	require.True(t, entry.Exists())
	assert.Equal(t, "fabric-loader-0.16.3-1.3.2", entry.Get("lastVersionId").String())
	assert.Equal(t, "custom", entry.Get("type").String())
	assert.True(t, strings.HasPrefix(entry.Get("icon").String(), "data:image/png;base64,"))
	// Unrelated registry content is untouched.
	assert.Equal(t, "latest-release", gjson.GetBytes(registry, "profiles.Vanilla Latest.lastVersionId").String())
	assert.True(t, gjson.GetBytes(registry, "settings.keepLauncherOpen").Bool())
}

func TestInstallClientTwiceOnlyRefreshesVersionID(t *testing.T) {
	version := clientFixture(t)
	intermediary, loaderVersion := clientSelection()

	gameDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(gameDir, "launcher_profiles.json"), []byte(profilesFixture), 0644))

	require.NoError(t, InstallClient(context.Background(), NopReporter, version, intermediary, api.LoaderFabric, loaderVersion, 2, gameDir, true))
	first, err := os.ReadFile(filepath.Join(gameDir, "launcher_profiles.json"))
	require.NoError(t, err)

	require.NoError(t, InstallClient(context.Background(), NopReporter, version, intermediary, api.LoaderFabric, loaderVersion, 2, gameDir, true))
	second, err := os.ReadFile(filepath.Join(gameDir, "launcher_profiles.json"))
	require.NoError(t, err)

	created := `profiles.Ornithe Gen2 Fabric 1\.3\.2.created`
	assert.Equal(t, gjson.GetBytes(first, created).String(), gjson.GetBytes(second, created).String())
}

func TestInstallClientRejectsMissingDirectory(t *testing.T) {
	version := clientFixture(t)
	intermediary, loaderVersion := clientSelection()

	err := InstallClient(context.Background(), NopReporter, version, intermediary, api.LoaderFabric, loaderVersion, 2, filepath.Join(t.TempDir(), "missing"), false)
	require.Error(t, err)
	assert.True(t, util.IsKind(err, util.ValidationError))
	assert.Contains(t, err.Error(), "started the game at least once")
}

func TestInstallClientWithoutProfileRegistration(t *testing.T) {
	version := clientFixture(t)
	intermediary, loaderVersion := clientSelection()

	// No launcher_profiles.json: only fine when registration is skipped.
	gameDir := t.TempDir()
	err := InstallClient(context.Background(), NopReporter, version, intermediary, api.LoaderFabric, loaderVersion, 2, gameDir, false)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(gameDir, "versions", "fabric-loader-0.16.3-1.3.2", "fabric-loader-0.16.3-1.3.2.json"))
}

func TestUpdateLauncherProfilesRequiresObject(t *testing.T) {
	gameDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(gameDir, "launcher_profiles.json"), []byte(`{"profiles":[]}`), 0644))

	version := &api.MinecraftVersion{ID: "1.3.2"}
	err := UpdateLauncherProfiles(gameDir, "fabric-loader-0.16.3-1.3.2", version, api.LoaderFabric, 2)
	require.Error(t, err)
	assert.True(t, util.IsKind(err, util.PersistedStateError))
	assert.Contains(t, err.Error(), `"profiles" field must be an object`)
}

func TestLauncherProfilesPathPrefersMicrosoftStore(t *testing.T) {
	gameDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(gameDir, "launcher_profiles.json"), []byte(`{}`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(gameDir, "launcher_profiles_microsoft_store.json"), []byte(`{}`), 0644))

	path, err := launcherProfilesPath(gameDir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(gameDir, "launcher_profiles_microsoft_store.json"), path)

	_, err = launcherProfilesPath(t.TempDir())
	require.Error(t, err)
	assert.True(t, util.IsKind(err, util.PersistedStateError))
}

func TestInjectAgentArgumentCreatesContainers(t *testing.T) {
	profile, err := jsontree.Parse([]byte(`{"id":"x"}`))
	require.NoError(t, err)
	injectAgentArgument(profile, "flap.jar")

	raw := profile.Marshal()
	assert.Equal(t, "-javaagent:flap.jar", gjson.GetBytes(raw, "arguments.jvm.0").String())
}

func TestProfileDisplayName(t *testing.T) {
	assert.Equal(t, "Ornithe Gen2 Fabric 1.3.2", ProfileDisplayName(2, api.LoaderFabric, "1.3.2"))
	assert.Equal(t, "Ornithe Gen1 Quilt b1.7.3", ProfileDisplayName(1, api.LoaderQuilt, "b1.7.3"))
}
