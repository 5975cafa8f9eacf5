package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/buger/jsonparser"
	"github.com/ornithemc/installer/api"
	"github.com/ornithemc/installer/res"
	"github.com/ornithemc/installer/util"
	"github.com/ornithemc/installer/util/jsontree"
	"golang.org/x/sync/errgroup"
)

// InstallClient installs a client profile for the official launcher:
// a vanilla descriptor under versions/<id>-vanilla and a composed loader
// profile with the flap agent injected, optionally registered in the
// launcher profile registry.
func InstallClient(ctx context.Context, reporter ProgressReporter, version *api.MinecraftVersion, intermediary *api.IntermediaryVersion, loaderType api.LoaderType, loaderVersion *api.LoaderVersion, generation int, location string, createProfile bool) error {
	if _, err := os.Stat(location); err != nil {
		return util.Errorf(util.ValidationError,
			"the directory %s does not exist. Make sure you selected the correct folder and that you have started the game at least once before", location)
	}
	reporter.Publish(0.05, fmt.Sprintf("Installing Minecraft client at %s", location))

	gen, err := resolveGeneration(ctx, generation)
	if err != nil {
		return err
	}

	reporter.Publish(0.1, "Fetching launch jsons..")

	var vanillaName string
	var vanillaJSON *jsontree.Value
	var profileName string
	var composedJSON *jsontree.Value

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		var err error
		vanillaName, vanillaJSON, err = version.FetchLaunchJSON(groupCtx)
		return err
	})
	group.Go(func() error {
		var err error
		profileName, composedJSON, err = api.FetchLaunchJSON(groupCtx, util.SideClient, intermediary, loaderType, loaderVersion, generation)
		return err
	})
	if err := group.Wait(); err != nil {
		return err
	}

	// Backfill the loader profile with the vanilla detail tree. The
	// profile stays authoritative for every leaf it already carries.
	composedJSON = jsontree.Merge(composedJSON, vanillaJSON)

	reporter.Publish(0.4, "Setting up destination..")

	versionsDir := filepath.Join(location, "versions")
	vanillaProfileDir := filepath.Join(versionsDir, vanillaName)
	profileDir := filepath.Join(versionsDir, profileName)
	flapJar := filepath.Join(profileDir, "flap.jar")

	for _, dir := range []string{vanillaProfileDir, profileDir} {
		if err := os.RemoveAll(dir); err != nil {
			return util.WrapError(util.ValidationError, err, "failed to clear %s", dir)
		}
	}

	reporter.Publish(0.5, "Downloading flap..")
	if err := api.DownloadLatestRelease(ctx, FlapArtifact, flapJar); err != nil {
		return err
	}

	injectAgentArgument(composedJSON, flapJar)

	reporter.Publish(0.8, "Creating files..")

	if err := os.MkdirAll(vanillaProfileDir, 0755); err != nil {
		return util.WrapError(util.ValidationError, err, "failed to create %s", vanillaProfileDir)
	}
	if err := os.MkdirAll(profileDir, 0755); err != nil {
		return util.WrapError(util.ValidationError, err, "failed to create %s", profileDir)
	}
	if err := os.WriteFile(filepath.Join(vanillaProfileDir, vanillaName+".json"), vanillaJSON.Marshal(), 0644); err != nil {
		return util.WrapError(util.ValidationError, err, "failed to write vanilla profile")
	}
	if err := os.WriteFile(filepath.Join(profileDir, profileName+".json"), composedJSON.Marshal(), 0644); err != nil {
		return util.WrapError(util.ValidationError, err, "failed to write profile")
	}

	if createProfile {
		if err := UpdateLauncherProfiles(location, profileName, version, loaderType, gen); err != nil {
			return err
		}
	}

	reporter.Publish(1.0, fmt.Sprintf("Installed Ornithe for Minecraft %s using %s Loader %s", version.ID, loaderType.LocalizedName(), loaderVersion.Version))
	return nil
}

// injectAgentArgument prepends -javaagent:<flap> to arguments.jvm,
// creating the argument containers when the profile lacks them.
func injectAgentArgument(profile *jsontree.Value, flapJar string) {
	if !profile.IsObject() {
		return
	}
	arguments, ok := profile.Get("arguments")
	if !ok || !arguments.IsObject() {
		arguments = jsontree.NewObject()
		profile.Set("arguments", arguments)
	}
	jvm, ok := arguments.Get("jvm")
	if !ok || !jvm.IsArray() {
		jvm = jsontree.NewArray()
		arguments.Set("jvm", jvm)
	}
	jvm.Prepend(jsontree.NewString("-javaagent:" + flapJar))
}

// launcherProfilesPath locates the launcher's profile registry, favoring
// the Microsoft Store variant when both exist.
func launcherProfilesPath(gameDir string) (string, error) {
	for _, name := range []string{"launcher_profiles_microsoft_store.json", "launcher_profiles.json"} {
		path := filepath.Join(gameDir, name)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", util.Errorf(util.PersistedStateError, "could not find a launcher profiles json in %s", gameDir)
}

// UpdateLauncherProfiles inserts or refreshes one entry in the launcher
// profile registry. Untouched entries in the document are preserved as
// they are.
func UpdateLauncherProfiles(gameDir string, versionID string, version *api.MinecraftVersion, loaderType api.LoaderType, generation int) error {
	path, err := launcherProfilesPath(gameDir)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return util.WrapError(util.PersistedStateError, err, "failed to read %s", path)
	}
	_, profilesType, _, err := jsonparser.Get(data, "profiles")
	if err != nil || profilesType != jsonparser.Object {
		return util.Errorf(util.PersistedStateError, "\"profiles\" field must be an object")
	}

	displayName := ProfileDisplayName(generation, loaderType, version.ID)
	quoted, _ := json.Marshal(versionID)

	if _, existingType, _, err := jsonparser.Get(data, "profiles", displayName); err == nil {
		if existingType != jsonparser.Object {
			return util.Errorf(util.PersistedStateError, "cannot update profile of name %s because it is not an object", displayName)
		}
		data, err = jsonparser.Set(data, quoted, "profiles", displayName, "lastVersionId")
		if err != nil {
			return util.WrapError(util.PersistedStateError, err, "failed to update profile %s", displayName)
		}
	} else {
		now := time.Now().UTC().Format(time.RFC3339)
		entry, err := json.Marshal(util.Profile{
			Name:          displayName,
			Type:          "custom",
			Created:       now,
			LastUsed:      now,
			Icon:          IconDataURL(),
			LastVersionId: versionID,
		})
		if err != nil {
			return util.WrapError(util.PersistedStateError, err, "failed to encode profile %s", displayName)
		}
		data, err = jsonparser.Set(data, entry, "profiles", displayName)
		if err != nil {
			return util.WrapError(util.PersistedStateError, err, "failed to insert profile %s", displayName)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return util.WrapError(util.PersistedStateError, err, "failed to write %s", path)
	}
	return nil
}

// ProfileDisplayName is the deterministic registry key for an installed
// profile.
func ProfileDisplayName(generation int, loaderType api.LoaderType, versionID string) string {
	return fmt.Sprintf("Ornithe Gen%d %s %s", generation, loaderType.LocalizedName(), versionID)
}

// IconDataURL renders the embedded icon as an unpadded base64 data url.
func IconDataURL() string {
	return "data:image/png;base64," + base64.StdEncoding.WithPadding(base64.NoPadding).EncodeToString(res.IconBytes)
}
