package services

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/ornithemc/installer/api"
	"github.com/ornithemc/installer/util"
	"github.com/tidwall/gjson"
)

// fabricServerLauncher is the launcher stub older fabric loaders expose;
// the loader's real entry point is read from its jar manifest when the
// library set contains a fabric-loader artifact.
const fabricServerLauncher = "net.fabricmc.loader.launch.server.FabricServerLauncher"

// InstallServer performs a full server installation: launch descriptor,
// libraries, the manifest-patched launcher jar and optionally the
// vanilla server jar.
func InstallServer(ctx context.Context, reporter ProgressReporter, version *api.MinecraftVersion, intermediary *api.IntermediaryVersion, loaderType api.LoaderType, loaderVersion *api.LoaderVersion, generation int, location string, installServer bool) error {
	if err := installServerPath(ctx, reporter, version, intermediary, loaderType, loaderVersion, generation, location, installServer); err != nil {
		return err
	}
	reporter.Publish(1.0, fmt.Sprintf("Installed Ornithe Server for Minecraft %s using %s Loader %s to %s",
		version.ID, loaderType.LocalizedName(), loaderVersion.Version, location))
	return nil
}

func installServerPath(ctx context.Context, reporter ProgressReporter, version *api.MinecraftVersion, intermediary *api.IntermediaryVersion, loaderType api.LoaderType, loaderVersion *api.LoaderVersion, generation int, location string, installServer bool) error {
	if err := os.MkdirAll(location, 0755); err != nil {
		return util.WrapError(util.ValidationError, err, "failed to create %s", location)
	}
	location, err := filepath.Abs(location)
	if err != nil {
		return util.WrapError(util.ValidationError, err, "invalid install location")
	}

	reporter.Publish(0.1, fmt.Sprintf("Installing server for %s using %s Loader %s to %s",
		version.ID, loaderType.LocalizedName(), loaderVersion.Version, location))

	// Stale loader work directories from a previous install confuse the
	// loader on version changes.
	for _, stale := range []string{".fabric", ".quilt"} {
		if err := os.RemoveAll(filepath.Join(location, stale)); err != nil {
			return util.WrapError(util.ValidationError, err, "failed to clear %s", stale)
		}
	}

	_, launchJSON, err := api.FetchLaunchJSON(ctx, util.SideServer, intermediary, loaderType, loaderVersion, generation)
	if err != nil {
		return err
	}
	raw := launchJSON.Marshal()

	reporter.Publish(0.2, "Installing libraries")

	mainClass := ""
	var launchMainClass string
	switch loaderType {
	case api.LoaderFabric:
		mainClass = gjson.GetBytes(raw, "mainClass").String()
		if mainClass == "" {
			return util.WrapError(util.MetadataError, util.ErrFieldMissing, "could not find main class entry")
		}
		launchMainClass = fabricServerLauncher
	case api.LoaderQuilt:
		launchMainClass = gjson.GetBytes(raw, "launcherMainClass").String()
		if launchMainClass == "" {
			return util.WrapError(util.MetadataError, util.ErrFieldMissing, "could not find main class entry")
		}
	}

	var jvmArgs []string
	for _, arg := range gjson.GetBytes(raw, "arguments.jvm").Array() {
		if arg.Type == gjson.String {
			jvmArgs = append(jvmArgs, arg.String())
		}
	}

	libraryList := gjson.GetBytes(raw, "libraries")
	if !libraryList.IsArray() {
		return util.WrapError(util.MetadataError, util.ErrFieldMissing, "no libraries were specified")
	}
	var libraries []api.Library
	for _, library := range libraryList.Array() {
		name := library.Get("name").String()
		if name == "" {
			return util.WrapError(util.MetadataError, util.ErrFieldMissing, "library had no name")
		}
		url := library.Get("url").String()
		if url == "" {
			return util.WrapError(util.MetadataError, util.ErrFieldMissing, "library had no url")
		}
		libraries = append(libraries, api.Library{Name: name, URL: url})
	}

	libraryDir := filepath.Join(location, "libraries")
	result, err := FetchLibraries(ctx, libraries, libraryDir, reporter, 0.2, 0.7)
	if err != nil {
		return err
	}
	reporter.Publish(0.8, fmt.Sprintf("Downloaded %d libraries!", len(result.Files)))

	if result.FabricLoaderPath != "" {
		launchMainClass, err = ReadJarManifestAttribute(result.FabricLoaderPath, "Main-Class")
		if err != nil {
			return err
		}
	}

	flapRelative, err := filepath.Rel(location, result.FlapPath)
	if err != nil {
		flapRelative = result.FlapPath
	}
	if err := CreateLaunchJar(version, location, loaderType, mainClass, launchMainClass, result.Files, jvmArgs, flapRelative); err != nil {
		return err
	}

	if installServer {
		reporter.Publish(0.9, "Downloading server jar")
		download, err := version.JarDownloadURL(ctx, util.SideServer)
		if err != nil {
			return err
		}
		if err := api.DownloadFile(ctx, download.URL, filepath.Join(location, "server.jar")); err != nil {
			return err
		}
	}
	return nil
}

// InstallAndRunServer installs the server when needed and launches it.
// Installation is skipped when a launcher jar already targets the
// requested version. Returns whether an install was performed.
func InstallAndRunServer(ctx context.Context, reporter ProgressReporter, version *api.MinecraftVersion, intermediary *api.IntermediaryVersion, loaderType api.LoaderType, loaderVersion *api.LoaderVersion, generation int, location string, javaBinary string, extraArgs []string) (bool, error) {
	launchJar := filepath.Join(location, string(loaderType)+"-server-launch.jar")

	reporter.Publish(0.0, "Checking for present server installation...")
	needsInstall := false
	if _, err := os.Stat(launchJar); err != nil {
		needsInstall = true
	} else {
		installed, err := ReadJarManifestAttribute(launchJar, "Minecraft-Version")
		needsInstall = err != nil || installed != version.ID
	}

	if needsInstall {
		if err := installServerPath(ctx, reporter, version, intermediary, loaderType, loaderVersion, generation, location, true); err != nil {
			return false, err
		}
	}

	reporter.Publish(0.95, "Starting server...")

	if javaBinary == "" {
		javaBinary = "java"
	}
	jar, err := filepath.Abs(launchJar)
	if err != nil {
		jar = launchJar
	}

	args := append([]string{}, extraArgs...)
	args = append(args, "-jar", jar, "nogui")
	cmd := exec.Command(javaBinary, args...)
	cmd.Dir = location
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return needsInstall, util.WrapError(util.ValidationError, err, "failed to start server")
	}
	// Reap the child without stalling the caller.
	go func() {
		_ = cmd.Wait()
	}()

	return needsInstall, nil
}
