package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/ornithemc/installer/api"
	"github.com/ornithemc/installer/res"
	"github.com/ornithemc/installer/util"
	"github.com/ornithemc/installer/util/jsontree"
	"github.com/tidwall/gjson"
	"golang.org/x/mod/semver"
)

// InstallMMCPack generates a MultiMC/Prism instance for the requested
// version, either as a loose instance directory or a single instance
// zip.
func InstallMMCPack(ctx context.Context, reporter ProgressReporter, version *api.MinecraftVersion, intermediary *api.IntermediaryVersion, loaderType api.LoaderType, loaderVersion *api.LoaderVersion, outputDir string, copyProfilePath bool, generateZip bool, generation int) error {
	reporter.Publish(0.1, fmt.Sprintf("Installing instance for %s using %s Loader %s to %s",
		version.ID, loaderType.LocalizedName(), loaderVersion.Version, outputDir))

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return util.WrapError(util.ValidationError, err, "failed to create %s", outputDir)
	}
	outputDir, err := filepath.Abs(outputDir)
	if err != nil {
		return util.WrapError(util.ValidationError, err, "invalid output directory")
	}

	reporter.Publish(0.2, "Fetching version information")

	suffix := ":" + intermediary.Version
	if !strings.HasSuffix(intermediary.Maven, suffix) {
		return util.Errorf(util.ResolutionError, "failed to retrieve intermediary maven coordinates")
	}
	intermediaryMaven := strings.TrimSuffix(intermediary.Maven, suffix)

	lwjglURL, lwjglVersion, err := version.FindLwjgl(ctx)
	if err != nil {
		return err
	}
	lwjglMajor := strings.TrimPrefix(semver.Major("v"+lwjglVersion), "v")
	if lwjglMajor == "" && lwjglVersion != "" {
		// Nightly lwjgl builds are not valid semver.
		lwjglMajor = string(lwjglVersion[0])
	}
	lwjglUID := "org.lwjgl"
	if lwjglMajor == "3" {
		lwjglUID = "org.lwjgl3"
	}

	gen, err := resolveGeneration(ctx, generation)
	if err != nil {
		return err
	}

	reporter.Publish(0.4, "Transforming templates")

	packJSON, err := jsontree.Parse([]byte(transformPackTemplate(version, loaderType, loaderVersion, intermediary, lwjglVersion, lwjglMajor, lwjglUID)))
	if err != nil {
		return util.WrapError(util.ValidationError, err, "malformed pack template")
	}

	intermediaryPatch := strings.NewReplacer(
		"${mc_version}", version.ID,
		"${intermediary_ver}", intermediary.Version,
		"${intermediary_maven}", intermediaryMaven,
	).Replace(res.IntermediaryPatch)

	_, composedJSON, err := api.FetchLaunchJSON(ctx, util.SideClient, intermediary, loaderType, loaderVersion, generation)
	if err != nil {
		return err
	}
	minecraftPatch, err := buildMinecraftPatch(ctx, version, lwjglVersion, lwjglUID, composedJSON)
	if err != nil {
		return err
	}

	profileName := ProfileDisplayName(gen, loaderType, version.ID)
	outputFile := filepath.Join(outputDir, profileName+".zip")
	if !generateZip {
		outputFile = filepath.Join(outputDir, profileName)
		if _, err := os.Stat(outputFile); err == nil {
			return util.Errorf(util.ValidationError, "instance %s already exists", outputFile)
		}
		if err := os.MkdirAll(outputFile, 0755); err != nil {
			return util.WrapError(util.ValidationError, err, "failed to create %s", outputFile)
		}
	}

	reporter.Publish(0.5, "Fetching library information")

	flapVersion, err := api.GetLatestMavenVersion(ctx, FlapArtifact)
	if err != nil {
		return err
	}
	extraLibs, err := api.FetchLibraryUpgrades(ctx, generation, version.ID)
	if err != nil {
		return err
	}
	reporter.Publish(0.6, fmt.Sprintf("Found %d library upgrades", len(extraLibs)))

	var sink ArtifactWriter
	var zipSink *ZipWriter
	if generateZip {
		reporter.Publish(0.65, "Generating instance zip")
		if err := os.RemoveAll(outputFile); err != nil {
			return util.WrapError(util.ValidationError, err, "failed to replace %s", outputFile)
		}
		file, err := os.Create(outputFile)
		if err != nil {
			return util.WrapError(util.ArchiveError, err, "failed to create %s", outputFile)
		}
		defer file.Close()
		zipSink = NewZipWriter(file)
		sink = zipSink
	} else {
		reporter.Publish(0.65, "Generating output files")
		sink = &DirWriter{Root: outputFile}
	}

	instanceCfg := strings.ReplaceAll(res.InstanceConfig, "${profile_name}", profileName)
	if runtime.GOOS != "windows" && runtime.GOOS != "darwin" {
		// Driver threading workaround for old lwjgl on linux.
		instanceCfg += "\nOverrideCommands=true\nWrapperCommand=env __GL_THREADED_OPTIMIZATIONS=0"
	}
	if err := sink.WriteFile("instance.cfg", []byte(instanceCfg)); err != nil {
		return err
	}
	if err := sink.WriteFile("ornithe.png", res.IconBytes); err != nil {
		return err
	}
	if err := sink.CreateDir("patches"); err != nil {
		return err
	}
	if err := sink.WriteFile("patches/net.fabricmc.intermediary.json", []byte(intermediaryPatch)); err != nil {
		return err
	}
	if err := sink.WriteFile("patches/net.minecraft.json", minecraftPatch); err != nil {
		return err
	}

	components, _ := packJSON.Get("components")

	reporter.Publish(0.75, "Adding library components")
	for _, library := range extraLibs {
		uid, libName, libVersion, err := splitComponentCoordinate(library.Name)
		if err != nil {
			return err
		}
		patch := fmt.Sprintf(`{"formatVersion": 1, "libraries": [{"name": "%s","url": "%s"}], "name": "%s", "type": "release", "uid": "%s", "version": "%s"}`,
			library.Name, library.URL, libName, uid, libVersion)
		if err := sink.WriteFile("patches/"+uid+".json", []byte(patch)); err != nil {
			return err
		}
		components.Append(componentEntry(libName, libVersion, uid))
	}

	if !strings.HasPrefix(lwjglURL, api.MojangLibrariesURL) {
		patch := jsontree.NewObject()
		patch.Set("formatVersion", jsontree.NewNumber(json.Number("1")))
		patch.Set("name", jsontree.NewString("LWJGL "+lwjglMajor))
		patch.Set("type", jsontree.NewString("release"))
		patch.Set("uid", jsontree.NewString(lwjglUID))
		patch.Set("version", jsontree.NewString(lwjglVersion))
		if err := sink.WriteFile("patches/"+lwjglUID+".json", patch.Marshal()); err != nil {
			return err
		}
	}

	flapPatch := jsontree.NewObject()
	flapPatch.Set("formatVersion", jsontree.NewNumber(json.Number("1")))
	flapPatch.Set("name", jsontree.NewString("Flap"))
	flapPatch.Set("type", jsontree.NewString("release"))
	flapPatch.Set("uid", jsontree.NewString("net.ornithemc.flap"))
	flapPatch.Set("version", jsontree.NewString(flapVersion.Version))
	agents := jsontree.NewArray()
	agent := jsontree.NewObject()
	agent.Set("name", jsontree.NewString("net.ornithemc:flap:"+flapVersion.Version))
	agent.Set("url", jsontree.NewString(api.MAVEN_URL))
	agents.Append(agent)
	flapPatch.Set("+agents", agents)
	if err := sink.WriteFile("patches/net.ornithemc.flap.json", flapPatch.Marshal()); err != nil {
		return err
	}
	components.Append(componentEntry("Flap", flapVersion.Version, "net.ornithemc.flap"))

	if err := sink.WriteFile("mmc-pack.json", packJSON.MarshalIndent()); err != nil {
		return err
	}
	if zipSink != nil {
		if err := zipSink.Close(); err != nil {
			return err
		}
	}

	if copyProfilePath {
		if err := clipboard.WriteAll(outputFile); err != nil {
			// Best effort; headless environments have no clipboard.
			reporter.Publish(0.95, "Failed to copy the instance path to the clipboard")
		}
	}

	reporter.Publish(1.0, "Done")
	return nil
}

func componentEntry(name string, version string, uid string) *jsontree.Value {
	entry := jsontree.NewObject()
	entry.Set("cachedName", jsontree.NewString(name))
	entry.Set("cachedVersion", jsontree.NewString(version))
	entry.Set("uid", jsontree.NewString(uid))
	return entry
}

// splitComponentCoordinate derives a component uid, display name and
// version from a maven coordinate: "a.b:c:v" yields ("a.b.c", "c", "v").
func splitComponentCoordinate(coordinate string) (string, string, string, error) {
	first := strings.Index(coordinate, ":")
	last := strings.LastIndex(coordinate, ":")
	if first < 0 || first == last {
		return "", "", "", util.Errorf(util.ValidationError, "malformed library coordinate %q", coordinate)
	}
	uid := strings.ReplaceAll(coordinate[:last], ":", ".")
	name := coordinate[first+1 : last]
	version := coordinate[last+1:]
	return uid, name, version, nil
}

func transformPackTemplate(version *api.MinecraftVersion, loaderType api.LoaderType, loaderVersion *api.LoaderVersion, intermediary *api.IntermediaryVersion, lwjglVersion string, lwjglMajor string, lwjglUID string) string {
	return strings.NewReplacer(
		"${mc_version}", version.ID,
		"${intermediary_ver}", intermediary.Version,
		"${loader_version}", loaderVersion.Version,
		"${loader_name}", loaderType.LocalizedName()+" Loader",
		"${loader_uid}", loaderType.MavenUID(),
		"${lwjgl_version}", lwjglVersion,
		"${lwjgl_major_ver}", lwjglMajor,
		"${lwjgl_uid}", lwjglUID,
	).Replace(res.MMCPack)
}

// buildMinecraftPatch derives the net.minecraft component patch from the
// vanilla launch descriptor.
func buildMinecraftPatch(ctx context.Context, version *api.MinecraftVersion, lwjglVersion string, lwjglUID string, composedJSON *jsontree.Value) ([]byte, error) {
	_, vanillaJSON, err := version.FetchLaunchJSON(ctx)
	if err != nil {
		return nil, err
	}
	raw := vanillaJSON.Marshal()

	clientDownload := gjson.GetBytes(raw, "downloads.client")
	if !clientDownload.Exists() {
		return nil, util.WrapError(util.MetadataError, util.ErrFieldMissing, "version %s has no client download", version.ID)
	}
	artifact, err := jsontree.Parse([]byte(clientDownload.Raw))
	if err != nil {
		return nil, util.WrapError(util.MetadataError, err, "malformed client download for %s", version.ID)
	}
	mainJar := jsontree.NewObject()
	downloads := jsontree.NewObject()
	downloads.Set("artifact", artifact)
	mainJar.Set("downloads", downloads)
	mainJar.Set("name", jsontree.NewString("com.mojang:minecraft:"+version.ID+":client"))

	// The launcher supplies its own asm; drop the vanilla copy.
	libraries := jsontree.NewArray()
	if vanillaLibraries, ok := vanillaJSON.Get("libraries"); ok && vanillaLibraries.IsArray() {
		elements, _ := vanillaLibraries.Array()
		for _, library := range elements {
			name := ""
			if nameValue, ok := library.Get("name"); ok {
				name = nameValue.StringOr("")
			}
			if strings.Contains(name, "org.ow2.asm") {
				continue
			}
			libraries.Append(library.Clone())
		}
	}

	var traits []string
	mainClass := gjson.GetBytes(raw, "mainClass").String()
	if strings.Contains(mainClass, "launchwrapper") {
		traits = append(traits, "texturepacks")
	}

	minecraftArguments := gjson.GetBytes(raw, "minecraftArguments").String()
	if gameArguments := gjson.GetBytes(raw, "arguments.game").Array(); len(gameArguments) > 0 {
		var combined []string
		for _, arg := range gameArguments {
			if arg.Type == gjson.String {
				combined = append(combined, arg.String())
			}
		}
		minecraftArguments = strings.Join(combined, " ")
		traits = append(traits, "FirstThreadOnMacOs")
	}

	patch := jsontree.NewObject()
	if assetIndex, ok := vanillaJSON.Get("assetIndex"); ok {
		patch.Set("assetIndex", assetIndex.Clone())
	}
	majors := jsontree.NewArray()
	for _, major := range []string{"25", "21", "17", "8"} {
		majors.Append(jsontree.NewNumber(json.Number(major)))
	}
	patch.Set("compatibleJavaMajors", majors)
	patch.Set("compatibleJavaName", jsontree.NewString("java-runtime-epsilon"))
	patch.Set("formatVersion", jsontree.NewNumber(json.Number("1")))
	patch.Set("libraries", libraries)
	patch.Set("mainClass", jsontree.NewString(mainClass))
	patch.Set("mainJar", mainJar)
	patch.Set("minecraftArguments", jsontree.NewString(minecraftArguments))
	patch.Set("name", jsontree.NewString("Minecraft"))
	if releaseTime, ok := vanillaJSON.Get("releaseTime"); ok {
		patch.Set("releaseTime", releaseTime.Clone())
	}
	requires := jsontree.NewArray()
	lwjglRequire := jsontree.NewObject()
	lwjglRequire.Set("suggests", jsontree.NewString(lwjglVersion))
	lwjglRequire.Set("uid", jsontree.NewString(lwjglUID))
	requires.Append(lwjglRequire)
	patch.Set("requires", requires)
	if versionType, ok := vanillaJSON.Get("type"); ok {
		patch.Set("type", versionType.Clone())
	}
	patch.Set("uid", jsontree.NewString("net.minecraft"))
	patch.Set("version", jsontree.NewString(version.ID))

	if len(traits) > 0 {
		traitList := jsontree.NewArray()
		for _, trait := range traits {
			traitList.Append(jsontree.NewString(trait))
		}
		patch.Set("+traits", traitList)
	}
	if jvmArguments, ok := composedJSON.Get("arguments"); ok {
		if jvm, ok := jvmArguments.Get("jvm"); ok && jvm.IsArray() {
			patch.Set("+jvmArgs", jvm.Clone())
		}
	}

	return patch.MarshalIndent(), nil
}
