package services

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ornithemc/installer/api"
	"github.com/ornithemc/installer/res"
	"github.com/ornithemc/installer/util"
)

const manifestEntry = "META-INF/MANIFEST.MF"

// manifestLineLimit is the maximum physical line length of a jar
// manifest. Longer logical lines continue on the next physical line
// behind a single space.
const manifestLineLimit = 72

// WrapManifestLine wraps one logical manifest line into the jar
// continuation format. After 72 characters a "\r\n " break is inserted;
// the continuation space counts as the first character of the next
// physical line.
func WrapManifestLine(line string) string {
	var out strings.Builder
	count := 0
	for _, char := range line {
		out.WriteRune(char)
		count++
		if count == manifestLineLimit {
			out.WriteString("\r\n ")
			count = 1
		}
	}
	return out.String()
}

// ReadJarManifestAttribute returns the trimmed value of a main attribute
// in a jar's manifest.
func ReadJarManifestAttribute(jarPath string, attribute string) (string, error) {
	prefix := attribute + ": "
	reader, err := zip.OpenReader(jarPath)
	if err != nil {
		return "", util.WrapError(util.ArchiveError, err, "failed to open jar %s", jarPath)
	}
	defer reader.Close()

	for _, entry := range reader.File {
		if entry.Name != manifestEntry {
			continue
		}
		f, err := entry.Open()
		if err != nil {
			return "", util.WrapError(util.ArchiveError, err, "failed to read manifest of %s", jarPath)
		}
		content, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return "", util.WrapError(util.ArchiveError, err, "failed to read manifest of %s", jarPath)
		}
		for _, line := range strings.Split(string(content), "\n") {
			if strings.HasPrefix(line, prefix) {
				return strings.TrimSpace(strings.TrimPrefix(line, prefix)), nil
			}
		}
		break
	}
	return "", util.WrapError(util.ArchiveError, util.ErrAttributeNotFound, "couldn't find '%s' attribute in manifest of %s", attribute, jarPath)
}

// launchArgs is the argument document embedded into the launcher jar and
// read back by the launcher at runtime.
type launchArgs struct {
	FlapJar   string   `json:"flap_jar"`
	MainClass string   `json:"main_class"`
	JvmArgs   []string `json:"jvm_args"`
}

// CreateLaunchJar builds <loader>-server-launch.jar at installDir from
// the embedded launcher template: every template entry except the
// manifest is raw-copied unchanged, then a rewritten manifest with the
// computed Class-Path and the target Minecraft-Version is appended,
// followed by the embedded launch arguments.
func CreateLaunchJar(version *api.MinecraftVersion, installDir string, loaderType api.LoaderType, mainClass string, launchMainClass string, libraryFiles []string, jvmArgs []string, flapJarPath string) error {
	jarOut := filepath.Join(installDir, string(loaderType)+"-server-launch.jar")
	if _, err := os.Stat(jarOut); err == nil {
		if err := os.Remove(jarOut); err != nil {
			return util.WrapError(util.ArchiveError, err, "failed to replace %s", jarOut)
		}
	}

	template, err := zip.NewReader(bytes.NewReader(res.ServerLauncherJar), int64(len(res.ServerLauncherJar)))
	if err != nil {
		return util.WrapError(util.ArchiveError, err, "failed to open launcher template")
	}

	out, err := os.Create(jarOut)
	if err != nil {
		return util.WrapError(util.ArchiveError, err, "failed to create %s", jarOut)
	}
	defer out.Close()
	zw := zip.NewWriter(out)

	var templateManifest string
	for _, entry := range template.File {
		if entry.Name == manifestEntry {
			f, err := entry.Open()
			if err != nil {
				return util.WrapError(util.ArchiveError, err, "failed to read template manifest")
			}
			content, err := io.ReadAll(f)
			f.Close()
			if err != nil {
				return util.WrapError(util.ArchiveError, err, "failed to read template manifest")
			}
			templateManifest = string(content)
			continue
		}
		raw, err := entry.OpenRaw()
		if err != nil {
			return util.WrapError(util.ArchiveError, err, "failed to copy template entry %s", entry.Name)
		}
		header := entry.FileHeader
		w, err := zw.CreateRaw(&header)
		if err != nil {
			return util.WrapError(util.ArchiveError, err, "failed to copy template entry %s", entry.Name)
		}
		if _, err := io.Copy(w, raw); err != nil {
			return util.WrapError(util.ArchiveError, err, "failed to copy template entry %s", entry.Name)
		}
	}

	classPath := "Class-Path:"
	for _, library := range libraryFiles {
		relative, err := filepath.Rel(installDir, library)
		if err != nil {
			relative = library
		}
		classPath += " " + filepath.ToSlash(relative)
	}

	var manifest bytes.Buffer
	// Collapse the trailing blank section line so the generated
	// attributes land in the main section.
	preamble := strings.ReplaceAll(templateManifest, "\n\r\n", "\n")
	for _, line := range strings.Split(strings.TrimRight(preamble, "\r\n"), "\n") {
		manifest.WriteString(WrapManifestLine(strings.TrimRight(line, "\r")))
		manifest.WriteString("\r\n")
	}
	manifest.WriteString(WrapManifestLine(classPath))
	manifest.WriteString("\r\n")
	manifest.WriteString(WrapManifestLine("Minecraft-Version: " + version.ID))
	manifest.WriteString("\r\n")

	mf, err := zw.Create(manifestEntry)
	if err != nil {
		return util.WrapError(util.ArchiveError, err, "failed to write manifest")
	}
	if _, err := mf.Write(manifest.Bytes()); err != nil {
		return util.WrapError(util.ArchiveError, err, "failed to write manifest")
	}

	if jvmArgs == nil {
		jvmArgs = []string{}
	}
	args, err := json.Marshal(launchArgs{
		FlapJar:   filepath.ToSlash(flapJarPath),
		MainClass: launchMainClass,
		JvmArgs:   jvmArgs,
	})
	if err != nil {
		return util.WrapError(util.ArchiveError, err, "failed to encode launch arguments")
	}
	argsEntry, err := zw.Create("ornithe-args.json")
	if err != nil {
		return util.WrapError(util.ArchiveError, err, "failed to write launch arguments")
	}
	if _, err := argsEntry.Write(args); err != nil {
		return util.WrapError(util.ArchiveError, err, "failed to write launch arguments")
	}

	if loaderType == api.LoaderFabric {
		properties, err := zw.Create("fabric-server-launch.properties")
		if err != nil {
			return util.WrapError(util.ArchiveError, err, "failed to write launch properties")
		}
		if _, err := properties.Write([]byte("launch.mainClass=" + mainClass + "\n")); err != nil {
			return util.WrapError(util.ArchiveError, err, "failed to write launch properties")
		}
	}

	if err := zw.Close(); err != nil {
		return util.WrapError(util.ArchiveError, err, "failed to finish %s", jarOut)
	}
	return nil
}
