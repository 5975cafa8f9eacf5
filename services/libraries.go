package services

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ornithemc/installer/api"
	"github.com/ornithemc/installer/util"
	"golang.org/x/sync/errgroup"
)

// FlapArtifact is the runtime agent injected into every installation. It
// is not part of the server-provided library set and is always fetched
// from the latest-release endpoint.
const FlapArtifact = "flap"

const fabricLoaderPrefix = "net.fabricmc:fabric-loader:"

// LibraryPath maps a maven coordinate to its repository-relative path:
// "g.h:a:v" becomes "g/h/a/v/a-v.jar".
func LibraryPath(coordinate string) (string, error) {
	parts := strings.SplitN(coordinate, ":", 3)
	if len(parts) != 3 {
		return "", util.Errorf(util.ValidationError, "malformed library coordinate %q", coordinate)
	}
	group := strings.ReplaceAll(parts[0], ".", "/")
	name := parts[1]
	version := parts[2]
	return group + "/" + name + "/" + version + "/" + name + "-" + version + ".jar", nil
}

// FetchResult describes a completed library resolution.
type FetchResult struct {
	// Files holds the downloaded jar paths in completion order.
	Files []string
	// FlapPath is where the runtime agent landed.
	FlapPath string
	// FabricLoaderPath points at the downloaded fabric-loader jar when
	// the library set contained one, so its manifest can be inspected
	// later. Empty otherwise.
	FabricLoaderPath string
}

// FetchLibraries downloads every library into librariesDir concurrently,
// plus the flap runtime agent. Progress advances linearly from
// lowFraction to highFraction in completion order. The first failure
// aborts the whole resolution.
func FetchLibraries(ctx context.Context, libraries []api.Library, librariesDir string, reporter ProgressReporter, lowFraction, highFraction float64) (*FetchResult, error) {
	result := &FetchResult{}

	type task struct {
		name     string
		download func(context.Context) (string, error)
	}
	tasks := make([]task, 0, len(libraries)+1)

	for _, library := range libraries {
		library := library
		relative, err := LibraryPath(library.Name)
		if err != nil {
			return nil, err
		}
		file := filepath.Join(librariesDir, filepath.FromSlash(relative))
		if strings.HasPrefix(library.Name, fabricLoaderPrefix) {
			result.FabricLoaderPath = file
		}
		url := strings.TrimSuffix(library.URL, "/") + "/" + relative
		tasks = append(tasks, task{name: library.Name, download: func(ctx context.Context) (string, error) {
			if err := api.DownloadFile(ctx, url, file); err != nil {
				return "", err
			}
			return file, nil
		}})
	}

	flapVersion, err := api.GetLatestMavenVersion(ctx, FlapArtifact)
	if err != nil {
		return nil, err
	}
	result.FlapPath = filepath.Join(librariesDir, "net", "ornithemc", "flap", fmt.Sprintf("flap-%s.jar", flapVersion.Version))
	tasks = append(tasks, task{name: FlapArtifact, download: func(ctx context.Context) (string, error) {
		if err := api.DownloadLatestRelease(ctx, FlapArtifact, result.FlapPath); err != nil {
			return "", err
		}
		return result.FlapPath, nil
	}})

	total := len(tasks)
	var mu sync.Mutex
	group, ctx := errgroup.WithContext(ctx)
	for _, t := range tasks {
		t := t
		group.Go(func() error {
			file, err := t.download(ctx)
			if err != nil {
				return util.WrapError(util.DownloadError, err, "failed to download library %s", t.name)
			}
			mu.Lock()
			result.Files = append(result.Files, file)
			count := len(result.Files)
			mu.Unlock()
			fraction := lowFraction + (highFraction-lowFraction)*float64(count)/float64(total)
			reporter.Publish(fraction, fmt.Sprintf("Downloaded %s, %d/%d", filepath.Base(file), count, total))
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}
