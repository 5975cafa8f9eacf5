package services

import (
	"context"

	"github.com/ornithemc/installer/api"
	"github.com/ornithemc/installer/util"
	"golang.org/x/sync/errgroup"
)

// VersionInfo bundles the remote version data every command starts from.
type VersionInfo struct {
	// IntermediaryVersions is keyed by mapping key: the version id,
	// optionally suffixed with -client/-server for side-specific
	// mappings.
	IntermediaryVersions map[string]api.IntermediaryVersion
	// AvailableVersions lists manifest versions that have intermediary
	// mappings for at least one side, in manifest order.
	AvailableVersions []api.MinecraftVersion
	// Generation is the requested intermediary generation, 0 when
	// unspecified.
	Generation int
}

// GatherVersions fetches the version manifest and the intermediary list
// in parallel and intersects them.
func GatherVersions(ctx context.Context, generation int) (*VersionInfo, error) {
	var manifest *api.VersionManifest
	var intermediaries map[string]api.IntermediaryVersion

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		var err error
		manifest, err = api.FetchVersions(ctx, generation)
		return err
	})
	group.Go(func() error {
		var err error
		intermediaries, err = api.FetchIntermediaryVersions(ctx, generation)
		return err
	})
	if err := group.Wait(); err != nil {
		return nil, err
	}

	info := &VersionInfo{
		IntermediaryVersions: intermediaries,
		Generation:           generation,
	}
	for _, version := range manifest.Versions {
		_, shared := intermediaries[version.ID]
		_, client := intermediaries[version.ID+"-client"]
		_, server := intermediaries[version.ID+"-server"]
		if shared || client || server {
			info.AvailableVersions = append(info.AvailableVersions, version)
		}
	}
	return info, nil
}

// Resolve finds the manifest record and intermediary mapping for a
// version id on one side. Side-exclusive versions requested for the
// wrong side fail with a resolution error naming the supported side.
func (info *VersionInfo) Resolve(versionID string, side util.GameSide) (*api.MinecraftVersion, *api.IntermediaryVersion, error) {
	for i := range info.AvailableVersions {
		version := &info.AvailableVersions[i]
		if version.ID != versionID {
			continue
		}
		if intermediary, ok := info.IntermediaryVersions[version.ID]; ok {
			return version, &intermediary, nil
		}
		if intermediary, ok := info.IntermediaryVersions[version.ID+"-"+string(side)]; ok {
			return version, &intermediary, nil
		}
		if _, ok := info.IntermediaryVersions[version.ID+"-"+string(side.Other())]; ok {
			return nil, nil, util.Errorf(util.ResolutionError, "cannot install %s for the %s! This version is %s-only!", versionID, side, side.Other())
		}
	}
	return nil, nil, util.Errorf(util.ResolutionError, "could not find Minecraft version %s among supported versions", versionID)
}

// SelectLoaderVersion picks a loader version from a newest-first list.
// The selector "latest" takes the head of the list.
func SelectLoaderVersion(versions []api.LoaderVersion, selector string) (*api.LoaderVersion, error) {
	if selector == "latest" {
		if len(versions) == 0 {
			return nil, util.Errorf(util.ResolutionError, "failed to find a loader version")
		}
		return &versions[0], nil
	}
	for i := range versions {
		if versions[i].Version == selector {
			return &versions[i], nil
		}
	}
	return nil, util.Errorf(util.ResolutionError, "could not find loader version: %s", selector)
}

// resolveGeneration turns an unspecified generation into the current
// stable one.
func resolveGeneration(ctx context.Context, generation int) (int, error) {
	if generation > 0 {
		return generation, nil
	}
	generations, err := api.FetchIntermediaryGenerations(ctx)
	if err != nil {
		return 0, err
	}
	return generations.Stable, nil
}
