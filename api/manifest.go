package api

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ornithemc/installer/util"
	"github.com/ornithemc/installer/util/jsontree"
	"github.com/tidwall/gjson"
)

var LAUNCHER_META_URL = "https://ornithemc.net/mc-versions/version_manifest.json"
var LAUNCHER_META_URL_VERSIONED = "https://ornithemc.net/mc-versions/%s/version_manifest.json"

// MojangLibrariesURL is the canonical repository vanilla libraries are
// served from. Versions whose lwjgl comes from anywhere else need an
// lwjgl override in generated instance packages.
const MojangLibrariesURL = "https://libraries.minecraft.net"

type VersionManifest struct {
	Latest   LatestVersions     `json:"latest"`
	Versions []MinecraftVersion `json:"versions"`
}

type LatestVersions struct {
	OldAlpha      string `json:"old_alpha"`
	ClassicServer string `json:"classic_server"`
	AlphaServer   string `json:"alpha_server"`
	OldBeta       string `json:"old_beta"`
	Snapshot      string `json:"snapshot"`
	Release       string `json:"release"`
	Pending       string `json:"pending"`
}

// MinecraftVersion is one row of the version manifest. Details points to
// the richer per-version document with downloads and mapping info.
// The "time" field is omitted: it is not present for 1.2.4, 1.2.3, 1.2.2
// and 1.2.1.
type MinecraftVersion struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	URL         string    `json:"url"`
	ReleaseTime time.Time `json:"releaseTime"`
	Details     string    `json:"details"`
}

func (v *MinecraftVersion) IsRelease() bool {
	return v.Type == "release"
}

func (v *MinecraftVersion) IsSnapshot() bool {
	return v.Type == "snapshot"
}

func (v *MinecraftVersion) IsHistorical() bool {
	return !v.IsRelease() && !v.IsSnapshot() && v.Type != "pending"
}

type VersionDetails struct {
	Libraries         json.RawMessage  `json:"libraries"`
	SharedMappings    bool             `json:"sharedMappings"`
	NormalizedVersion string           `json:"normalizedVersion"`
	Downloads         VersionDownloads `json:"downloads"`
}

type VersionDownloads struct {
	Client *VersionDownload `json:"client"`
	Server *VersionDownload `json:"server"`
}

type VersionDownload struct {
	Sha1 string `json:"sha1"`
	Size int64  `json:"size"`
	URL  string `json:"url"`
}

// FetchVersions lists the game versions known to the version manifest
// service, optionally scoped to an intermediary generation.
func FetchVersions(ctx context.Context, generation int) (*VersionManifest, error) {
	url := LAUNCHER_META_URL
	if generation > 0 {
		url = fmt.Sprintf(LAUNCHER_META_URL_VERSIONED, fmt.Sprintf("gen%d", generation))
	}
	var manifest VersionManifest
	resp, err := client.R().SetContext(ctx).SetResult(&manifest).Get(url)
	if err != nil {
		return nil, util.WrapError(util.MetadataError, err, "failed to fetch version manifest")
	}
	if resp.IsError() {
		return nil, util.Errorf(util.MetadataError, "failed to fetch version manifest: %s", resp.Status())
	}
	return &manifest, nil
}

// FetchDetails retrieves the per-version detail document.
func (v *MinecraftVersion) FetchDetails(ctx context.Context) (*VersionDetails, error) {
	var details VersionDetails
	resp, err := client.R().SetContext(ctx).SetResult(&details).Get(v.Details)
	if err != nil {
		return nil, util.WrapError(util.MetadataError, err, "failed to fetch details for %s", v.ID)
	}
	if resp.IsError() {
		return nil, util.Errorf(util.MetadataError, "failed to fetch details for %s: %s", v.ID, resp.Status())
	}
	return &details, nil
}

// MappingKey resolves the key this version's intermediary mappings are
// published under. Versions with shared mappings use the bare id, the
// rest are keyed per side.
func (v *MinecraftVersion) MappingKey(ctx context.Context, side util.GameSide) (string, error) {
	details, err := v.FetchDetails(ctx)
	if err != nil {
		return "", err
	}
	if details.SharedMappings {
		return v.ID, nil
	}
	return v.ID + "-" + string(side), nil
}

// JarDownloadURL resolves the signed download for one side of this
// version.
func (v *MinecraftVersion) JarDownloadURL(ctx context.Context, side util.GameSide) (*VersionDownload, error) {
	details, err := v.FetchDetails(ctx)
	if err != nil {
		return nil, err
	}
	download := details.Downloads.Client
	if side == util.SideServer {
		download = details.Downloads.Server
	}
	if download == nil {
		return nil, util.Errorf(util.MetadataError, "version %s does not have a download for side %s", v.ID, side)
	}
	return download, nil
}

// FetchLaunchJSON fetches the raw version detail document and renames its
// id with the -vanilla suffix, producing the vanilla launch descriptor.
func (v *MinecraftVersion) FetchLaunchJSON(ctx context.Context) (string, *jsontree.Value, error) {
	resp, err := client.R().SetContext(ctx).Get(v.Details)
	if err != nil {
		return "", nil, util.WrapError(util.MetadataError, err, "failed to fetch launch json for %s", v.ID)
	}
	if resp.IsError() {
		return "", nil, util.Errorf(util.MetadataError, "failed to fetch launch json for %s: %s", v.ID, resp.Status())
	}
	tree, err := jsontree.Parse(resp.Body())
	if err != nil {
		return "", nil, util.WrapError(util.MetadataError, err, "malformed launch json for %s", v.ID)
	}
	if !tree.IsObject() {
		return "", nil, util.Errorf(util.MetadataError, "launch json for %s is not an object", v.ID)
	}
	versionID := v.ID + "-vanilla"
	tree.Set("id", jsontree.NewString(versionID))
	return versionID, tree, nil
}

// FindLwjgl scans the version's library list for the lwjgl artifact and
// returns its repository url and version. Library entries are either bare
// coordinate strings (served from the Mojang repository) or objects
// carrying their own url.
func (v *MinecraftVersion) FindLwjgl(ctx context.Context) (string, string, error) {
	details, err := v.FetchDetails(ctx)
	if err != nil {
		return "", "", err
	}
	for _, library := range gjson.ParseBytes(details.Libraries).Array() {
		name := library.String()
		url := MojangLibrariesURL
		if library.IsObject() {
			name = library.Get("name").String()
			if u := library.Get("url").String(); u != "" {
				url = u
			}
		}
		parts := strings.Split(name, ":")
		if len(parts) >= 3 && parts[1] == "lwjgl" {
			return url, parts[2], nil
		}
	}
	return "", "", util.WrapError(util.MetadataError, util.ErrFieldMissing, "unable to find lwjgl version for Minecraft %s", v.ID)
}
