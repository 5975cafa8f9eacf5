package api

import (
	"context"
	"fmt"
	"strings"

	"github.com/ornithemc/installer/util"
	"github.com/ornithemc/installer/util/jsontree"
)

var META_URL = "https://meta.ornithemc.net"

type LoaderType string

const (
	LoaderFabric LoaderType = "fabric"
	LoaderQuilt  LoaderType = "quilt"
)

var LoaderTypes = []LoaderType{LoaderFabric, LoaderQuilt}

func (t LoaderType) LocalizedName() string {
	switch t {
	case LoaderFabric:
		return "Fabric"
	case LoaderQuilt:
		return "Quilt"
	}
	return string(t)
}

func (t LoaderType) MavenUID() string {
	switch t {
	case LoaderFabric:
		return "net.fabricmc.fabric-loader"
	case LoaderQuilt:
		return "org.quiltmc.quilt-loader"
	}
	return string(t)
}

type LoaderVersion struct {
	Version   string `json:"version"`
	Stable    bool   `json:"stable"`
	Maven     string `json:"maven"`
	Separator string `json:"separator"`
	Build     int    `json:"build"`
}

// IsBeta is structural: loader pre-releases carry a hyphenated suffix.
func (l *LoaderVersion) IsBeta() bool {
	return strings.Contains(l.Version, "-")
}

func (l *LoaderVersion) IsStable() bool {
	return !l.IsBeta()
}

type IntermediaryVersion struct {
	Version string `json:"version"`
	Stable  bool   `json:"stable"`
	Maven   string `json:"maven"`
}

type Library struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

type IntermediaryGenerations struct {
	Latest int `json:"latestIntermediaryGeneration"`
	Stable int `json:"stableIntermediaryGeneration"`
}

func genPath(generation int) string {
	if generation > 0 {
		return fmt.Sprintf("/v3/versions/gen%d", generation)
	}
	return "/v3/versions"
}

// FetchLoaderVersions lists the published loader versions per loader
// family, newest first.
func FetchLoaderVersions(ctx context.Context, generation int) (map[LoaderType][]LoaderVersion, error) {
	out := make(map[LoaderType][]LoaderVersion, len(LoaderTypes))
	for _, loader := range LoaderTypes {
		var versions []LoaderVersion
		url := META_URL + genPath(generation) + "/" + string(loader) + "-loader"
		resp, err := client.R().SetContext(ctx).SetResult(&versions).Get(url)
		if err != nil {
			return nil, util.WrapError(util.MetadataError, err, "failed to fetch %s loader versions", loader)
		}
		if resp.IsError() {
			return nil, util.Errorf(util.MetadataError, "failed to fetch %s loader versions: %s", loader, resp.Status())
		}
		out[loader] = versions
	}
	return out, nil
}

// FetchIntermediaryVersions maps mapping keys (version ids, optionally
// side-suffixed) to their intermediary records.
func FetchIntermediaryVersions(ctx context.Context, generation int) (map[string]IntermediaryVersion, error) {
	var versions []IntermediaryVersion
	url := META_URL + genPath(generation) + "/intermediary"
	resp, err := client.R().SetContext(ctx).SetResult(&versions).Get(url)
	if err != nil {
		return nil, util.WrapError(util.MetadataError, err, "failed to fetch intermediary versions")
	}
	if resp.IsError() {
		return nil, util.Errorf(util.MetadataError, "failed to fetch intermediary versions: %s", resp.Status())
	}
	out := make(map[string]IntermediaryVersion, len(versions))
	for _, version := range versions {
		out[version.Version] = version
	}
	return out, nil
}

// FetchIntermediaryGenerations returns the latest and stable intermediary
// generation numbers.
func FetchIntermediaryGenerations(ctx context.Context) (*IntermediaryGenerations, error) {
	var generations IntermediaryGenerations
	resp, err := client.R().SetContext(ctx).SetResult(&generations).Get(META_URL + "/v3/versions/intermediary_generations")
	if err != nil {
		return nil, util.WrapError(util.MetadataError, err, "failed to fetch intermediary generations")
	}
	if resp.IsError() {
		return nil, util.Errorf(util.MetadataError, "failed to fetch intermediary generations: %s", resp.Status())
	}
	return &generations, nil
}

// FetchLibraryUpgrades lists the server-curated library replacements and
// additions for one mapping version.
func FetchLibraryUpgrades(ctx context.Context, generation int, version string) ([]Library, error) {
	var upgrades []Library
	url := META_URL + genPath(generation) + "/libraries/" + version
	resp, err := client.R().SetContext(ctx).SetResult(&upgrades).Get(url)
	if err != nil {
		return nil, util.WrapError(util.MetadataError, err, "failed to fetch library upgrades for %s", version)
	}
	if resp.IsError() {
		return nil, util.Errorf(util.MetadataError, "failed to fetch library upgrades for %s: %s", version, resp.Status())
	}
	return upgrades, nil
}

// FetchLaunchJSON fetches the composed launch descriptor for one
// side/intermediary/loader triple, rewrites its intermediary library
// coordinates to the calamus equivalents and appends the library
// upgrades. Returns the descriptor's id and the mutated tree.
func FetchLaunchJSON(ctx context.Context, side util.GameSide, intermediary *IntermediaryVersion, loaderType LoaderType, loaderVersion *LoaderVersion, generation int) (string, *jsontree.Value, error) {
	endpoint := "profile/json"
	if side == util.SideServer {
		endpoint = "server/json"
	}
	url := META_URL + genPath(generation) + "/" + string(loaderType) + "-loader/" +
		intermediary.Version + "/" + loaderVersion.Version + "/" + endpoint

	resp, err := client.R().SetContext(ctx).Get(url)
	if err != nil {
		return "", nil, util.WrapError(util.MetadataError, err, "failed to fetch launch json")
	}
	if resp.IsError() {
		return "", nil, util.Errorf(util.MetadataError, "failed to fetch launch json: %s", resp.Status())
	}
	tree, err := jsontree.Parse(resp.Body())
	if err != nil {
		return "", nil, util.WrapError(util.MetadataError, err, "malformed launch json")
	}
	id, _ := tree.Get("id")
	versionID, err := id.String()
	if err != nil {
		return "", nil, util.WrapError(util.MetadataError, util.ErrFieldMissing, "launch json does not contain an 'id' key")
	}

	upgrades, err := FetchLibraryUpgrades(ctx, generation, intermediary.Version)
	if err != nil {
		return "", nil, err
	}

	if libraries, ok := tree.Get("libraries"); ok && libraries.IsArray() {
		elements, _ := libraries.Array()
		for _, library := range elements {
			rewriteIntermediary(library)
		}
		for _, upgrade := range upgrades {
			entry := jsontree.NewObject()
			entry.Set("name", jsontree.NewString(upgrade.Name))
			entry.Set("url", jsontree.NewString(upgrade.URL))
			libraries.Append(entry)
		}
	}
	return versionID, tree, nil
}

// rewriteIntermediary redirects fabric and quilt intermediary coordinates
// to the calamus intermediary artifacts on the Ornithe maven.
func rewriteIntermediary(library *jsontree.Value) {
	if !library.IsObject() {
		return
	}
	nameValue, ok := library.Get("name")
	if !ok {
		return
	}
	name := nameValue.StringOr("")
	for _, prefix := range []string{"net.fabricmc:intermediary", "org.quiltmc:hashed"} {
		if strings.HasPrefix(name, prefix) {
			library.Set("name", jsontree.NewString(strings.Replace(name, prefix, "net.ornithemc:calamus-intermediary", 1)))
			library.Set("url", jsontree.NewString(strings.TrimSuffix(MAVEN_URL, "/")))
		}
	}
}
