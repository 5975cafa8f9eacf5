package api

import (
	"context"

	"github.com/ornithemc/installer/util"
)

var MAVEN_URL = "https://maven.ornithemc.net/releases/"
var MAVEN_LATEST_VERSION_API_URL = "https://maven.ornithemc.net/api/maven/latest/version/releases/net/ornithemc/"
var MAVEN_LATEST_RELEASE_API_URL = "https://maven.ornithemc.net/api/maven/latest/file/releases/net/ornithemc/"

type MavenVersion struct {
	IsSnapshot bool   `json:"isSnapshot"`
	Version    string `json:"version"`
}

// GetLatestMavenVersion resolves the newest published version of an
// Ornithe artifact.
func GetLatestMavenVersion(ctx context.Context, artifact string) (*MavenVersion, error) {
	var version MavenVersion
	resp, err := client.R().SetContext(ctx).SetResult(&version).Get(MAVEN_LATEST_VERSION_API_URL + artifact)
	if err != nil {
		return nil, util.WrapError(util.MetadataError, err, "failed to fetch latest version of %s", artifact)
	}
	if resp.IsError() {
		return nil, util.Errorf(util.MetadataError, "failed to fetch latest version of %s: %s", artifact, resp.Status())
	}
	return &version, nil
}

// DownloadLatestRelease downloads the newest release build of an Ornithe
// artifact to the given path.
func DownloadLatestRelease(ctx context.Context, artifact string, path string) error {
	return DownloadFile(ctx, MAVEN_LATEST_RELEASE_API_URL+artifact, path)
}
