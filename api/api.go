package api

import (
	"context"
	"os"
	"path/filepath"

	"github.com/go-resty/resty/v2"
	"github.com/ornithemc/installer/util"
)

const Version = "1.0.0"
const UserAgent = "ornithe-installer/" + Version

var client = resty.New().SetHeader("User-Agent", UserAgent)

// DownloadFile fetches url and writes the body to path, creating parent
// directories and replacing any existing file.
func DownloadFile(ctx context.Context, url string, path string) error {
	resp, err := client.R().SetContext(ctx).Get(url)
	if err != nil {
		return util.WrapError(util.DownloadError, err, "failed to download %s", url)
	}
	if resp.IsError() {
		return util.Errorf(util.DownloadError, "failed to download %s: %s", url, resp.Status())
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return util.WrapError(util.DownloadError, err, "failed to create %s", dir)
		}
	}
	if err := os.WriteFile(path, resp.Body(), 0644); err != nil {
		return util.WrapError(util.DownloadError, err, "failed to write %s", path)
	}
	return nil
}
