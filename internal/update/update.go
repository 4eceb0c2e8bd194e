// Package update asks GitHub whether a newer status-relay release
// exists. The check is strictly advisory and must never get in the
// way of the command that triggered it, so every failure path reports
// "no answer" instead of an error.
package update

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"golang.org/x/mod/semver"
)

const (
	// DefaultGitHubReleasesURL points at the latest-release endpoint
	// for this repository.
	DefaultGitHubReleasesURL = "https://api.github.com/repos/openclaw/status-relay/releases/latest"

	// CheckTimeout caps the whole release lookup.
	CheckTimeout = 5 * time.Second
)

// GitHubReleasesURL is the endpoint the check queries. Tests point it
// at a local server.
var GitHubReleasesURL = DefaultGitHubReleasesURL

// Release is the slice of the GitHub release payload the check reads.
type Release struct {
	TagName string `json:"tag_name"`
	HTMLURL string `json:"html_url"`
}

// CheckResult describes the latest published release relative to the
// running build.
type CheckResult struct {
	CurrentVersion  string
	LatestVersion   string
	UpdateURL       string
	UpdateAvailable bool
}

// CheckForUpdate compares currentVersion against the latest GitHub
// release. It returns nil for dev builds and for any lookup failure;
// callers treat nil as "nothing to report".
func CheckForUpdate(ctx context.Context, currentVersion string) *CheckResult {
	if currentVersion == "dev" || currentVersion == "" {
		return nil
	}

	release := fetchLatestRelease(ctx)
	if release == nil {
		return nil
	}

	result := &CheckResult{
		CurrentVersion: currentVersion,
		LatestVersion:  strings.TrimPrefix(release.TagName, "v"),
		UpdateURL:      release.HTMLURL,
	}

	current := normalizeVersion(currentVersion)
	latest := normalizeVersion(release.TagName)
	if semver.IsValid(current) && semver.IsValid(latest) {
		result.UpdateAvailable = semver.Compare(latest, current) > 0
	}
	return result
}

func fetchLatestRelease(ctx context.Context) *Release {
	ctx, cancel := context.WithTimeout(ctx, CheckTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, GitHubReleasesURL, nil)
	if err != nil {
		return nil
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil
	}

	var release Release
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return nil
	}
	return &release
}

// normalizeVersion adds the "v" prefix semver.Compare expects. Release
// tags usually carry it already; build versions usually do not.
func normalizeVersion(v string) string {
	if strings.HasPrefix(v, "v") {
		return v
	}
	return "v" + v
}
