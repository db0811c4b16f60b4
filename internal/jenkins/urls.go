package jenkins

import (
	"fmt"
	"net/url"
	"strings"
)

// JobAPIURL composes the metadata endpoint for a job. Nested job names
// (segments separated by "/") map to repeated "/job/<segment>" path elements,
// each percent-encoded individually:
//
//	"folder/sub/nightly build" -> {base}/job/folder/job/sub/job/nightly%20build/api/json
func JobAPIURL(base, jobName string) string {
	return jobURL(base, jobName) + "/api/json"
}

// JobConfigURL composes the config.xml endpoint for a job.
func JobConfigURL(base, jobName string) string {
	return jobURL(base, jobName) + "/config.xml"
}

// RootAPIURL composes the root metadata endpoint for a base URL.
func RootAPIURL(base string) string {
	return strings.TrimRight(base, "/") + "/api/json"
}

// JobPageURL composes the human-facing job page, for use in alert bodies.
func JobPageURL(base, jobName string) string {
	return jobURL(base, jobName)
}

func jobURL(base, jobName string) string {
	var b strings.Builder
	b.WriteString(strings.TrimRight(base, "/"))
	for _, part := range strings.Split(jobName, "/") {
		b.WriteString("/job/")
		b.WriteString(url.PathEscape(part))
	}
	return b.String()
}

// BuildAPIURL derives the metadata endpoint for a build from the raw build
// reference the upstream returned.
//
// The upstream is known to hand back internal or alternate addresses in
// lastBuild.url (an IP where the configured base is a hostname, say). The
// reconciliation policy is deliberate: when scheme+host match the configured
// base the reference is used as-is; otherwise the returned host is discarded
// and the returned path is rejoined onto the configured base. Unparseable
// references get one pass of space percent-encoding and a reparse before
// giving up with ErrMalformedBuildURL.
func BuildAPIURL(raw, configuredBase string) (string, error) {
	// Trailing slash so a relative "api/json" join appends instead of replacing.
	if !strings.HasSuffix(raw, "/") {
		raw += "/"
	}

	u, err := url.Parse(raw)
	if err != nil {
		safe := strings.ReplaceAll(raw, " ", "%20")
		u, err = url.Parse(safe)
		if err != nil {
			return "", fmt.Errorf("%w: %q", ErrMalformedBuildURL, raw)
		}
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrMalformedBuildURL, raw)
	}

	cfg, err := url.Parse(configuredBase)
	if err != nil {
		return "", fmt.Errorf("invalid configured base URL %q: %w", configuredBase, err)
	}

	if u.Scheme == cfg.Scheme && u.Host == cfg.Host {
		return u.JoinPath("api", "json").String(), nil
	}

	// Host mismatch: keep the build path, use the configured host.
	return cfg.JoinPath(strings.TrimRight(u.EscapedPath(), "/"), "api", "json").String(), nil
}
