package listing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/JakeFAU/jdkdb-crawler/internal/crawler"
)

const (
	defaultGitHubAPI = "https://api.github.com"
	defaultPerPage   = 100
	defaultMaxPages  = 100
)

// GitHubConfig controls the release API client.
type GitHubConfig struct {
	BaseURL  string
	Token    string
	PerPage  int
	MaxPages int
}

// GitHub lists releases through the GitHub REST API.
type GitHub struct {
	fetcher crawler.Fetcher
	cfg     GitHubConfig
}

// NewGitHub builds a GitHub release lister on top of fetcher.
func NewGitHub(fetcher crawler.Fetcher, cfg GitHubConfig) *GitHub {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultGitHubAPI
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.PerPage <= 0 {
		cfg.PerPage = defaultPerPage
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = defaultMaxPages
	}
	return &GitHub{fetcher: fetcher, cfg: cfg}
}

type githubRelease struct {
	TagName     string        `json:"tag_name"`
	Name        string        `json:"name"`
	Draft       bool          `json:"draft"`
	Prerelease  bool          `json:"prerelease"`
	PublishedAt time.Time     `json:"published_at"`
	Body        string        `json:"body"`
	Assets      []githubAsset `json:"assets"`
}

type githubAsset struct {
	Name               string `json:"name"`
	BrowserDownloadURL string `json:"browser_download_url"`
	Size               int64  `json:"size"`
}

// Releases returns every non-draft release of org/repo, following the
// Link rel="next" header across pages.
func (g *GitHub) Releases(ctx context.Context, org, repo string) ([]Release, error) {
	next := fmt.Sprintf("%s/repos/%s/%s/releases?per_page=%s",
		g.cfg.BaseURL, url.PathEscape(org), url.PathEscape(repo), strconv.Itoa(g.cfg.PerPage))

	var out []Release
	for page := 0; next != "" && page < g.cfg.MaxPages; page++ {
		resp, err := g.fetcher.Fetch(ctx, crawler.FetchRequest{URL: next, Headers: g.headers()})
		if err != nil {
			return nil, fmt.Errorf("list releases %s/%s: %w", org, repo, err)
		}
		if !resp.OK() {
			return nil, crawler.NewStatusError(resp)
		}
		var batch []githubRelease
		if err := json.Unmarshal(resp.Body, &batch); err != nil {
			return nil, fmt.Errorf("decode releases %s/%s: %w", org, repo, err)
		}
		for _, rel := range batch {
			if rel.Draft {
				continue
			}
			out = append(out, rel.toRelease())
		}
		next = NextLink(resp.Headers.Get("Link"))
	}
	return out, nil
}

func (g *GitHub) headers() http.Header {
	h := http.Header{}
	h.Set("Accept", "application/vnd.github+json")
	h.Set("X-GitHub-Api-Version", "2022-11-28")
	if g.cfg.Token != "" {
		h.Set("Authorization", "Bearer "+g.cfg.Token)
	}
	return h
}

func (r githubRelease) toRelease() Release {
	rel := Release{
		Tag:         r.TagName,
		Name:        r.Name,
		Prerelease:  r.Prerelease,
		PublishedAt: r.PublishedAt,
		Body:        r.Body,
		Assets:      make([]Asset, 0, len(r.Assets)),
	}
	for _, a := range r.Assets {
		rel.Assets = append(rel.Assets, Asset{Name: a.Name, URL: a.BrowserDownloadURL, Size: a.Size})
	}
	return rel
}

var linkNext = regexp.MustCompile(`<([^>]+)>\s*;\s*rel="?next"?`)

// NextLink extracts the rel="next" target of an RFC 8288 Link header.
func NextLink(header string) string {
	for _, part := range strings.Split(header, ",") {
		if m := linkNext.FindStringSubmatch(part); m != nil {
			return m[1]
		}
	}
	return ""
}

var bodyTableRow = regexp.MustCompile(
	`\|\s*(?:\*\*)?(?P<description>[^|]+?)(?:\*\*)?\s*\|\s*\[(?P<file>[^\]]+)\]\((?P<url>[^)]+)\)\s*\|\s*\[checksum\]\((?P<checksum>[^)]+)\)`)

// BodyAssets parses markdown table rows of the form
// "| description | [file](url) | [checksum](url) |" from a release body.
func BodyAssets(body string) []Asset {
	var out []Asset
	for _, m := range bodyTableRow.FindAllStringSubmatch(body, -1) {
		out = append(out, Asset{
			Name:        strings.TrimSpace(m[bodyTableRow.SubexpIndex("file")]),
			URL:         strings.TrimSpace(m[bodyTableRow.SubexpIndex("url")]),
			Description: strings.TrimSpace(m[bodyTableRow.SubexpIndex("description")]),
		})
	}
	return out
}
