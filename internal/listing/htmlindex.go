package listing

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/jdkdb-crawler/internal/crawler"
)

// HTMLIndex lists the links of a vendor download page.
type HTMLIndex struct {
	fetcher crawler.Fetcher
}

// NewHTMLIndex builds an HTMLIndex on top of fetcher.
func NewHTMLIndex(fetcher crawler.Fetcher) *HTMLIndex {
	return &HTMLIndex{fetcher: fetcher}
}

// Links fetches pageURL and returns every href resolved to an absolute URL,
// deduplicated in document order.
func (h *HTMLIndex) Links(ctx context.Context, pageURL string) ([]Asset, error) {
	resp, err := h.fetcher.Fetch(ctx, crawler.FetchRequest{URL: pageURL})
	if err != nil {
		return nil, fmt.Errorf("fetch index %s: %w", pageURL, err)
	}
	if !resp.OK() {
		return nil, crawler.NewStatusError(resp)
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse index url: %w", err)
	}
	hrefs, err := ExtractHrefs(resp.Body)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(hrefs))
	out := make([]Asset, 0, len(hrefs))
	for _, href := range hrefs {
		ref, err := url.Parse(href)
		if err != nil {
			continue
		}
		abs := base.ResolveReference(ref).String()
		if _, ok := seen[abs]; ok {
			continue
		}
		seen[abs] = struct{}{}
		name := FilenameFromURL(abs)
		if name == "" {
			continue
		}
		out = append(out, Asset{Name: name, URL: abs})
	}
	return out, nil
}

// ExtractHrefs returns the href attribute of every element that has one.
func ExtractHrefs(body []byte) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	var out []string
	doc.Find("[href]").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		href = strings.TrimSpace(href)
		if !ok || href == "" || strings.HasPrefix(href, "#") {
			return
		}
		out = append(out, href)
	})
	return out, nil
}
