// Package fetcher finds candidate image URLs for batch ingestion.
package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"picturehub/internal/apperr"
)

const DefaultBingEndpoint = "https://cn.bing.com/images/async"

type BingFetcher struct {
	log      *zap.Logger
	client   *http.Client
	endpoint string
}

func NewBingFetcher(log *zap.Logger, client *http.Client, endpoint string) *BingFetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if endpoint == "" {
		endpoint = DefaultBingEndpoint
	}
	return &BingFetcher{log: log, client: client, endpoint: endpoint}
}

// Search returns the original image URLs of the result page for text,
// without query strings, in page order.
func (f *BingFetcher) Search(ctx context.Context, text string) ([]string, error) {
	fetchURL := fmt.Sprintf("%s?q=%s&mmasync=1", f.endpoint, url.QueryEscape(text))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fetchURL, nil)
	if err != nil {
		return nil, apperr.Internal(err, "failed to build search request")
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; picturehub)")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, apperr.Upstream(err, "failed to fetch search page")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperr.Upstream(nil, "search page returned status %d", resp.StatusCode)
	}

	doc, err := html.Parse(resp.Body)
	if err != nil {
		return nil, apperr.Upstream(err, "failed to parse search page")
	}

	container := findByClass(doc, "dgControl")
	if container == nil {
		return nil, apperr.Upstream(nil, "search page has no result container")
	}

	var urls []string
	walk(container, func(n *html.Node) {
		if !hasClass(n, "iusc") {
			return
		}
		murl, err := originalURL(attr(n, "m"))
		if err != nil {
			f.log.Debug("skipping result with unreadable metadata", zap.Error(err))
			return
		}
		if murl == "" {
			return
		}
		urls = append(urls, murl)
	})
	return urls, nil
}

func originalURL(meta string) (string, error) {
	var m struct {
		MURL string `json:"murl"`
	}
	if err := json.Unmarshal([]byte(meta), &m); err != nil {
		return "", err
	}
	murl := strings.TrimSpace(m.MURL)
	if i := strings.Index(murl, "?"); i > -1 {
		murl = murl[:i]
	}
	return murl, nil
}

func walk(n *html.Node, fn func(*html.Node)) {
	if n.Type == html.ElementNode {
		fn(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

func findByClass(n *html.Node, class string) *html.Node {
	if n.Type == html.ElementNode && hasClass(n, class) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findByClass(c, class); found != nil {
			return found
		}
	}
	return nil
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
