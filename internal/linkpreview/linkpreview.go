// Package linkpreview fetches Open Graph metadata for a URL.
package linkpreview

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// Preview holds whatever metadata the page exposed. Any field may be empty.
type Preview struct {
	Title       string
	Description string
	URL         string
}

var urlPattern = regexp.MustCompile(`https?://[^\s]+`)

// FirstURL returns the first http(s) URL in text, or "".
func FirstURL(text string) string {
	return urlPattern.FindString(text)
}

type Fetcher struct {
	client *http.Client
}

func NewFetcher() *Fetcher {
	return &Fetcher{
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

// Fetch downloads the page and extracts og:title, og:description and og:url,
// falling back to the <title> element. Returns nil when the page yields no
// usable metadata.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*Preview, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; RubberDuckyBot/1.0)")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("link preview http %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "html") {
		return nil, fmt.Errorf("link preview unsupported content type %q", ct)
	}

	preview := Parse(resp.Body)
	if preview == nil {
		return nil, fmt.Errorf("no metadata found")
	}
	return preview, nil
}

// Parse extracts a Preview from an HTML document. Exported for tests.
func Parse(r io.Reader) *Preview {
	doc, err := html.Parse(r)
	if err != nil {
		return nil
	}

	var p Preview
	var titleText string

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "meta":
				var property, name, content string
				for _, a := range n.Attr {
					switch a.Key {
					case "property":
						property = a.Val
					case "name":
						name = a.Val
					case "content":
						content = a.Val
					}
				}
				key := property
				if key == "" {
					key = name
				}
				switch key {
				case "og:title":
					p.Title = content
				case "og:description", "description":
					if p.Description == "" {
						p.Description = content
					}
				case "og:url":
					p.URL = content
				}
			case "title":
				if n.FirstChild != nil && titleText == "" {
					titleText = strings.TrimSpace(n.FirstChild.Data)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if p.Title == "" {
		p.Title = titleText
	}
	if p.Title == "" && p.Description == "" && p.URL == "" {
		return nil
	}
	return &p
}
