package source

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/siherrmann/excerpter/core/pipeline"
	"github.com/siherrmann/excerpter/helper"
	"golang.org/x/net/html"
)

// DefaultSelectors are the elements whose text makes up a page, excerpt boxes first
var DefaultSelectors = []string{"div.excerpt", "p"}

// Page is the normalized text of a web page
type Page struct {
	URL   string `json:"url"`
	Title string `json:"title"`
	Text  string `json:"text"`
}

// Web downloads pages and extracts their readable text
type Web struct {
	client    *http.Client
	selectors []selector
	logger    *slog.Logger
}

type selector struct {
	tag   string
	class string
}

// NewWeb creates a page fetcher. Selectors are element names, optionally with
// a class ("div.excerpt"), empty selectors use DefaultSelectors. The page text
// holds the matches of each selector in selector order, each group in document order.
func NewWeb(selectors []string, timeout time.Duration, logger *slog.Logger) *Web {
	if len(selectors) == 0 {
		selectors = DefaultSelectors
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Web{
		client:    &http.Client{Timeout: timeout},
		selectors: parseSelectors(selectors),
		logger:    logger,
	}
}

// Fetch downloads url and returns the normalized text of the matching elements
func (w *Web) Fetch(ctx context.Context, url string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, helper.NewError("create request", err)
	}
	req.Header.Set("Accept", "text/html")

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, helper.NewError("fetch page", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, helper.NewError("fetch page", fmt.Errorf("%s returned status %d", url, resp.StatusCode))
	}

	page, err := w.Parse(resp.Body)
	if err != nil {
		return nil, err
	}
	page.URL = url

	w.logger.Info("Fetched web page", slog.String("url", url), slog.String("title", page.Title), slog.Int("length", len(page.Text)))

	return page, nil
}

// Parse extracts the title and the normalized text of the matching elements
func (w *Web) Parse(r io.Reader) (*Page, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, helper.NewError("parse html", err)
	}

	page := &Page{Title: strings.TrimSpace(textContent(findFirst(root, selector{tag: "title"})))}

	var parts []string
	for _, s := range w.selectors {
		for _, n := range findAll(root, s) {
			parts = append(parts, textContent(n))
		}
	}

	page.Text = pipeline.Normalize(strings.Join(parts, "\n"))
	return page, nil
}

func (s selector) matches(n *html.Node) bool {
	return n.Type == html.ElementNode && n.Data == s.tag && (s.class == "" || hasClass(n, s.class))
}

// findAll returns every element matching s in document order, nested matches included
func findAll(root *html.Node, s selector) []*html.Node {
	var found []*html.Node
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if s.matches(n) {
			found = append(found, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return found
}

func findFirst(root *html.Node, s selector) *html.Node {
	if found := findAll(root, s); len(found) > 0 {
		return found[0]
	}
	return nil
}

func parseSelectors(values []string) []selector {
	selectors := make([]selector, 0, len(values))
	for _, value := range values {
		tag, class, _ := strings.Cut(strings.TrimSpace(value), ".")
		if tag == "" {
			continue
		}
		selectors = append(selectors, selector{tag: strings.ToLower(tag), class: class})
	}
	return selectors
}

func hasClass(n *html.Node, class string) bool {
	for _, attr := range n.Attr {
		if attr.Key != "class" {
			continue
		}
		for _, c := range strings.Fields(attr.Val) {
			if c == class {
				return true
			}
		}
	}
	return false
}

func textContent(n *html.Node) string {
	if n == nil {
		return ""
	}
	var b strings.Builder
	var collect func(n *html.Node)
	collect = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			return
		}
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(n)
	return b.String()
}
