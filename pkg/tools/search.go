package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	agentflow "github.com/shahintaesheikh/agentflow"
	"golang.org/x/net/html"
)

const (
	maxSearchResults = 5
	noSearchResults  = "No good DuckDuckGo Search Result was found"
)

// SearchTool queries the DuckDuckGo HTML endpoint.
type SearchTool struct {
	caps Capabilities
}

func (s *SearchTool) Spec() agentflow.ToolSpec {
	return queryTool("search",
		"Search the web for information using DuckDuckGo. Use this to find current information, news, and general web content.",
		"The search query to find information about")
}

func (s *SearchTool) Invoke(ctx context.Context, req agentflow.ToolRequest) (agentflow.ToolResponse, error) {
	query := stringArg(req.Arguments, "query")
	if query == "" {
		return agentflow.ToolResponse{}, fmt.Errorf("missing 'query' argument")
	}
	out, err := cached(s.caps, "search", query, func() (string, error) {
		return s.lookup(ctx, query)
	})
	if err != nil {
		return agentflow.ToolResponse{}, err
	}
	return agentflow.ToolResponse{Content: out}, nil
}

func (s *SearchTool) lookup(ctx context.Context, query string) (string, error) {
	u, err := url.Parse(s.caps.SearchURL)
	if err != nil {
		return "", fmt.Errorf("search url: %w", err)
	}
	params := u.Query()
	params.Set("q", query)
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", userAgent)
	resp, err := s.caps.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("duckduckgo request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("duckduckgo returned %s", resp.Status)
	}

	results, err := parseSearchResults(io.LimitReader(resp.Body, 2<<20), maxSearchResults)
	if err != nil {
		return "", fmt.Errorf("parse duckduckgo results: %w", err)
	}
	if len(results) == 0 {
		return noSearchResults, nil
	}
	lines := make([]string, 0, len(results))
	for _, r := range results {
		lines = append(lines, r.String())
	}
	return strings.Join(lines, "\n"), nil
}

type searchResult struct {
	Title   string
	Snippet string
	URL     string
}

func (r searchResult) String() string {
	switch {
	case r.Snippet == "":
		return fmt.Sprintf("%s (%s)", r.Title, r.URL)
	case r.URL == "":
		return fmt.Sprintf("%s: %s", r.Title, r.Snippet)
	default:
		return fmt.Sprintf("%s: %s (%s)", r.Title, r.Snippet, r.URL)
	}
}

// parseSearchResults walks the result page. Each hit is a result__a link
// followed by an optional result__snippet element.
func parseSearchResults(r io.Reader, limit int) ([]searchResult, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}
	var (
		results []searchResult
		walk    func(*html.Node)
	)
	walk = func(n *html.Node) {
		if len(results) > limit {
			return
		}
		if n.Type == html.ElementNode {
			switch {
			case hasClass(n, "result__a"):
				results = append(results, searchResult{
					Title: textContent(n),
					URL:   resolveResultURL(attr(n, "href")),
				})
				return
			case hasClass(n, "result__snippet"):
				if len(results) > 0 && results[len(results)-1].Snippet == "" {
					results[len(results)-1].Snippet = textContent(n)
				}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// resolveResultURL unwraps DuckDuckGo's redirect links.
func resolveResultURL(href string) string {
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	return href
}

func hasClass(n *html.Node, class string) bool {
	for _, f := range strings.Fields(attr(n, "class")) {
		if f == class {
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

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}
