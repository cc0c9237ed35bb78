package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	agentflow "github.com/shahintaesheikh/agentflow"
)

const (
	wikipediaTopK      = 5
	maxExcerptChars    = 1000
	noWikipediaResults = "No good Wikipedia Search Result was found"
)

// WikipediaTool searches the MediaWiki API and returns intro extracts.
type WikipediaTool struct {
	caps Capabilities
}

func (w *WikipediaTool) Spec() agentflow.ToolSpec {
	return queryTool("wikipedia",
		"Search Wikipedia for comprehensive information about topics. Use this for detailed reference material.",
		"The topic to search for on Wikipedia")
}

func (w *WikipediaTool) Invoke(ctx context.Context, req agentflow.ToolRequest) (agentflow.ToolResponse, error) {
	query := stringArg(req.Arguments, "query")
	if query == "" {
		return agentflow.ToolResponse{}, fmt.Errorf("missing 'query' argument")
	}
	out, err := cached(w.caps, "wikipedia", query, func() (string, error) {
		return w.lookup(ctx, query)
	})
	if err != nil {
		return agentflow.ToolResponse{}, err
	}
	return agentflow.ToolResponse{Content: out}, nil
}

type wikiSearchResponse struct {
	Query struct {
		Search []struct {
			Title string `json:"title"`
		} `json:"search"`
	} `json:"query"`
}

type wikiExtractResponse struct {
	Query struct {
		Pages map[string]struct {
			Title   string `json:"title"`
			Extract string `json:"extract"`
			Missing *bool  `json:"missing,omitempty"`
		} `json:"pages"`
		Redirects []struct {
			From string `json:"from"`
			To   string `json:"to"`
		} `json:"redirects"`
	} `json:"query"`
}

func (w *WikipediaTool) lookup(ctx context.Context, query string) (string, error) {
	var search wikiSearchResponse
	if err := w.get(ctx, url.Values{
		"action":   {"query"},
		"list":     {"search"},
		"srsearch": {query},
		"srlimit":  {fmt.Sprint(wikipediaTopK)},
		"format":   {"json"},
	}, &search); err != nil {
		return "", err
	}
	if len(search.Query.Search) == 0 {
		return noWikipediaResults, nil
	}
	titles := make([]string, 0, len(search.Query.Search))
	for _, hit := range search.Query.Search {
		titles = append(titles, hit.Title)
	}

	var extracts wikiExtractResponse
	if err := w.get(ctx, url.Values{
		"action":      {"query"},
		"prop":        {"extracts"},
		"exintro":     {"1"},
		"explaintext": {"1"},
		"exlimit":     {fmt.Sprint(len(titles))},
		"redirects":   {"1"},
		"titles":      {strings.Join(titles, "|")},
		"format":      {"json"},
	}, &extracts); err != nil {
		return "", err
	}

	byTitle := make(map[string]string, len(extracts.Query.Pages))
	for _, page := range extracts.Query.Pages {
		if page.Missing != nil {
			continue
		}
		byTitle[page.Title] = strings.TrimSpace(page.Extract)
	}
	for _, r := range extracts.Query.Redirects {
		if text, ok := byTitle[r.To]; ok {
			byTitle[r.From] = text
		}
	}

	excerpts := make([]string, 0, len(titles))
	for _, title := range titles {
		summary, ok := byTitle[title]
		if !ok || summary == "" {
			continue
		}
		excerpts = append(excerpts, truncateRunes(fmt.Sprintf("Page: %s\nSummary: %s", title, summary), maxExcerptChars))
	}
	if len(excerpts) == 0 {
		return noWikipediaResults, nil
	}
	return strings.Join(excerpts, "\n\n"), nil
}

func (w *WikipediaTool) get(ctx context.Context, params url.Values, out any) error {
	u, err := url.Parse(w.caps.WikipediaURL)
	if err != nil {
		return fmt.Errorf("wikipedia url: %w", err)
	}
	u.RawQuery = params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", userAgent)
	resp, err := w.caps.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("wikipedia request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("wikipedia returned %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode wikipedia response: %w", err)
	}
	return nil
}
