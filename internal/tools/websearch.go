package tools

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/normanking/conductor/internal/cache"
	"github.com/normanking/conductor/internal/logging"
)

// ===========================================================================
// WEB SEARCH TOOL
// ===========================================================================

const (
	// DefaultTavilyEndpoint is the Tavily search API.
	DefaultTavilyEndpoint = "https://api.tavily.com/search"

	maxQueryRunes      = 500
	defaultMaxResults  = 5
	maxSearchResults   = 10
	maxSnippetRunes    = 500
	maxErrorBodyBytes  = 4096
	defaultSearchCache = 100
	defaultSearchTTL   = 5 * time.Minute
)

// SearchResponse is a sanitized search result set.
type SearchResponse struct {
	Query   string
	Answer  string
	Results []SearchResult
}

// SearchResult is a single search hit.
type SearchResult struct {
	Title   string
	URL     string
	Content string
	Score   float64
}

// WebSearchTool searches the web using the Tavily API. Responses are
// cached by normalized query.
type WebSearchTool struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
	cache      *cache.Cache[*SearchResponse]
	log        zerolog.Logger
}

// dangerousPatterns are stripped from result text before it reaches a prompt.
var dangerousPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`),
	regexp.MustCompile(`(?i)javascript:`),
	regexp.MustCompile(`(?i)\bon\w+\s*=`),
	regexp.MustCompile(`(?i)data:\s*text/html`),
	regexp.MustCompile(`\x00`),
	regexp.MustCompile(`(?i)<(?:iframe|object|embed)[^>]*>`),
}

// WebSearchOption configures the WebSearchTool.
type WebSearchOption func(*WebSearchTool)

// WithAPIKey sets the Tavily API key.
func WithAPIKey(key string) WebSearchOption {
	return func(w *WebSearchTool) {
		w.apiKey = key
	}
}

// WithEndpoint overrides the search endpoint.
func WithEndpoint(url string) WebSearchOption {
	return func(w *WebSearchTool) {
		if url != "" {
			w.endpoint = url
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) WebSearchOption {
	return func(w *WebSearchTool) {
		w.httpClient = client
	}
}

// WithSearchCache sets the result cache size and TTL.
func WithSearchCache(size int, ttl time.Duration) WebSearchOption {
	return func(w *WebSearchTool) {
		w.cache = cache.New[*SearchResponse](size, ttl)
	}
}

// WithSearchLogger sets the search tool logger.
func WithSearchLogger(l zerolog.Logger) WebSearchOption {
	return func(w *WebSearchTool) {
		w.log = logging.Component(l, "web_search")
	}
}

// NewWebSearchTool creates a new web search tool.
func NewWebSearchTool(opts ...WebSearchOption) *WebSearchTool {
	w := &WebSearchTool{
		endpoint:   DefaultTavilyEndpoint,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		log:        logging.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.cache == nil {
		w.cache = cache.New[*SearchResponse](defaultSearchCache, defaultSearchTTL)
	}
	return w
}

// CacheStats reports the result cache counters.
func (w *WebSearchTool) CacheStats() cache.Stats {
	return w.cache.Stats()
}

func (w *WebSearchTool) Name() string { return ToolWebSearch }

func (w *WebSearchTool) Description() string {
	return "Search the web and return ranked sources with snippets"
}

func (w *WebSearchTool) Parameters() string {
	return `{"query": "search terms", "max_results": 5, "search_depth": "basic|advanced"}`
}

func (w *WebSearchTool) Validate(params Params) error {
	query := strings.TrimSpace(params.String("query"))
	if query == "" {
		return fmt.Errorf("search query cannot be empty")
	}
	if utf8.RuneCountInString(query) > maxQueryRunes {
		return fmt.Errorf("search query too long (max %d characters)", maxQueryRunes)
	}
	if w.apiKey == "" {
		return fmt.Errorf("%w: tavily api key missing", ErrNotConfigured)
	}
	return nil
}

// AssessRisk reports network access as medium risk.
func (w *WebSearchTool) AssessRisk(Params) RiskLevel {
	return RiskMedium
}

func (w *WebSearchTool) Execute(ctx context.Context, params Params) (string, error) {
	maxResults := params.Int("max_results", defaultMaxResults)
	resp, cached, err := w.search(ctx, params.String("query"), maxResults, params.String("search_depth") == "advanced")
	if err != nil {
		return "", err
	}
	w.log.Debug().Str("query", resp.Query).Int("results", len(resp.Results)).Bool("cached", cached).Msg("search complete")
	return formatResults(resp), nil
}

// Search returns sanitized results for query without prompt formatting.
func (w *WebSearchTool) Search(ctx context.Context, query string, maxResults int) (*SearchResponse, error) {
	if w.apiKey == "" {
		return nil, fmt.Errorf("%w: tavily api key missing", ErrNotConfigured)
	}
	resp, _, err := w.search(ctx, query, maxResults, false)
	return resp, err
}

func (w *WebSearchTool) search(ctx context.Context, query string, maxResults int, advanced bool) (*SearchResponse, bool, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, false, fmt.Errorf("search query cannot be empty")
	}
	maxResults = min(max(maxResults, 1), maxSearchResults)

	depth := "basic"
	if advanced {
		depth = "advanced"
	}
	key := cache.Fingerprint(maxQueryRunes, strings.ToLower(query), depth, fmt.Sprint(maxResults))
	if hit, ok := w.cache.Get(key); ok {
		return hit, true, nil
	}

	resp, err := w.callTavily(ctx, query, depth, maxResults)
	if err != nil {
		return nil, false, err
	}
	w.cache.Put(key, resp)
	return resp, false, nil
}

// ===========================================================================
// TAVILY API CLIENT
// ===========================================================================

func (w *WebSearchTool) callTavily(ctx context.Context, query, depth string, maxResults int) (*SearchResponse, error) {
	body := []byte(`{"include_answer":true}`)
	var err error
	for _, field := range []struct {
		path  string
		value any
	}{
		{"api_key", w.apiKey},
		{"query", query},
		{"search_depth", depth},
		{"max_results", maxResults},
	} {
		if body, err = sjson.SetBytes(body, field.path, field.value); err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	httpResp, err := w.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if httpResp.StatusCode != http.StatusOK {
		if len(data) > maxErrorBodyBytes {
			data = data[:maxErrorBodyBytes]
		}
		return nil, fmt.Errorf("search api returned status %d: %s", httpResp.StatusCode, strings.TrimSpace(string(data)))
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("decode response: invalid JSON")
	}

	doc := gjson.ParseBytes(data)
	resp := &SearchResponse{
		Query:  query,
		Answer: sanitizeText(doc.Get("answer").String()),
	}
	doc.Get("results").ForEach(func(_, r gjson.Result) bool {
		resp.Results = append(resp.Results, SearchResult{
			Title:   sanitizeText(r.Get("title").String()),
			URL:     strings.TrimSpace(r.Get("url").String()),
			Content: sanitizeText(r.Get("content").String()),
			Score:   r.Get("score").Float(),
		})
		return true
	})
	return resp, nil
}

// ===========================================================================
// RESULT FORMATTING
// ===========================================================================

// formatResults wraps results in XML so the model treats them as data.
func formatResults(resp *SearchResponse) string {
	var sb strings.Builder
	sb.WriteString("<web_search_results>\n")
	if resp.Answer != "" {
		fmt.Fprintf(&sb, "  <summary>%s</summary>\n", escapeXML(resp.Answer))
	}
	sb.WriteString("  <sources>\n")
	for i, r := range resp.Results {
		fmt.Fprintf(&sb, "    <source rank=\"%d\">\n", i+1)
		fmt.Fprintf(&sb, "      <title>%s</title>\n", escapeXML(r.Title))
		fmt.Fprintf(&sb, "      <url>%s</url>\n", escapeXML(r.URL))
		fmt.Fprintf(&sb, "      <content>%s</content>\n", escapeXML(truncateRunes(r.Content, maxSnippetRunes)))
		sb.WriteString("    </source>\n")
	}
	sb.WriteString("  </sources>\n")
	sb.WriteString("</web_search_results>")
	return sb.String()
}

var xmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")

func escapeXML(s string) string {
	return xmlEscaper.Replace(s)
}

func sanitizeText(text string) string {
	for _, pattern := range dangerousPatterns {
		text = pattern.ReplaceAllString(text, "")
	}
	return strings.TrimSpace(text)
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit-3]) + "..."
}
