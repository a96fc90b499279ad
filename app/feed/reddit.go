package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"
)

const (
	DefaultRedditPublicURL = "https://www.reddit.com"
	DefaultRedditOAuthURL  = "https://oauth.reddit.com"
	DefaultRedditTokenURL  = "https://www.reddit.com/api/v1/access_token"
	DefaultRedditPageSize  = 100
	DefaultRedditRateLimit = 1.0 // requests per second
)

type RedditCredentials struct {
	ClientID     string
	ClientSecret string
}

type RedditReader struct {
	baseURL    string
	tokenURL   string
	httpClient *http.Client
	userAgent  string
	limiter    *rate.Limiter
	pageSize   int
	timeout    time.Duration
}

type RedditOption func(*RedditReader)

func WithRedditBaseURL(baseURL string) RedditOption {
	return func(r *RedditReader) {
		r.baseURL = baseURL
	}
}

func WithRedditTokenURL(tokenURL string) RedditOption {
	return func(r *RedditReader) {
		r.tokenURL = tokenURL
	}
}

func WithRedditHTTPClient(httpClient *http.Client) RedditOption {
	return func(r *RedditReader) {
		r.httpClient = httpClient
	}
}

func WithRedditRateLimit(requestsPerSecond float64) RedditOption {
	return func(r *RedditReader) {
		r.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), 1)
	}
}

func WithRedditPageSize(pageSize int) RedditOption {
	return func(r *RedditReader) {
		if pageSize > 0 {
			r.pageSize = pageSize
		}
	}
}

// NewRedditReader reads /r/{source}/new listings. When credentials are set,
// requests go to the OAuth host with an app-only client-credentials token;
// otherwise the public JSON endpoints are used.
func NewRedditReader(creds RedditCredentials, userAgent string, opts ...RedditOption) *RedditReader {
	r := &RedditReader{
		baseURL:   DefaultRedditPublicURL,
		tokenURL:  DefaultRedditTokenURL,
		userAgent: userAgent,
		limiter:   rate.NewLimiter(rate.Limit(DefaultRedditRateLimit), 1),
		pageSize:  DefaultRedditPageSize,
		timeout:   30 * time.Second,
	}
	if creds.ClientID != "" {
		r.baseURL = DefaultRedditOAuthURL
	}

	for _, opt := range opts {
		opt(r)
	}

	base := r.httpClient
	if base == nil {
		base = &http.Client{Timeout: r.timeout}
	}
	base = &http.Client{
		Timeout:   base.Timeout,
		Transport: &userAgentTransport{userAgent: userAgent, next: base.Transport},
	}

	if creds.ClientID != "" {
		conf := &clientcredentials.Config{
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			TokenURL:     r.tokenURL,
			AuthStyle:    oauth2.AuthStyleInHeader,
		}
		tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
		oauthClient := conf.Client(tokenCtx)
		oauthClient.Timeout = base.Timeout
		r.httpClient = oauthClient
	} else {
		r.httpClient = base
	}

	return r
}

type redditListing struct {
	Data struct {
		After    string `json:"after"`
		Children []struct {
			Kind string     `json:"kind"`
			Data redditPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditPost struct {
	ID            string  `json:"id"`
	LinkFlairText *string `json:"link_flair_text"`
	URL           string  `json:"url"`
	Over18        bool    `json:"over_18"`
	CreatedUTC    float64 `json:"created_utc"`
}

func (p redditPost) candidate() CandidateItem {
	tag := NoTag()
	if p.LinkFlairText != nil {
		tag = TagOf(*p.LinkFlairText)
	}
	return CandidateItem{
		ID:         p.ID,
		Tag:        tag,
		URL:        p.URL,
		NSFW:       p.Over18,
		CreatedUTC: p.CreatedUTC,
	}
}

func (r *RedditReader) Read(ctx context.Context, source *Source, limit int) iter.Seq2[CandidateItem, error] {
	return func(yield func(CandidateItem, error) bool) {
		remaining := limit
		after := ""

		for remaining > 0 {
			listing, err := r.fetchPage(ctx, source.Name, min(remaining, r.pageSize), after)
			if err != nil {
				yield(CandidateItem{}, err)
				return
			}

			children := listing.Data.Children
			for _, child := range children {
				if remaining == 0 {
					return
				}
				remaining--
				if !yield(child.Data.candidate(), nil) {
					return
				}
			}

			if listing.Data.After == "" || len(children) == 0 {
				return
			}
			after = listing.Data.After
		}
	}
}

func (r *RedditReader) fetchPage(ctx context.Context, subreddit string, limit int, after string) (*redditListing, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait failed: %w", err)
	}

	params := url.Values{}
	params.Set("limit", fmt.Sprintf("%d", limit))
	params.Set("raw_json", "1")
	if after != "" {
		params.Set("after", after)
	}
	reqURL := fmt.Sprintf("%s/r/%s/new.json?%s", r.baseURL, url.PathEscape(subreddit), params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch listing: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	var listing redditListing
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return nil, fmt.Errorf("failed to decode listing: %w", err)
	}

	return &listing, nil
}

type userAgentTransport struct {
	userAgent string
	next      http.RoundTripper
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	next := t.next
	if next == nil {
		next = http.DefaultTransport
	}
	if t.userAgent != "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", t.userAgent)
	}
	return next.RoundTrip(req)
}
