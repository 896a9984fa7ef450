// Package sources implements the bibliographic source adapters.
package sources

import (
	"bytes"
	"context"
	"fmt"
	"hash/fnv"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const (
	defaultTimeout    = 30 * time.Second
	defaultMaxResults = 50
	maxFullTextRunes  = 50000
	maxBodyBytes      = 10 << 20
	userAgent         = "Mozilla/5.0 (compatible; CaseCollector/1.0)"
)

// DefaultRateLimit applies to sources that do not declare their own delay.
const DefaultRateLimit = 5 * time.Second

var (
	yearExpr = regexp.MustCompile(`(?:19|20)\d{2}`)
	doiExpr  = regexp.MustCompile(`10\.\d+/[^\s"'<>]+`)
)

// Options configure an adapter.
type Options struct {
	BaseURL string
	Timeout time.Duration
	// Client replaces the HTTP client built by Initialize. Used by tests.
	Client *http.Client
	Logger *slog.Logger
}

// session owns the HTTP client an adapter uses between Initialize and Cleanup.
type session struct {
	name    string
	baseURL string
	timeout time.Duration
	fixed   *http.Client
	logger  *slog.Logger

	mu     sync.Mutex
	client *http.Client
}

func newSession(name, defaultBase string, opts Options) *session {
	base := strings.TrimSuffix(opts.BaseURL, "/")
	if base == "" {
		base = defaultBase
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &session{
		name:    name,
		baseURL: base,
		timeout: timeout,
		fixed:   opts.Client,
		logger:  logger.With("component", "source", "source", name),
	}
}

func (s *session) Initialize(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		return nil
	}
	if s.fixed != nil {
		s.client = s.fixed
		return nil
	}
	s.client = &http.Client{Timeout: s.timeout}
	return nil
}

func (s *session) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		return
	}
	if s.client != s.fixed {
		s.client.CloseIdleConnections()
	}
	s.client = nil
}

func (s *session) httpClient(ctx context.Context) *http.Client {
	s.mu.Lock()
	c := s.client
	s.mu.Unlock()
	if c != nil {
		return c
	}
	_ = s.Initialize(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.client
}

func (s *session) endpoint(path string, params url.Values) string {
	u := s.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return u
}

// get fetches rawURL and returns the body. A 404 yields nil, nil.
func (s *session) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept-Language", "ko-KR,ko;q=0.9,en;q=0.8")

	resp, err := s.httpClient(ctx).Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", s.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned %s", s.name, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s body: %w", s.name, err)
	}
	return body, nil
}

func (s *session) fetchDocument(ctx context.Context, rawURL string) (*goquery.Document, []byte, error) {
	body, err := s.get(ctx, rawURL)
	if err != nil || body == nil {
		return nil, nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, nil, fmt.Errorf("parse document: %w", err)
	}
	return doc, body, nil
}

func (s *session) resolve(href string) string {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return href
	}
	base, err := url.Parse(s.baseURL + "/")
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

func maxResults(n int) int {
	if n <= 0 {
		return defaultMaxResults
	}
	return n
}

func findYear(text string) int {
	m := yearExpr.FindString(text)
	if m == "" {
		return 0
	}
	y, _ := strconv.Atoi(m)
	return y
}

func findDOI(text string) string {
	return strings.TrimRight(doiExpr.FindString(text), ".,;")
}

// strip returns the collapsed text of the first element matching selector.
func strip(sel *goquery.Selection, selector string) string {
	return strings.Join(strings.Fields(sel.Find(selector).First().Text()), " ")
}

// textLines returns the text nodes under sel, one per line, skipping scripts and styles.
func textLines(sel *goquery.Selection) string {
	var lines []string
	var walk func(*goquery.Selection)
	walk = func(s *goquery.Selection) {
		s.Contents().Each(func(_ int, c *goquery.Selection) {
			switch goquery.NodeName(c) {
			case "#text":
				if t := strings.TrimSpace(c.Text()); t != "" {
					lines = append(lines, t)
				}
			case "script", "style", "noscript", "#comment":
			default:
				walk(c)
			}
		})
	}
	walk(sel)
	return strings.Join(lines, "\n")
}

func splitList(text, separators string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool { return strings.ContainsRune(separators, r) })
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

func hashedID(prefix, value string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(value))
	return fmt.Sprintf("%s_%08x", prefix, h.Sum32())
}

func limit[T any](items []T, n int) []T {
	if len(items) > n {
		return items[:n]
	}
	return items
}
