package sources

import (
	"bytes"
	"context"
	"iter"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"

	"CaseCollector/internal/domain"
	"CaseCollector/internal/ports"
	"CaseCollector/internal/textutil"
)

const (
	oasisBaseURL    = "https://oasis.kiom.re.kr"
	oasisSearchPath = "/search/search.do"
	oasisDetailPath = "/view/view.do"
	oasisPageSize   = 50
	oasisMinText    = 200
)

var (
	oasisArticleID = regexp.MustCompile(`[?&]id=([^&]+)`)
	nonWord        = regexp.MustCompile(`\W`)
)

var _ ports.SourceAdapter = (*OASIS)(nil)

// OASIS scrapes the Oriental medicine Advanced Searching Integrated System.
type OASIS struct {
	*session
}

// NewOASIS builds the OASIS adapter.
func NewOASIS(opts Options) *OASIS {
	return &OASIS{session: newSession(domain.SourceOASIS, oasisBaseURL, opts)}
}

func (o *OASIS) Name() string { return domain.SourceOASIS }

func (o *OASIS) RateLimit() time.Duration { return DefaultRateLimit }

// Search queries each keyword in turn. Failed keywords are logged and skipped.
func (o *OASIS) Search(ctx context.Context, q domain.SearchQuery) iter.Seq[domain.ArticleSummary] {
	return func(yield func(domain.ArticleSummary) bool) {
		wanted := maxResults(q.MaxResults)
		for _, keyword := range q.Keywords {
			if ctx.Err() != nil {
				return
			}
			params := url.Values{
				"searchWord": {keyword},
				"searchType": {"all"},
				"pageSize":   {strconv.Itoa(min(wanted, oasisPageSize))},
				"pageNo":     {"1"},
			}
			doc, _, err := o.fetchDocument(ctx, o.endpoint(oasisSearchPath, params))
			if err != nil {
				o.logger.Warn("search failed", "keyword", keyword, "error", err)
				continue
			}
			if doc == nil {
				continue
			}
			for _, article := range limit(o.parseSearchResults(doc), wanted) {
				if !q.InRange(article.Year) {
					continue
				}
				if !yield(article) {
					return
				}
			}
		}
	}
}

func (o *OASIS) parseSearchResults(doc *goquery.Document) []domain.ArticleSummary {
	var articles []domain.ArticleSummary
	doc.Find(".search-result-item, .article-item, .list-item, li.result").Each(func(_ int, item *goquery.Selection) {
		title := strip(item, ".title, h3, h4, a.article-title")
		if title == "" {
			return
		}
		href, ok := item.Find("a[href]").First().Attr("href")
		if !ok {
			return
		}
		id := oasisID(href)
		if id == "" {
			return
		}
		articles = append(articles, domain.ArticleSummary{
			ID:       id,
			Title:    title,
			Authors:  splitList(strip(item, ".author, .authors, .writer"), ",;"),
			Journal:  strip(item, ".journal, .source, .publication"),
			Year:     findYear(strip(item, ".year, .date, .pub-date")),
			URL:      o.resolve(href),
			Abstract: textutil.Truncate(strip(item, ".abstract, .summary, .description"), 500),
		})
	})
	return articles
}

func oasisID(href string) string {
	if m := oasisArticleID.FindStringSubmatch(href); m != nil {
		if id, err := url.QueryUnescape(m[1]); err == nil {
			return id
		}
		return m[1]
	}
	id := nonWord.ReplaceAllString(href, "_")
	if n := len(id); n > 50 {
		id = id[n-50:]
	}
	return id
}

// FetchDetail loads the article view page.
func (o *OASIS) FetchDetail(ctx context.Context, id string) (*domain.ArticleDetail, error) {
	detailURL := o.endpoint(oasisDetailPath, url.Values{"id": {id}})
	doc, raw, err := o.fetchDocument(ctx, detailURL)
	if err != nil || doc == nil {
		return nil, err
	}
	return o.parseDetail(doc, raw, id, detailURL), nil
}

func (o *OASIS) parseDetail(doc *goquery.Document, raw []byte, id, detailURL string) *domain.ArticleDetail {
	page := doc.Selection

	var doi string
	if el := page.Find(`[class*="doi"], a[href*="doi.org"]`).First(); el.Length() > 0 {
		doi = findDOI(el.Text())
	}

	fullText := ""
	if body := page.Find(".article-content, .full-text, .content, .body").First(); body.Length() > 0 {
		fullText = textLines(body)
	}
	if textutil.RuneLen(fullText) < oasisMinText {
		if extracted := o.mainContent(raw, detailURL); textutil.RuneLen(extracted) > textutil.RuneLen(fullText) {
			fullText = extracted
		}
	}
	if fullText == "" {
		page.Find("script, style, nav, header, footer, .sidebar").Remove()
		fullText = textLines(page)
	}

	return &domain.ArticleDetail{
		ArticleSummary: domain.ArticleSummary{
			ID:       id,
			Title:    strip(page, ".article-title, h1.title, .view-title"),
			Authors:  splitList(strip(page, ".authors, .author-list, .writer"), ",;"),
			Journal:  strip(page, ".journal-name, .source, .publication-info"),
			Year:     findYear(strip(page, ".pub-date, .date, .year")),
			DOI:      doi,
			URL:      detailURL,
			Abstract: strip(page, `.abstract, .summary, [class*="abstract"]`),
		},
		FullText:  textutil.Truncate(fullText, maxFullTextRunes),
		Keywords:  splitList(strip(page, `.keywords, [class*="keyword"]`), ",;"),
		FetchedAt: time.Now(),
	}
}

// mainContent runs readability over the page and returns its text, or "" on failure.
func (o *OASIS) mainContent(raw []byte, pageURL string) string {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}
	parser := readability.NewParser()
	article, err := parser.Parse(bytes.NewReader(raw), parsed)
	if err != nil {
		o.logger.Debug("readability failed", "url", pageURL, "error", err)
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(article.Content))
	if err != nil {
		return ""
	}
	return textLines(doc.Selection)
}
