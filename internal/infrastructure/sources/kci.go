package sources

import (
	"context"
	"iter"
	"net/url"
	"regexp"
	"strconv"
	"time"

	"github.com/PuerkitoBio/goquery"

	"CaseCollector/internal/domain"
	"CaseCollector/internal/ports"
	"CaseCollector/internal/textutil"
)

const (
	kciBaseURL    = "https://www.kci.go.kr"
	kciSearchPath = "/kciportal/po/search/poArtiSearList.kci"
	kciDetailPath = "/kciportal/ci/sereArticleSearch/ciSereArtiView.kci"
	kciPageSize   = 50
	kciRateLimit  = 3 * time.Second
	kciMinTitle   = 5
)

var kciArticleID = regexp.MustCompile(`artiId=([A-Z0-9]+)`)

var _ ports.SourceAdapter = (*KCI)(nil)

// KCI scrapes the Korea Citation Index portal.
type KCI struct {
	*session
}

// NewKCI builds the KCI adapter.
func NewKCI(opts Options) *KCI {
	return &KCI{session: newSession(domain.SourceKCI, kciBaseURL, opts)}
}

func (k *KCI) Name() string { return domain.SourceKCI }

func (k *KCI) RateLimit() time.Duration { return kciRateLimit }

// Search queries each keyword in turn. Failed keywords are logged and skipped.
func (k *KCI) Search(ctx context.Context, q domain.SearchQuery) iter.Seq[domain.ArticleSummary] {
	return func(yield func(domain.ArticleSummary) bool) {
		wanted := maxResults(q.MaxResults)
		for _, keyword := range q.Keywords {
			if ctx.Err() != nil {
				return
			}
			params := url.Values{
				"searchType": {"basic"},
				"queryText":  {keyword},
				"pageNo":     {"1"},
				"pageSize":   {strconv.Itoa(min(wanted, kciPageSize))},
			}
			doc, _, err := k.fetchDocument(ctx, k.endpoint(kciSearchPath, params))
			if err != nil {
				k.logger.Warn("search failed", "keyword", keyword, "error", err)
				continue
			}
			if doc == nil {
				continue
			}
			results := k.parseSearchResults(doc)
			k.logger.Debug("search results", "keyword", keyword, "count", len(results))
			for _, article := range limit(results, wanted) {
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

func (k *KCI) parseSearchResults(doc *goquery.Document) []domain.ArticleSummary {
	items := doc.Find("ul.list li, .list_search li, .resultList li")
	if items.Length() == 0 {
		items = doc.Find(`div[class*="result"] li, .search-result li`)
	}

	var articles []domain.ArticleSummary
	items.Each(func(_ int, item *goquery.Selection) {
		link := item.Find(".subject a, .title a, h3 a, h4 a").First()
		if link.Length() == 0 {
			link = item.Find(`a[href*="ciSereArtiView"]`).First()
		}
		if link.Length() == 0 {
			return
		}
		title := textutil.CollapseSpace(link.Text())
		if textutil.RuneLen(title) < kciMinTitle {
			return
		}

		href, _ := link.Attr("href")
		id := hashedID("kci", href)
		if m := kciArticleID.FindStringSubmatch(href); m != nil {
			id = m[1]
		}

		var authors []string
		item.Find(`.author a, .writer a, a[href*="poCretDetail"]`).Each(func(_ int, a *goquery.Selection) {
			name := textutil.CollapseSpace(a.Text())
			if name != "" && textutil.RuneLen(name) < 20 {
				authors = append(authors, name)
			}
		})

		articles = append(articles, domain.ArticleSummary{
			ID:       id,
			Title:    title,
			Authors:  limit(authors, 5),
			Journal:  strip(item, `.journal, .source, a[href*="ciSereInfoView"]`),
			Year:     findYear(item.Text()),
			URL:      k.resolve(href),
			Abstract: textutil.Truncate(strip(item, ".abstract, .summary"), 500),
		})
	})
	return articles
}

// FetchDetail loads the article page. Pages without a title count as not found.
func (k *KCI) FetchDetail(ctx context.Context, id string) (*domain.ArticleDetail, error) {
	detailURL := k.endpoint(kciDetailPath, url.Values{"sereArticleSearchBean.artiId": {id}})
	doc, _, err := k.fetchDocument(ctx, detailURL)
	if err != nil || doc == nil {
		return nil, err
	}
	return parseKCIDetail(doc, id, detailURL), nil
}

func parseKCIDetail(doc *goquery.Document, id, detailURL string) *domain.ArticleDetail {
	page := doc.Selection
	title := strip(page, ".artclInfoTop h1, .article-title, .title, h1")
	if title == "" {
		return nil
	}

	var authors []string
	page.Find(`.author a, .authors a, a[href*="poCretDetail"]`).Each(func(_ int, a *goquery.Selection) {
		name := textutil.CollapseSpace(a.Text())
		if n := textutil.RuneLen(name); n > 1 && n < 20 {
			authors = append(authors, name)
		}
	})

	year := findYear(strip(page, ".pub-date, .date, .year"))
	if year == 0 {
		year = findYear(textutil.Truncate(page.Text(), 2000))
	}

	var doi string
	if el := page.Find(`a[href*="doi.org"], .doi`).First(); el.Length() > 0 {
		href, _ := el.Attr("href")
		if doi = findDOI(href); doi == "" {
			doi = findDOI(el.Text())
		}
	}

	abstract := strip(page, `.abstract, .abstractTxt, [class*="abstract"]`)
	fullText := abstract
	if body := page.Find(".article-content, .content, .body").First(); body.Length() > 0 {
		if text := textLines(body); textutil.RuneLen(text) > textutil.RuneLen(fullText) {
			fullText = text
		}
	}

	return &domain.ArticleDetail{
		ArticleSummary: domain.ArticleSummary{
			ID:       id,
			Title:    title,
			Authors:  limit(authors, 10),
			Journal:  strip(page, `.journal-name, .journalInfo, a[href*="ciSereInfoView"]`),
			Year:     year,
			DOI:      doi,
			URL:      detailURL,
			Abstract: abstract,
		},
		FullText:  textutil.Truncate(fullText, maxFullTextRunes),
		Keywords:  splitList(strip(page, `.keywords, [class*="keyword"]`), ",;·"),
		FetchedAt: time.Now(),
	}
}
