package sources

import (
	"context"
	"encoding/xml"
	"fmt"
	"iter"
	"net/url"
	"strconv"
	"strings"
	"time"

	"CaseCollector/internal/domain"
	"CaseCollector/internal/ports"
	"CaseCollector/internal/textutil"
)

const (
	pubmedBaseURL     = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"
	pubmedArticleURL  = "https://pubmed.ncbi.nlm.nih.gov/"
	pubmedMaxRetmax   = 200
	pubmedIDPrefix    = "PMID:"
	pubmedDateLayout  = "2006/01/02"
	pubmedRateWithKey = 500 * time.Millisecond
	pubmedRate        = time.Second
)

// pubmedKeywords maps Korean search terms to English PubMed queries.
var pubmedKeywords = map[string]string{
	"치험례":  "case report",
	"증례":   "case report",
	"임상례":  "clinical case",
	"한방치료": "korean medicine treatment",
	"한약치료": "herbal medicine",
	"침치료":  "acupuncture treatment",
	"한의학":  "korean medicine",
}

var pubmedDefaultQueries = []string{
	"(korean medicine OR traditional korean medicine) AND case report",
	"(herbal medicine korea) AND case report",
}

var _ ports.SourceAdapter = (*PubMed)(nil)

// PubMed queries NCBI E-utilities.
type PubMed struct {
	*session
	apiKey string
}

// NewPubMed builds the PubMed adapter. apiKey is optional and raises the allowed request rate.
func NewPubMed(opts Options, apiKey string) *PubMed {
	return &PubMed{session: newSession(domain.SourcePubMed, pubmedBaseURL, opts), apiKey: apiKey}
}

func (p *PubMed) Name() string { return domain.SourcePubMed }

func (p *PubMed) RateLimit() time.Duration {
	if p.apiKey != "" {
		return pubmedRateWithKey
	}
	return pubmedRate
}

type esearchResult struct {
	XMLName xml.Name `xml:"eSearchResult"`
	IDs     []string `xml:"IdList>Id"`
}

type pubmedArticleSet struct {
	XMLName  xml.Name        `xml:"PubmedArticleSet"`
	Articles []pubmedArticle `xml:"PubmedArticle"`
}

type pubmedArticle struct {
	PMID         string             `xml:"MedlineCitation>PMID"`
	Title        string             `xml:"MedlineCitation>Article>ArticleTitle"`
	Journal      string             `xml:"MedlineCitation>Article>Journal>Title"`
	Year         string             `xml:"MedlineCitation>Article>Journal>JournalIssue>PubDate>Year"`
	MedlineDate  string             `xml:"MedlineCitation>Article>Journal>JournalIssue>PubDate>MedlineDate"`
	Abstract     []pubmedAbstract   `xml:"MedlineCitation>Article>Abstract>AbstractText"`
	Authors      []pubmedAuthor     `xml:"MedlineCitation>Article>AuthorList>Author"`
	Keywords     []string           `xml:"MedlineCitation>KeywordList>Keyword"`
	MeshHeadings []string           `xml:"MedlineCitation>MeshHeadingList>MeshHeading>DescriptorName"`
	ArticleIDs   []pubmedArticleRef `xml:"PubmedData>ArticleIdList>ArticleId"`
}

type pubmedAbstract struct {
	Label string `xml:"Label,attr"`
	Text  string `xml:",chardata"`
}

type pubmedAuthor struct {
	LastName string `xml:"LastName"`
	ForeName string `xml:"ForeName"`
}

type pubmedArticleRef struct {
	IDType string `xml:"IdType,attr"`
	Value  string `xml:",chardata"`
}

// BuildQueries turns search keywords into PubMed query strings.
func BuildQueries(keywords []string) []string {
	queries := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		if eng, ok := pubmedKeywords[kw]; ok {
			queries = append(queries, fmt.Sprintf("(%s) AND (korea OR korean)", eng))
			continue
		}
		queries = append(queries, fmt.Sprintf("(%s) AND case report", kw))
	}
	if len(queries) == 0 {
		return append([]string(nil), pubmedDefaultQueries...)
	}
	return queries
}

// Search runs esearch per query and efetches the new PMIDs in one batch.
func (p *PubMed) Search(ctx context.Context, q domain.SearchQuery) iter.Seq[domain.ArticleSummary] {
	return func(yield func(domain.ArticleSummary) bool) {
		queries := BuildQueries(q.Keywords)
		perQuery := max(maxResults(q.MaxResults)/len(queries), 1)
		seen := make(map[string]struct{})

		for _, query := range queries {
			if ctx.Err() != nil {
				return
			}
			ids, err := p.esearch(ctx, query, perQuery, q)
			if err != nil {
				p.logger.Warn("esearch failed", "query", query, "error", err)
				continue
			}
			fresh := ids[:0]
			for _, id := range ids {
				if _, ok := seen[id]; !ok {
					seen[id] = struct{}{}
					fresh = append(fresh, id)
				}
			}
			if len(fresh) == 0 {
				continue
			}

			set, err := p.efetch(ctx, fresh, "abstract")
			if err != nil {
				p.logger.Warn("efetch failed", "query", query, "error", err)
				continue
			}
			for _, a := range set.Articles {
				if a.PMID == "" {
					continue
				}
				summary := a.summary()
				summary.Abstract = textutil.Truncate(summary.Abstract, 1000)
				if !q.InRange(summary.Year) {
					continue
				}
				if !yield(summary) {
					return
				}
			}
		}
	}
}

func (p *PubMed) params(extra url.Values) url.Values {
	extra.Set("db", "pubmed")
	extra.Set("retmode", "xml")
	if p.apiKey != "" {
		extra.Set("api_key", p.apiKey)
	}
	return extra
}

func (p *PubMed) esearch(ctx context.Context, query string, retmax int, q domain.SearchQuery) ([]string, error) {
	params := p.params(url.Values{
		"term":   {query},
		"retmax": {strconv.Itoa(min(retmax, pubmedMaxRetmax))},
		"sort":   {"date"},
	})
	if !q.DateFrom.IsZero() || !q.DateTo.IsZero() {
		params.Set("datetype", "pdat")
		if !q.DateFrom.IsZero() {
			params.Set("mindate", q.DateFrom.Format(pubmedDateLayout))
		}
		if !q.DateTo.IsZero() {
			params.Set("maxdate", q.DateTo.Format(pubmedDateLayout))
		}
	}

	body, err := p.get(ctx, p.endpoint("/esearch.fcgi", params))
	if err != nil || body == nil {
		return nil, err
	}
	var res esearchResult
	if err := xml.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("decode esearch: %w", err)
	}
	return res.IDs, nil
}

func (p *PubMed) efetch(ctx context.Context, pmids []string, rettype string) (*pubmedArticleSet, error) {
	params := p.params(url.Values{
		"id":      {strings.Join(pmids, ",")},
		"rettype": {rettype},
	})
	body, err := p.get(ctx, p.endpoint("/efetch.fcgi", params))
	if err != nil {
		return nil, err
	}
	var set pubmedArticleSet
	if body == nil {
		return &set, nil
	}
	if err := xml.Unmarshal(body, &set); err != nil {
		return nil, fmt.Errorf("decode efetch: %w", err)
	}
	return &set, nil
}

// FetchDetail efetches one article. Full text is the labelled abstract.
func (p *PubMed) FetchDetail(ctx context.Context, id string) (*domain.ArticleDetail, error) {
	pmid := strings.TrimPrefix(id, pubmedIDPrefix)
	set, err := p.efetch(ctx, []string{pmid}, "full")
	if err != nil {
		return nil, err
	}
	if len(set.Articles) == 0 {
		return nil, nil
	}

	a := set.Articles[0]
	summary := a.summary()
	summary.Authors = limit(summary.Authors, 20)

	keywords := make([]string, 0, len(a.Keywords)+len(a.MeshHeadings))
	for _, kw := range append(append([]string(nil), a.Keywords...), a.MeshHeadings...) {
		if kw = strings.TrimSpace(kw); kw != "" {
			keywords = append(keywords, kw)
		}
	}

	return &domain.ArticleDetail{
		ArticleSummary: summary,
		FullText:       summary.Abstract,
		Keywords:       limit(keywords, 20),
		FetchedAt:      time.Now(),
	}, nil
}

func (a pubmedArticle) summary() domain.ArticleSummary {
	var authors []string
	for _, au := range a.Authors {
		if au.LastName == "" {
			continue
		}
		name := au.LastName
		if au.ForeName != "" {
			name = au.ForeName + " " + name
		}
		authors = append(authors, name)
	}

	var doi string
	for _, ref := range a.ArticleIDs {
		if ref.IDType == "doi" {
			doi = strings.TrimSpace(ref.Value)
			break
		}
	}

	year, err := strconv.Atoi(strings.TrimSpace(a.Year))
	if err != nil {
		year = findYear(a.MedlineDate)
	}

	parts := make([]string, 0, len(a.Abstract))
	for _, section := range a.Abstract {
		text := strings.TrimSpace(section.Text)
		if section.Label != "" {
			text = section.Label + ": " + text
		}
		parts = append(parts, text)
	}

	pmid := strings.TrimSpace(a.PMID)
	return domain.ArticleSummary{
		ID:       pubmedIDPrefix + pmid,
		Title:    strings.TrimSpace(a.Title),
		Authors:  limit(authors, 10),
		Journal:  strings.TrimSpace(a.Journal),
		Year:     year,
		DOI:      doi,
		URL:      pubmedArticleURL + pmid + "/",
		Abstract: strings.Join(parts, "\n"),
	}
}
