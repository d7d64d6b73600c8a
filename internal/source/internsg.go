package source

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jordanseet/internwatch/internal/model"
)

// DefaultBaseURL is the production InternSG site.
const DefaultBaseURL = "https://www.internsg.com"

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// InternSG scrapes the InternSG listing pages for internship postings.
type InternSG struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewInternSG creates a scraper against the given base URL (DefaultBaseURL in
// production, an httptest server in tests).
func NewInternSG(baseURL string, client *http.Client, logger *slog.Logger) *InternSG {
	return &InternSG{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		logger:  logger,
	}
}

// Fetch retrieves postings for every role keyword in order. A keyword failure
// aborts the fetch so the retry decorator sees the HTTPError; tolerating a bad
// keyword is KeywordFanout's job, which calls this one keyword at a time.
func (s *InternSG) Fetch(ctx context.Context, roles []string) ([]model.Posting, error) {
	var postings []model.Posting
	for _, role := range roles {
		found, err := s.fetchKeyword(ctx, role)
		if err != nil {
			return nil, err
		}
		postings = append(postings, found...)
	}
	return postings, nil
}

// fetchKeyword scrapes one listing page filtered by keyword.
func (s *InternSG) fetchKeyword(ctx context.Context, keyword string) ([]model.Posting, error) {
	u := fmt.Sprintf("%s/jobs/?f_0=1&f_p=&f_i=&filter_s=%s", s.baseURL, url.QueryEscape(keyword))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("internsg fetch for %q: %w", keyword, err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("internsg fetch for %q: %w", keyword, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &model.HTTPError{
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Err:        fmt.Errorf("internsg fetch for %q", keyword),
		}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("internsg parse for %q: %w", keyword, err)
	}

	var postings []model.Posting
	doc.Find(".ast-row.list-odd, .ast-row.list-even").Each(func(_ int, row *goquery.Selection) {
		p, ok := parseRow(row)
		if !ok {
			// Listing rows missing required fields never reach the engine.
			s.logger.Debug("skipping listing with missing fields", "keyword", keyword)
			return
		}
		postings = append(postings, p)
	})

	s.logger.Debug("scraped keyword", "keyword", keyword, "postings", len(postings))
	return postings, nil
}

// parseRow extracts one posting from a listing row. Returns ok=false when the
// title or link is missing.
func parseRow(row *goquery.Selection) (model.Posting, bool) {
	titleTag := row.Find(".ast-col-lg-3 a").First()
	title := cleanText(titleTag.Text())
	link, _ := titleTag.Attr("href")
	link = NormalizeLink(link)
	if title == "" || link == "" {
		return model.Posting{}, false
	}

	// Company is the first line of the first column's text.
	company := cleanText(firstLine(row.Find(".ast-col-lg-3").First().Text()))

	return model.Posting{
		Title:    title,
		Company:  company,
		Location: cleanText(row.Find(".ast-col-lg-2 .job-listing-dt").First().Text()),
		Duration: cleanText(row.Find(".ast-col-lg-3 .job-listing-dt").First().Text()),
		PostedOn: cleanText(row.Find(".ast-col-lg-1 span").First().Text()),
		Link:     link,
	}, true
}

// NormalizeLink strips the query string so the same posting always carries the
// same identity regardless of tracking parameters.
func NormalizeLink(link string) string {
	link = strings.TrimSpace(link)
	if i := strings.IndexByte(link, '?'); i >= 0 {
		link = link[:i]
	}
	return link
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
