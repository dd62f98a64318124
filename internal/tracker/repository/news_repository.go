package repository

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"prism-insight/internal/tracker/config"
	"prism-insight/internal/tracker/dto"
	"prism-insight/pkg/logger"

	"github.com/PuerkitoBio/goquery"
	"github.com/mauidude/go-readability"
	"github.com/mmcdole/gofeed"
	"github.com/patrickmn/go-cache"
)

const (
	newsQueryPlaceholder = "{query}"
	maxSummaryLength     = 300
)

type newsRepository struct {
	cfg        *config.Config
	log        *logger.Logger
	httpClient *http.Client
	cache      *cache.Cache
}

// NewNewsRepository returns the RSS headline client, or a no-op one when
// news lookups are disabled.
func NewNewsRepository(cfg *config.Config, log *logger.Logger) NewsRepository {
	if !cfg.News.Enabled || cfg.News.FeedURL == "" {
		return noopNewsRepository{}
	}
	return &newsRepository{
		cfg:        cfg,
		log:        log,
		httpClient: &http.Client{Timeout: cfg.News.Timeout},
		cache:      cache.New(30*time.Minute, time.Hour),
	}
}

func (r *newsRepository) GetHeadlines(ctx context.Context, ticker, companyName string) ([]dto.NewsItem, error) {
	if cached, ok := r.cache.Get(ticker); ok {
		return cached.([]dto.NewsItem), nil
	}

	query := companyName
	if strings.TrimSpace(query) == "" {
		query = ticker
	}
	feedURL := strings.ReplaceAll(r.cfg.News.FeedURL, newsQueryPlaceholder, url.QueryEscape(query))

	ctx, cancel := context.WithTimeout(ctx, r.cfg.News.Timeout)
	defer cancel()

	fp := gofeed.NewParser()
	fp.Client = r.httpClient
	feed, err := fp.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		r.log.WarnContext(ctx, "Failed to parse RSS feed", logger.ErrorField(err), logger.StringField("ticker", ticker))
		return nil, fmt.Errorf("failed to parse news feed: %w", err)
	}

	sort.SliceStable(feed.Items, func(i, j int) bool {
		if feed.Items[i].PublishedParsed == nil || feed.Items[j].PublishedParsed == nil {
			return false
		}
		return feed.Items[i].PublishedParsed.After(*feed.Items[j].PublishedParsed)
	})

	items := make([]dto.NewsItem, 0, r.cfg.News.MaxItems)
	for _, item := range feed.Items {
		if len(items) >= r.cfg.News.MaxItems {
			break
		}
		news := dto.NewsItem{
			Title:       strings.TrimSpace(item.Title),
			Link:        item.Link,
			Summary:     htmlToText(item.Description),
			PublishedAt: item.PublishedParsed,
		}
		if item.Author != nil {
			news.Source = item.Author.Name
		}
		if news.Summary == "" && item.Link != "" {
			summary, err := r.fetchArticleText(ctx, item.Link)
			if err != nil {
				r.log.DebugContext(ctx, "Failed to fetch article", logger.ErrorField(err), logger.StringField("url", item.Link))
			}
			news.Summary = summary
		}
		news.Summary = clip(news.Summary, maxSummaryLength)
		items = append(items, news)
	}

	r.cache.SetDefault(ticker, items)
	return items, nil
}

func (r *newsRepository) fetchArticleText(ctx context.Context, link string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", &StatusError{Service: "news", StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	doc, err := readability.NewDocument(string(body))
	if err != nil {
		return "", fmt.Errorf("failed to parse article: %w", err)
	}
	return htmlToText(doc.Content()), nil
}

// htmlToText flattens an HTML fragment into single-spaced text.
func htmlToText(fragment string) string {
	if strings.TrimSpace(fragment) == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return strings.TrimSpace(fragment)
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

type noopNewsRepository struct{}

func (noopNewsRepository) GetHeadlines(context.Context, string, string) ([]dto.NewsItem, error) {
	return nil, nil
}
