package zendesk

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/akolanti/SupportRAG/internal/data/artifacts"
	"github.com/akolanti/SupportRAG/internal/domain/commonModels"
	"github.com/akolanti/SupportRAG/internal/source"
)

type category struct {
	Id   int64  `json:"id"`
	Name string `json:"name"`
}

type section struct {
	Id   int64  `json:"id"`
	Name string `json:"name"`
}

type articleListing struct {
	Id    int64  `json:"id"`
	Title string `json:"title"`
}

type article struct {
	Id         int64     `json:"id"`
	Title      string    `json:"title"`
	Body       string    `json:"body"`
	HTMLURL    string    `json:"html_url"`
	LabelNames []string  `json:"label_names"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type page struct {
	Categories []category       `json:"categories"`
	Sections   []section        `json:"sections"`
	Articles   []articleListing `json:"articles"`
	NextPage   *string          `json:"next_page"`
}

type articleRef struct {
	id       int64
	category commonModels.Label
	section  commonModels.Label
}

// Source walks categories, sections and articles and returns one Document per article.
type Source struct {
	client *Client
	raw    *artifacts.Store
}

var _ source.Source = (*Source)(nil)

// NewSource wraps client. When raw is non nil each article payload is kept under raw/.
func NewSource(client *Client, raw *artifacts.Store) *Source {
	return &Source{client: client, raw: raw}
}

func (s *Source) FetchDocuments(ctx context.Context) ([]commonModels.Document, error) {
	log := s.client.logger.WithTrace(ctx)
	log.Info("Beginning article extraction")

	refs, err := s.collectArticleRefs(ctx)
	if err != nil {
		return nil, err
	}
	log.Info("Found articles to fetch", "count", len(refs))

	docs := make([]commonModels.Document, 0, len(refs))
	for i, ref := range refs {
		log.Debug("Fetching article", "n", i+1, "of", len(refs), "articleId", ref.id)
		doc, err := s.fetchArticle(ctx, ref)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (s *Source) collectArticleRefs(ctx context.Context) ([]articleRef, error) {
	categories, err := paginate(ctx, s.client, "categories.json", func(p page) []category { return p.Categories })
	if err != nil {
		return nil, err
	}

	var refs []articleRef
	for _, cat := range categories {
		sections, err := paginate(ctx, s.client, fmt.Sprintf("categories/%d/sections.json", cat.Id),
			func(p page) []section { return p.Sections })
		if err != nil {
			return nil, err
		}
		for _, sec := range sections {
			listings, err := paginate(ctx, s.client, fmt.Sprintf("sections/%d/articles.json", sec.Id),
				func(p page) []articleListing { return p.Articles })
			if err != nil {
				return nil, err
			}
			for _, l := range listings {
				refs = append(refs, articleRef{
					id:       l.Id,
					category: commonModels.Label{Id: cat.Id, Name: cat.Name},
					section:  commonModels.Label{Id: sec.Id, Name: sec.Name},
				})
			}
		}
	}
	return refs, nil
}

func (s *Source) fetchArticle(ctx context.Context, ref articleRef) (commonModels.Document, error) {
	var resp struct {
		Article json.RawMessage `json:"article"`
	}
	if _, err := s.client.getJSON(ctx, fmt.Sprintf("articles/%d.json", ref.id), &resp); err != nil {
		return commonModels.Document{}, err
	}

	var a article
	if len(resp.Article) > 0 {
		if err := json.Unmarshal(resp.Article, &a); err != nil {
			// a malformed article degrades to an empty one, the chunker skips it
			s.client.logger.WithTrace(ctx).Warn("malformed article payload", "articleId", ref.id, "error", err)
		}
	}
	if s.raw != nil && len(resp.Article) > 0 {
		if err := s.raw.SaveRaw(fmt.Sprintf("article_%d.json", ref.id), resp.Article); err != nil {
			s.client.logger.WithTrace(ctx).Warn("could not save raw article", "articleId", ref.id, "error", err)
		}
	}

	return commonModels.Document{
		Id:          strconv.FormatInt(ref.id, 10),
		Title:       a.Title,
		Body:        CleanHTML(a.Body),
		HTMLBody:    a.Body,
		URL:         a.HTMLURL,
		Category:    ref.category,
		Section:     ref.section,
		Tags:        a.LabelNames,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
		ContentType: commonModels.HTML,
	}, nil
}

// paginate follows next_page until it is null.
func paginate[T any](ctx context.Context, c *Client, endpoint string, items func(page) []T) ([]T, error) {
	var out []T
	next := endpoint
	for next != "" {
		var p page
		if _, err := c.getJSON(ctx, next, &p); err != nil {
			return nil, err
		}
		out = append(out, items(p)...)
		next = ""
		if p.NextPage != nil {
			next = *p.NextPage
		}
	}
	return out, nil
}
