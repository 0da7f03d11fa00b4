package notion

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jomei/notionapi"
)

const (
	DefaultBaseURL = "https://api.notion.com"

	// maxChildren is the number of blocks Notion accepts per request.
	maxChildren = 100
)

type Config struct {
	APIKey     string
	DatabaseID string
	// BaseURL replaces the scheme and host of every API request. The /v1
	// path prefix is kept.
	BaseURL    string
	HTTPClient *http.Client
}

// Client creates pages in a Notion database that has a "Title" title
// property and a "Tags" multi-select property.
type Client struct {
	api        *notionapi.Client
	databaseID notionapi.DatabaseID
}

func NewClient(cfg Config) *Client {
	httpClient := &http.Client{Timeout: 30 * time.Second}
	if cfg.HTTPClient != nil {
		c := *cfg.HTTPClient
		httpClient = &c
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL != "" && baseURL != DefaultBaseURL {
		if u, err := url.Parse(baseURL); err == nil && u.Host != "" {
			next := httpClient.Transport
			if next == nil {
				next = http.DefaultTransport
			}
			httpClient.Transport = rebase{base: u, next: next}
		}
	}

	return &Client{
		api:        notionapi.NewClient(notionapi.Token(cfg.APIKey), notionapi.WithHTTPClient(httpClient)),
		databaseID: notionapi.DatabaseID(cfg.DatabaseID),
	}
}

// rebase sends requests to another host, for proxies and tests.
type rebase struct {
	base *url.URL
	next http.RoundTripper
}

func (t rebase) RoundTrip(r *http.Request) (*http.Response, error) {
	r = r.Clone(r.Context())
	r.URL.Scheme = t.base.Scheme
	r.URL.Host = t.base.Host
	r.Host = t.base.Host
	return t.next.RoundTrip(r)
}

// Publish creates a page titled title whose body is markdown, followed by a
// divider and nextActionsMarkdown when that is non-empty. Any non-200
// response is returned as a *notionapi.Error.
func (c *Client) Publish(ctx context.Context, title, markdown, nextActionsMarkdown string, tags []string) error {
	children := MarkdownToBlocks(markdown)
	if nextActionsMarkdown != "" {
		children = append(children, Divider())
		children = append(children, MarkdownToBlocks(nextActionsMarkdown)...)
	}

	options := make([]notionapi.Option, 0, len(tags))
	for _, tag := range tags {
		options = append(options, notionapi.Option{Name: tag})
	}

	first, rest := children, []notionapi.Block(nil)
	if len(first) > maxChildren {
		first, rest = children[:maxChildren], children[maxChildren:]
	}
	if first == nil {
		first = []notionapi.Block{}
	}

	page, err := c.api.Page.Create(ctx, &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: c.databaseID,
		},
		Properties: notionapi.Properties{
			"Title": notionapi.TitleProperty{
				Type: notionapi.PropertyTypeTitle,
				Title: []notionapi.RichText{{
					Type: notionapi.ObjectTypeText,
					Text: &notionapi.Text{Content: title},
				}},
			},
			"Tags": notionapi.MultiSelectProperty{
				Type:        notionapi.PropertyTypeMultiSelect,
				MultiSelect: options,
			},
		},
		Children: first,
	})
	if err != nil {
		return fmt.Errorf("create page: %w", err)
	}

	for len(rest) > 0 {
		batch := rest
		if len(batch) > maxChildren {
			batch = rest[:maxChildren]
		}
		rest = rest[len(batch):]

		_, err := c.api.Block.AppendChildren(ctx, notionapi.BlockID(page.ID), &notionapi.AppendBlockChildrenRequest{
			Children: batch,
		})
		if err != nil {
			return fmt.Errorf("append blocks to %s: %w", page.ID, err)
		}
	}

	return nil
}
