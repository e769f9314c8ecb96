package notion

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"

	"github.com/jbctechsolutions/docsync/internal/adapters/transport"
	"github.com/jbctechsolutions/docsync/internal/domain/errors"
)

const (
	// DefaultBaseURL is the public API endpoint.
	DefaultBaseURL = "https://api.notion.com/v1"
	// DefaultVersion is the API version sent with every request.
	DefaultVersion = "2022-06-28"
	// MaxAppendBlocks is the most children one append request may carry.
	MaxAppendBlocks = 100

	serviceName = "notion"
	pageSize    = 100
)

// Client is the subset of the page service API the sync engine needs.
type Client interface {
	// GetPage returns page metadata.
	GetPage(ctx context.Context, id string) (*Page, error)

	// GetPageBlocks returns the full block tree of a page, children included.
	GetPageBlocks(ctx context.Context, id string) ([]Block, error)

	// AppendBlocks appends blocks to the end of a page.
	AppendBlocks(ctx context.Context, id string, blocks []Block) error
}

// ClientConfig configures an HTTPClient.
type ClientConfig struct {
	Token      string
	BaseURL    string
	Version    string
	Timeout    time.Duration
	MaxRetries int
}

// HTTPClient implements Client over the REST API.
type HTTPClient struct {
	rest *resty.Client
}

// NewHTTPClient creates a client.
func NewHTTPClient(cfg ClientConfig) *HTTPClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Version == "" {
		cfg.Version = DefaultVersion
	}
	return &HTTPClient{
		rest: transport.NewClient(transport.Config{
			Service:    serviceName,
			BaseURL:    strings.TrimRight(cfg.BaseURL, "/"),
			Token:      cfg.Token,
			Timeout:    cfg.Timeout,
			MaxRetries: cfg.MaxRetries,
			Headers:    map[string]string{"Notion-Version": cfg.Version},
		}),
	}
}

// GetPage implements Client.
func (c *HTTPClient) GetPage(ctx context.Context, id string) (*Page, error) {
	resp, err := c.rest.R().
		SetContext(ctx).
		SetPathParam("id", id).
		Get("/pages/{id}")
	if cerr := transport.Classify(serviceName, resp, err); cerr != nil {
		return nil, cerr
	}

	body := resp.Body()
	page := &Page{
		ID:    gjson.GetBytes(body, "id").String(),
		URL:   gjson.GetBytes(body, "url").String(),
		Title: "Untitled",
	}
	gjson.GetBytes(body, "properties").ForEach(func(_, prop gjson.Result) bool {
		if prop.Get("type").String() != "title" {
			return true
		}
		var sb strings.Builder
		for _, t := range prop.Get("title.#.plain_text").Array() {
			sb.WriteString(t.String())
		}
		if title := strings.TrimSpace(sb.String()); title != "" {
			page.Title = title
		}
		return false
	})
	return page, nil
}

type childrenResponse struct {
	Results    []Block `json:"results"`
	HasMore    bool    `json:"has_more"`
	NextCursor string  `json:"next_cursor"`
}

// GetPageBlocks implements Client. Children of every block that has them
// are fetched depth-first.
func (c *HTTPClient) GetPageBlocks(ctx context.Context, id string) ([]Block, error) {
	blocks, err := c.listChildren(ctx, id)
	if err != nil {
		return nil, err
	}
	for i := range blocks {
		if !blocks[i].HasChildren || blocks[i].Type == TypeChildPage || blocks[i].Type == TypeChildDatabase {
			continue
		}
		children, err := c.GetPageBlocks(ctx, blocks[i].ID)
		if err != nil {
			return nil, fmt.Errorf("children of block %s: %w", blocks[i].ID, err)
		}
		blocks[i].Children = children
	}
	return blocks, nil
}

func (c *HTTPClient) listChildren(ctx context.Context, id string) ([]Block, error) {
	var all []Block
	cursor := ""
	for {
		var page childrenResponse
		req := c.rest.R().
			SetContext(ctx).
			SetPathParam("id", id).
			SetQueryParam("page_size", strconv.Itoa(pageSize)).
			SetResult(&page)
		if cursor != "" {
			req.SetQueryParam("start_cursor", cursor)
		}

		resp, err := req.Get("/blocks/{id}/children")
		if cerr := transport.Classify(serviceName, resp, err); cerr != nil {
			return nil, cerr
		}

		all = append(all, page.Results...)
		if !page.HasMore || page.NextCursor == "" {
			return all, nil
		}
		cursor = page.NextCursor
	}
}

// AppendBlocks implements Client.
func (c *HTTPClient) AppendBlocks(ctx context.Context, id string, blocks []Block) error {
	if len(blocks) > MaxAppendBlocks {
		return errors.NewError(errors.CodeValidation,
			fmt.Sprintf("cannot append %d blocks in one request (max %d)", len(blocks), MaxAppendBlocks), nil)
	}
	resp, err := c.rest.R().
		SetContext(ctx).
		SetPathParam("id", id).
		SetBody(map[string]any{"children": blocks}).
		Patch("/blocks/{id}/children")
	return transport.Classify(serviceName, resp, err)
}
