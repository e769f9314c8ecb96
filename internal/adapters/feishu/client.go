package feishu

import (
	"context"
	"encoding/json"
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
	// DefaultBaseURL is the public open API endpoint.
	DefaultBaseURL = "https://open.feishu.cn/open-apis"

	serviceName = "feishu"
	pageSize    = 500
)

// Client is the subset of the document service API the sync engine needs.
type Client interface {
	// GetDocument returns document metadata.
	GetDocument(ctx context.Context, token string) (*Document, error)

	// GetDocumentBlocks returns every block of the document in order.
	GetDocumentBlocks(ctx context.Context, token string) ([]Block, error)

	// CreateDocument creates an empty document and returns its token.
	CreateDocument(ctx context.Context, title, folderToken string) (string, error)

	// WriteBlocks inserts one window of at most MaxWriteBlocks blocks under
	// the document root at index.
	WriteBlocks(ctx context.Context, token string, index int, blocks []Block) error

	// ClearDocument removes every block under the document root.
	ClearDocument(ctx context.Context, token string) error
}

// ClientConfig configures an HTTPClient.
type ClientConfig struct {
	AccessToken string
	BaseURL     string
	Timeout     time.Duration
	MaxRetries  int
}

// HTTPClient implements Client over the open API.
type HTTPClient struct {
	rest *resty.Client
}

// NewHTTPClient creates a client.
func NewHTTPClient(cfg ClientConfig) *HTTPClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	return &HTTPClient{
		rest: transport.NewClient(transport.Config{
			Service:    serviceName,
			BaseURL:    strings.TrimRight(cfg.BaseURL, "/"),
			Token:      cfg.AccessToken,
			Timeout:    cfg.Timeout,
			MaxRetries: cfg.MaxRetries,
		}),
	}
}

// GetDocument implements Client.
func (c *HTTPClient) GetDocument(ctx context.Context, token string) (*Document, error) {
	resp, err := c.rest.R().
		SetContext(ctx).
		SetPathParam("token", token).
		Get("/docx/v1/documents/{token}")
	data, err := envelope(resp, err)
	if err != nil {
		return nil, err
	}
	return &Document{
		ID:         data.Get("document.document_id").String(),
		Title:      data.Get("document.title").String(),
		RevisionID: data.Get("document.revision_id").Int(),
	}, nil
}

// GetDocumentBlocks implements Client.
func (c *HTTPClient) GetDocumentBlocks(ctx context.Context, token string) ([]Block, error) {
	var all []Block
	pageToken := ""
	for {
		req := c.rest.R().
			SetContext(ctx).
			SetPathParam("token", token).
			SetQueryParam("page_size", strconv.Itoa(pageSize))
		if pageToken != "" {
			req.SetQueryParam("page_token", pageToken)
		}

		resp, err := req.Get("/docx/v1/documents/{token}/blocks")
		data, err := envelope(resp, err)
		if err != nil {
			return nil, err
		}

		var items []Block
		if raw := data.Get("items"); raw.Exists() {
			if err := json.Unmarshal([]byte(raw.Raw), &items); err != nil {
				return nil, errors.NewError(errors.CodeValidation, "malformed block list", err)
			}
		}
		all = append(all, items...)

		pageToken = data.Get("page_token").String()
		if !data.Get("has_more").Bool() || pageToken == "" {
			return all, nil
		}
	}
}

// CreateDocument implements Client.
func (c *HTTPClient) CreateDocument(ctx context.Context, title, folderToken string) (string, error) {
	body := map[string]string{"title": title}
	if folderToken != "" {
		body["folder_token"] = folderToken
	}
	resp, err := c.rest.R().
		SetContext(ctx).
		SetBody(body).
		Post("/docx/v1/documents")
	data, err := envelope(resp, err)
	if err != nil {
		return "", err
	}
	id := data.Get("document.document_id").String()
	if id == "" {
		return "", errors.NewError(errors.CodeValidation, "create document returned no document id", nil)
	}
	return id, nil
}

// WriteBlocks implements Client.
func (c *HTTPClient) WriteBlocks(ctx context.Context, token string, index int, blocks []Block) error {
	if len(blocks) > MaxWriteBlocks {
		return errors.NewError(errors.CodeValidation,
			fmt.Sprintf("cannot write %d blocks in one request (max %d)", len(blocks), MaxWriteBlocks), nil)
	}
	resp, err := c.rest.R().
		SetContext(ctx).
		SetPathParam("token", token).
		SetQueryParam("document_revision_id", "-1").
		SetBody(map[string]any{"children": blocks, "index": index}).
		Post("/docx/v1/documents/{token}/blocks/{token}/children")
	_, err = envelope(resp, err)
	return err
}

// ClearDocument implements Client.
func (c *HTTPClient) ClearDocument(ctx context.Context, token string) error {
	resp, err := c.rest.R().
		SetContext(ctx).
		SetPathParam("token", token).
		Get("/docx/v1/documents/{token}/blocks/{token}")
	data, err := envelope(resp, err)
	if err != nil {
		return err
	}
	n := len(data.Get("block.children").Array())
	if n == 0 {
		return nil
	}

	resp, err = c.rest.R().
		SetContext(ctx).
		SetPathParam("token", token).
		SetQueryParam("document_revision_id", "-1").
		SetBody(map[string]int{"start_index": 0, "end_index": n}).
		Delete("/docx/v1/documents/{token}/blocks/{token}/children/batch_delete")
	_, err = envelope(resp, err)
	return err
}

// Service error codes carried in the response envelope.
const (
	codeTokenMissing     = 99991661
	codeTokenInvalid     = 99991663
	codeUserTokenInvalid = 99991668
	codeTokenExpired     = 99991677
	codeRateLimited      = 99991400
	codeForbidden        = 1770032
	codeNotFound         = 1770002
	codeDeleted          = 1770003
)

// envelope checks the {code, msg, data} response wrapper and returns data.
// The service reports most failures through code even on HTTP 200.
func envelope(resp *resty.Response, err error) (gjson.Result, error) {
	if err != nil {
		return gjson.Result{}, transport.FromTransportError(serviceName, err)
	}
	body := resp.Body()
	code := gjson.GetBytes(body, "code")
	if !code.Exists() {
		if cerr := transport.Classify(serviceName, resp, nil); cerr != nil {
			return gjson.Result{}, cerr
		}
		return gjson.Result{}, errors.NewError(errors.CodeValidation, "response has no envelope", nil)
	}
	if code.Int() == 0 && !resp.IsError() {
		return gjson.GetBytes(body, "data"), nil
	}
	return gjson.Result{}, fromCode(code.Int(), gjson.GetBytes(body, "msg").String(), resp.StatusCode())
}

func fromCode(code int64, msg string, status int) *errors.SyncError {
	cause := fmt.Errorf("code %d: %s", code, msg)
	switch code {
	case codeTokenMissing, codeTokenInvalid, codeUserTokenInvalid, codeTokenExpired, codeForbidden:
		return errors.Unauthorized(serviceName, cause)
	case codeNotFound, codeDeleted:
		return errors.NewError(errors.CodeSourceNotFound, serviceName+" document not found", cause)
	case codeRateLimited:
		return errors.NewError(errors.CodeTransient, serviceName+" rate limit exceeded", cause)
	}
	if status >= 400 {
		return transport.FromStatus(serviceName, status, cause.Error())
	}
	return errors.NewError(errors.CodeValidation, serviceName+" rejected the request", cause)
}
