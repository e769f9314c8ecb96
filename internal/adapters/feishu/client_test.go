package feishu

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jbctechsolutions/docsync/internal/application/ports"
	"github.com/jbctechsolutions/docsync/internal/domain/block"
	"github.com/jbctechsolutions/docsync/internal/domain/errors"
)

const testToken = "doxcnAbCdEf123456"

func newTestServer(t *testing.T, handler http.HandlerFunc) *HTTPClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewHTTPClient(ClientConfig{AccessToken: "tenant-token", BaseURL: server.URL})
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func TestHTTPClient_GetDocument(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/docx/v1/documents/"+testToken {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tenant-token" {
			t.Errorf("Authorization = %q", got)
		}
		writeJSON(w, http.StatusOK, `{"code":0,"msg":"success","data":{"document":{"document_id":"`+testToken+`","revision_id":7,"title":"Weekly"}}}`)
	})

	doc, err := client.GetDocument(context.Background(), testToken)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Title != "Weekly" || doc.RevisionID != 7 {
		t.Errorf("document = %+v", doc)
	}
}

func TestHTTPClient_GetDocumentBlocks_Paginates(t *testing.T) {
	calls := 0
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.URL.Query().Get("page_size") != "500" {
			t.Errorf("page_size = %q", r.URL.Query().Get("page_size"))
		}
		if r.URL.Query().Get("page_token") == "" {
			writeJSON(w, http.StatusOK, `{"code":0,"data":{"has_more":true,"page_token":"next","items":[
				{"block_id":"root","block_type":1,"page":{"elements":[]}},
				{"block_id":"a","block_type":12,"bullet":{"elements":[{"text_run":{"content":"a"}}]}}
			]}}`)
			return
		}
		writeJSON(w, http.StatusOK, `{"code":0,"data":{"has_more":false,"items":[
			{"block_id":"b","block_type":12,"indent_level":1,"bullet":{"elements":[{"text_run":{"content":"b"}}]}}
		]}}`)
	})

	blocks, err := client.GetDocumentBlocks(context.Background(), testToken)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 2 || len(blocks) != 3 {
		t.Fatalf("calls = %d, blocks = %d", calls, len(blocks))
	}

	got, _ := NewConverter().ToCanonical(blocks)
	want := []block.Block{block.Item(block.KindBulletedItem, "a", block.Item(block.KindBulletedItem, "b"))}
	if !block.Equal(got, want) {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestHTTPClient_CreateDocument(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if r.Method != http.MethodPost || body["title"] != "Notes" || body["folder_token"] != "fldcn1" {
			t.Errorf("unexpected request %s %v", r.Method, body)
		}
		writeJSON(w, http.StatusOK, `{"code":0,"data":{"document":{"document_id":"doxcnNew12345"}}}`)
	})

	id, err := client.CreateDocument(context.Background(), "Notes", "fldcn1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "doxcnNew12345" {
		t.Errorf("id = %q", id)
	}
}

func TestHTTPClient_WriteBlocks(t *testing.T) {
	var received struct {
		Children []json.RawMessage `json:"children"`
		Index    int               `json:"index"`
	}
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/docx/v1/documents/"+testToken+"/blocks/"+testToken+"/children" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.URL.Query().Get("document_revision_id") != "-1" {
			t.Errorf("missing revision query")
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode body: %v", err)
		}
		writeJSON(w, http.StatusOK, `{"code":0,"data":{}}`)
	})

	natives, _ := NewConverter().FromCanonical([]block.Block{block.Paragraph("a"), block.Paragraph("b")})
	if err := client.WriteBlocks(context.Background(), testToken, 50, natives); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(received.Children) != 2 || received.Index != 50 {
		t.Errorf("children = %d, index = %d", len(received.Children), received.Index)
	}
}

func TestHTTPClient_WriteBlocks_RejectsOversizedWindow(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})

	err := client.WriteBlocks(context.Background(), testToken, 0, make([]Block, MaxWriteBlocks+1))
	if errors.CodeOf(err) != errors.CodeValidation {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestHTTPClient_ClearDocument(t *testing.T) {
	var deleted map[string]int
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, http.StatusOK, `{"code":0,"data":{"block":{"block_id":"`+testToken+`","block_type":1,"children":["a","b","c"]}}}`)
		case http.MethodDelete:
			if err := json.NewDecoder(r.Body).Decode(&deleted); err != nil {
				t.Errorf("decode body: %v", err)
			}
			writeJSON(w, http.StatusOK, `{"code":0,"data":{}}`)
		}
	})

	if err := client.ClearDocument(context.Background(), testToken); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deleted["start_index"] != 0 || deleted["end_index"] != 3 {
		t.Errorf("batch delete range = %v", deleted)
	}
}

func TestHTTPClient_ErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		target error
		code   errors.ErrorCode
	}{
		{"envelope not found", http.StatusOK, `{"code":1770002,"msg":"not found"}`, errors.ErrSourceNotFound, errors.CodeSourceNotFound},
		{"expired token", http.StatusOK, `{"code":99991677,"msg":"token expired"}`, errors.ErrUnauthorized, errors.CodeUnauthorized},
		{"http forbidden", http.StatusForbidden, `{"code":1770032,"msg":"forbidden"}`, errors.ErrUnauthorized, errors.CodeUnauthorized},
		{"unknown code", http.StatusOK, `{"code":1770001,"msg":"invalid param"}`, nil, errors.CodeValidation},
		{"no envelope", http.StatusNotFound, `404 page not found`, errors.ErrSourceNotFound, errors.CodeSourceNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, tt.body)
			})

			_, err := client.GetDocument(context.Background(), testToken)
			if got := errors.CodeOf(err); got != tt.code {
				t.Errorf("code = %s, want %s (%v)", got, tt.code, err)
			}
			if tt.target != nil && !errors.Is(err, tt.target) {
				t.Errorf("expected %v, got %v", tt.target, err)
			}
		})
	}
}

func TestNormalizeID(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{testToken, testToken, false},
		{"https://example.feishu.cn/docx/" + testToken, testToken, false},
		{"https://example.feishu.cn/docx/" + testToken + "/?from=share", testToken, false},
		{"  " + testToken + " ", testToken, false},
		{"", "", true},
		{"bad token!", "", true},
	}
	for _, tt := range tests {
		got, err := NormalizeID(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("NormalizeID(%q) error = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("NormalizeID(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

type fakeClient struct {
	cleared bool
	writes  []int
	folder  string
}

func (f *fakeClient) GetDocument(context.Context, string) (*Document, error) {
	return &Document{Title: "T"}, nil
}

func (f *fakeClient) GetDocumentBlocks(context.Context, string) ([]Block, error) {
	return []Block{textBlock(TypeText, 0, "hello")}, nil
}

func (f *fakeClient) CreateDocument(_ context.Context, _, folder string) (string, error) {
	f.folder = folder
	return "doxcnCreated1", nil
}

func (f *fakeClient) WriteBlocks(_ context.Context, _ string, index int, blocks []Block) error {
	f.writes = append(f.writes, index, len(blocks))
	return nil
}

func (f *fakeClient) ClearDocument(context.Context, string) error {
	f.cleared = true
	return nil
}

func TestEndpoint(t *testing.T) {
	fake := &fakeClient{}
	ep := NewEndpoint(fake, 500, "fldcnDefault")
	ctx := context.Background()

	if ep.WindowSize() != MaxWriteBlocks || ep.WriteMode() != ports.WriteReplace {
		t.Errorf("window = %d, mode = %s", ep.WindowSize(), ep.WriteMode())
	}

	doc, err := ep.Fetch(ctx, testToken)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	blocks, _ := ep.ToCanonical(doc)
	if !block.Equal(blocks, []block.Block{block.Paragraph("hello")}) {
		t.Errorf("ToCanonical = %+v", blocks)
	}

	if _, err := ep.Create(ctx, "T", ""); err != nil || fake.folder != "fldcnDefault" {
		t.Errorf("Create used folder %q, err %v", fake.folder, err)
	}
	if err := ep.Clear(ctx, testToken); err != nil || !fake.cleared {
		t.Errorf("Clear did not clear: %v", err)
	}

	enc, _ := ep.Encode([]block.Block{block.Paragraph("a"), block.Paragraph("b"), block.Paragraph("c")}, "T")
	if err := ep.WriteWindow(ctx, testToken, enc, 1, 3); err != nil {
		t.Fatalf("WriteWindow: %v", err)
	}
	if len(fake.writes) != 2 || fake.writes[0] != 1 || fake.writes[1] != 2 {
		t.Errorf("writes = %v", fake.writes)
	}
}
