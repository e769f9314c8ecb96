package notion

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jbctechsolutions/docsync/internal/domain/block"
	"github.com/jbctechsolutions/docsync/internal/domain/errors"
)

const testPageID = "2ef23f59-ade0-8042-9292-ef494b71833a"

func newTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *HTTPClient) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client := NewHTTPClient(ClientConfig{Token: "secret", BaseURL: server.URL})
	return server, client
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func TestHTTPClient_GetPage(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/pages/"+testPageID {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Notion-Version"); got != DefaultVersion {
			t.Errorf("Notion-Version = %q", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("Authorization = %q", got)
		}
		writeJSON(w, http.StatusOK, `{"id":"`+testPageID+`","url":"https://notion.test/p",
			"properties":{"Status":{"type":"select"},"Name":{"type":"title","title":[{"plain_text":"Design "},{"plain_text":"Notes"}]}}}`)
	})

	page, err := client.GetPage(context.Background(), testPageID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.Title != "Design Notes" {
		t.Errorf("Title = %q", page.Title)
	}
}

func TestHTTPClient_GetPageBlocks_PaginatesAndRecurses(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/blocks/" + testPageID + "/children":
			if r.URL.Query().Get("start_cursor") == "" {
				writeJSON(w, http.StatusOK, `{"results":[
					{"id":"p1","type":"paragraph","paragraph":{"rich_text":[{"plain_text":"one"}]}}
				],"has_more":true,"next_cursor":"c2"}`)
				return
			}
			writeJSON(w, http.StatusOK, `{"results":[
				{"id":"li","type":"bulleted_list_item","has_children":true,"bulleted_list_item":{"rich_text":[{"plain_text":"two"}]}}
			],"has_more":false,"next_cursor":null}`)
		case "/blocks/li/children":
			writeJSON(w, http.StatusOK, `{"results":[
				{"id":"c1","type":"paragraph","paragraph":{"rich_text":[{"plain_text":"child"}]}}
			],"has_more":false}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})

	blocks, err := client.GetPageBlocks(context.Background(), testPageID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, _ := NewConverter().ToCanonical(blocks)
	want := []block.Block{
		block.Paragraph("one"),
		block.Item(block.KindBulletedItem, "two", block.Paragraph("child")),
	}
	if !block.Equal(got, want) {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestHTTPClient_AppendBlocks(t *testing.T) {
	var received struct {
		Children []json.RawMessage `json:"children"`
	}
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch {
			t.Errorf("method = %s, want PATCH", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode body: %v", err)
		}
		writeJSON(w, http.StatusOK, `{"results":[]}`)
	})

	natives, _ := NewConverter().FromCanonical([]block.Block{block.Paragraph("a"), block.Paragraph("b")})
	if err := client.AppendBlocks(context.Background(), testPageID, natives); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(received.Children) != 2 {
		t.Errorf("expected 2 children, got %d", len(received.Children))
	}
}

func TestHTTPClient_AppendBlocks_RejectsOversizedWindow(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})

	blocks := make([]Block, MaxAppendBlocks+1)
	err := client.AppendBlocks(context.Background(), testPageID, blocks)
	if errors.CodeOf(err) != errors.CodeValidation {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestHTTPClient_ErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		target error
	}{
		{"not found", http.StatusNotFound, errors.ErrSourceNotFound},
		{"unauthorized", http.StatusUnauthorized, errors.ErrUnauthorized},
		{"rate limited", http.StatusTooManyRequests, errors.ErrTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, `{"object":"error","message":"nope"}`)
			})

			_, err := client.GetPage(context.Background(), testPageID)
			if !errors.Is(err, tt.target) {
				t.Errorf("expected %v, got %v", tt.target, err)
			}
		})
	}
}
