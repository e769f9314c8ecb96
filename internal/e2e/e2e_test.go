// Package e2e provides end-to-end tests that drive the docsync CLI against
// in-process fakes of both document services.
package e2e

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/cobra"

	"github.com/jbctechsolutions/docsync/internal/infrastructure/config"
	"github.com/jbctechsolutions/docsync/internal/presentation/cli/commands"
)

const (
	pageID      = "1f2e3d4c5b6a47988776655443322110"
	dashedID    = "1f2e3d4c-5b6a-4798-8776-655443322110"
	feishuDocID = "doxcnE2Eroundtrip01"
)

// executeCommand executes a cobra command with the given args and captures output.
func executeCommand(root *cobra.Command, args ...string) (string, error) {
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

// pageService fakes the page API: one page whose children grow on append.
type pageService struct {
	mu       sync.Mutex
	children []json.RawMessage
	appends  int
}

func (s *pageService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/pages/"+dashedID:
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "page",
			"id":     dashedID,
			"properties": map[string]any{
				"Name": map[string]any{"type": "title", "title": []any{map[string]any{"plain_text": "Roadmap"}}},
			},
		})
	case r.Method == http.MethodGet && r.URL.Path == "/blocks/"+dashedID+"/children":
		_ = json.NewEncoder(w).Encode(map[string]any{"results": s.children, "has_more": false})
	case r.Method == http.MethodPatch && r.URL.Path == "/blocks/"+dashedID+"/children":
		var body struct {
			Children []json.RawMessage `json:"children"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		s.children = append(s.children, body.Children...)
		s.appends++
		_ = json.NewEncoder(w).Encode(map[string]any{"object": "list", "results": []any{}})
	default:
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]any{"object": "error", "status": 404, "code": "object_not_found"})
	}
}

// docService fakes the cloud-document API for a single created document.
type docService struct {
	mu       sync.Mutex
	title    string
	children []json.RawMessage
	created  int
}

func (s *docService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reply := func(data any) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"code": 0, "msg": "success", "data": data})
	}
	doc := "/docx/v1/documents/" + feishuDocID

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/docx/v1/documents":
		var body struct {
			Title string `json:"title"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		s.title = body.Title
		s.created++
		reply(map[string]any{"document": map[string]any{"document_id": feishuDocID, "title": body.Title}})
	case r.Method == http.MethodGet && r.URL.Path == doc:
		reply(map[string]any{"document": map[string]any{"document_id": feishuDocID, "title": s.title, "revision_id": 1}})
	case r.Method == http.MethodGet && r.URL.Path == doc+"/blocks":
		items := []json.RawMessage{json.RawMessage(`{"block_id":"` + feishuDocID + `","block_type":1,"page":{}}`)}
		reply(map[string]any{"items": append(items, s.children...), "has_more": false})
	case r.Method == http.MethodPost && r.URL.Path == doc+"/blocks/"+feishuDocID+"/children":
		body, _ := io.ReadAll(r.Body)
		var req struct {
			Children []json.RawMessage `json:"children"`
		}
		_ = json.Unmarshal(body, &req)
		s.children = append(s.children, req.Children...)
		reply(map[string]any{})
	case r.Method == http.MethodGet && r.URL.Path == doc+"/blocks/"+feishuDocID:
		ids := make([]string, len(s.children))
		for i := range ids {
			ids[i] = "blk"
		}
		reply(map[string]any{"block": map[string]any{"block_id": feishuDocID, "children": ids}})
	case r.Method == http.MethodDelete && strings.HasSuffix(r.URL.Path, "/batch_delete"):
		s.children = nil
		reply(map[string]any{})
	default:
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]any{"code": 1770002, "msg": "not found"})
	}
}

type result struct {
	Status        string   `json:"status"`
	Operation     string   `json:"operation"`
	DestinationID string   `json:"destination_id"`
	Committed     int      `json:"committed_count"`
	Total         int      `json:"total_count"`
	Warnings      []string `json:"warnings"`
}

func runSync(t *testing.T, cfgPath string, args ...string) result {
	t.Helper()
	args = append([]string{"sync"}, args...)
	out, err := executeCommand(commands.NewRootCmd(), append(args, "--config", cfgPath, "-o", "json")...)
	if err != nil {
		t.Fatalf("%v: %v\n%s", args, err, out)
	}
	var res result
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	return res
}

// newWorkspace starts both fake services and writes a config that points at
// them, a markdown directory and an SQLite mapping store.
func newWorkspace(t *testing.T, pages *pageService, docs *docService) (string, string) {
	t.Helper()
	for _, env := range []string{config.EnvNotionToken, config.EnvFeishuAccessToken, config.EnvMarkdownDir, config.EnvMappingPath} {
		t.Setenv(env, "")
	}
	t.Cleanup(func() { _ = commands.Shutdown() })

	pageSrv := httptest.NewServer(pages)
	t.Cleanup(pageSrv.Close)
	docSrv := httptest.NewServer(docs)
	t.Cleanup(docSrv.Close)

	dir := t.TempDir()
	mdDir := filepath.Join(dir, "notes")
	if err := os.MkdirAll(mdDir, 0755); err != nil {
		t.Fatal(err)
	}

	cfgPath := filepath.Join(dir, "config.yaml")
	cfg := "notion:\n  token: secret_e2e\n  base_url: " + pageSrv.URL + "\n  max_retries: 0\n" +
		"feishu:\n  access_token: u-e2e\n  base_url: " + docSrv.URL + "\n  max_retries: 0\n" +
		"local:\n  markdown_dir: " + mdDir + "\n" +
		"mapping:\n  backend: sqlite\n  path: " + filepath.Join(dir, "mappings.db") + "\n" +
		"logging:\n  level: error\n"
	if err := os.WriteFile(cfgPath, []byte(cfg), 0600); err != nil {
		t.Fatal(err)
	}
	return cfgPath, mdDir
}

// TestE2E_ThreeWayRoundTrip moves one document local -> page -> cloud doc ->
// local and checks that a single mapping record links all three.
func TestE2E_ThreeWayRoundTrip(t *testing.T) {
	pages := &pageService{}
	docs := &docService{}
	cfgPath, mdDir := newWorkspace(t, pages, docs)

	source := "# Roadmap\n\nShip the **sync** engine.\n\n- first item\n- second item\n\n```go\nfmt.Println(\"hi\")\n```\n"
	mdPath := filepath.Join(mdDir, "roadmap.md")
	if err := os.WriteFile(mdPath, []byte(source), 0644); err != nil {
		t.Fatal(err)
	}

	// local -> page: pages cannot be created, so the target is explicit.
	toPage := runSync(t, cfgPath, "local-to-notion", "roadmap.md", "--to", pageID)
	if toPage.Status != "success" || toPage.Operation != "update" || toPage.DestinationID != dashedID {
		t.Fatalf("local-to-notion = %+v", toPage)
	}
	if toPage.Total != 5 || toPage.Committed != 5 {
		t.Errorf("local-to-notion blocks = %d/%d, want 5/5", toPage.Committed, toPage.Total)
	}
	pages.mu.Lock()
	if len(pages.children) != 5 || pages.appends != 1 {
		t.Errorf("page children = %d in %d appends, want 5 in 1", len(pages.children), pages.appends)
	}
	pages.mu.Unlock()
	if !strings.Contains(strings.Join(toPage.Warnings, "\n"), "append-only") {
		t.Errorf("expected append-only warning, got %v", toPage.Warnings)
	}

	// page -> cloud doc: no linked document yet, so one is created.
	toDoc := runSync(t, cfgPath, "notion-to-feishu", "https://www.notion.so/Roadmap-"+pageID)
	if toDoc.Status != "success" || toDoc.Operation != "create" || toDoc.DestinationID != feishuDocID {
		t.Fatalf("notion-to-feishu = %+v", toDoc)
	}
	docs.mu.Lock()
	if docs.created != 1 || docs.title != "Roadmap" {
		t.Errorf("created=%d title=%q", docs.created, docs.title)
	}
	docs.mu.Unlock()

	// cloud doc -> local: the mapping leads back to the original file.
	if err := os.WriteFile(mdPath, []byte("stale\n"), 0644); err != nil {
		t.Fatal(err)
	}
	toLocal := runSync(t, cfgPath, "feishu-to-markdown", feishuDocID)
	if toLocal.Status != "success" || toLocal.Operation != "update" || toLocal.DestinationID != mdPath {
		t.Fatalf("feishu-to-local = %+v", toLocal)
	}

	got, err := os.ReadFile(mdPath)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"Roadmap", "**sync**", "first item", "second item", `fmt.Println("hi")`} {
		if !strings.Contains(string(got), want) {
			t.Errorf("round-tripped file missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(string(got), "stale") {
		t.Errorf("file was not replaced:\n%s", got)
	}

	// A second publish updates the linked document instead of creating one.
	again := runSync(t, cfgPath, "notion-to-feishu", pageID)
	docs.mu.Lock()
	if again.Operation != "update" || docs.created != 1 || len(docs.children) != 5 {
		t.Errorf("second notion-to-feishu = %+v, created=%d children=%d", again, docs.created, len(docs.children))
	}
	docs.mu.Unlock()

	out, err := executeCommand(commands.NewRootCmd(), "mappings", "--config", cfgPath, "-o", "json")
	if err != nil {
		t.Fatalf("mappings: %v", err)
	}
	var records []map[string]any
	if err := json.Unmarshal([]byte(out), &records); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if len(records) != 1 {
		t.Fatalf("records = %v, want one linked record", records)
	}
	rec := records[0]
	if rec["source_a_id"] != dashedID || rec["source_b_token"] != feishuDocID || rec["local_path"] != mdPath {
		t.Errorf("record = %v", rec)
	}
	if rec["last_synced_direction"] != "a-to-b" {
		t.Errorf("last direction = %v", rec["last_synced_direction"])
	}
}

// TestE2E_NotionToFeishuWithMarkdownCopy publishes a page with --create-md and
// checks that the cloud doc, the Markdown copy and the page share one record.
func TestE2E_NotionToFeishuWithMarkdownCopy(t *testing.T) {
	pages := &pageService{children: []json.RawMessage{
		json.RawMessage(`{"object":"block","id":"h1","type":"heading_1","heading_1":{"rich_text":[{"type":"text","plain_text":"Goals"}]}}`),
		json.RawMessage(`{"object":"block","id":"p1","type":"paragraph","paragraph":{"rich_text":[{"type":"text","plain_text":"Ship it."}]}}`),
	}}
	docs := &docService{}
	cfgPath, mdDir := newWorkspace(t, pages, docs)

	out, err := executeCommand(commands.NewRootCmd(),
		"sync", "notion-to-feishu", pageID, "--create-md", "--config", cfgPath, "-o", "json")
	if err != nil {
		t.Fatalf("sync: %v\n%s", err, out)
	}
	var results []result
	if err := json.Unmarshal([]byte(out), &results); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %+v, want the publish and the Markdown copy", results)
	}
	mdPath := filepath.Join(mdDir, "roadmap.md")
	if results[0].Status != "success" || results[0].DestinationID != feishuDocID {
		t.Errorf("notion-to-feishu = %+v", results[0])
	}
	if results[1].Status != "success" || results[1].Operation != "create" || results[1].DestinationID != mdPath {
		t.Errorf("notion-to-local = %+v", results[1])
	}

	got, err := os.ReadFile(mdPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "# Goals\n\nShip it.\n" {
		t.Errorf("markdown copy = %q", got)
	}

	out, err = executeCommand(commands.NewRootCmd(), "mappings", "--config", cfgPath, "-o", "json")
	if err != nil {
		t.Fatalf("mappings: %v", err)
	}
	var records []map[string]any
	if err := json.Unmarshal([]byte(out), &records); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if len(records) != 1 {
		t.Fatalf("records = %v, want one linked record", records)
	}
	rec := records[0]
	if rec["source_a_id"] != dashedID || rec["source_b_token"] != feishuDocID || rec["local_path"] != mdPath {
		t.Errorf("record = %v", rec)
	}
}

// TestE2E_CLICommands checks help and argument handling without any service.
func TestE2E_CLICommands(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr bool
	}{
		{"version", []string{"version"}, false},
		{"version short", []string{"version", "--short"}, false},
		{"help", []string{"--help"}, false},
		{"sync help", []string{"sync", "--help"}, false},
		{"sync-all help", []string{"sync-all", "--help"}, false},
		{"status help", []string{"status", "--help"}, false},
		{"sync missing args", []string{"sync"}, true},
		{"status missing args", []string{"status", "notion"}, true},
		{"unknown command", []string{"publish"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := executeCommand(commands.NewRootCmd(), tt.args...)
			if (err != nil) != tt.wantErr {
				t.Errorf("error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
