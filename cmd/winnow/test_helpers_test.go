package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
)

// Model aliases used by the stub backend. The handler switches on them to
// play the right tier.
const (
	testFastModel = "fast-model"
	testMidModel  = "mid-model"
	testHighModel = "high-model"
)

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	if configPath != "" {
		args = append([]string{"--config", configPath}, args...)
	}
	if args == nil {
		// SetArgs(nil) would fall back to os.Args.
		args = []string{}
	}
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

// isolateConfig keeps the test from reading the host user's real config.
func isolateConfig(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("WINNOW_CONFIG", "")
	return home
}

func writeTestConfig(t *testing.T, dir, baseURL string, extra string) string {
	t.Helper()
	content := fmt.Sprintf(`[inference]
provider = "ollama"
fast_model = %q
mid_model = %q
high_model = %q
timeout_seconds = 5
retry_attempts = 1
retry_base_delay_ms = 1
retry_max_delay_ms = 2

[ollama]
base_url = %q

[pipeline]
scan_concurrency = 2
extract_concurrency = 1
max_selected = 4

[logging]
format = "console"
level = "error"
`, testFastModel, testMidModel, testHighModel, baseURL)
	if extra != "" {
		content += "\n" + extra + "\n"
	}
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func writeCorpusFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir corpus: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write corpus file: %v", err)
	}
}

// chatCounts tracks per-tier traffic so tests can assert which models a
// command actually called.
type chatCounts struct {
	fast atomic.Int64
	mid  atomic.Int64
	high atomic.Int64
}

func (c *chatCounts) total() int64 {
	return c.fast.Load() + c.mid.Load() + c.high.Load()
}

// newStubBackend serves canned answers that walk a single-document corpus
// through every stage.
func newStubBackend(t *testing.T, counts *chatCounts) *httptest.Server {
	t.Helper()
	return newScriptedBackend(t, counts, func(model, user string) string {
		switch model {
		case testFastModel:
			return "Lists the launch window dates and the go/no-go call."
		case testMidModel:
			return `["plan.txt_s1"]`
		default:
			if strings.Contains(user, "EXTRACTED EVIDENCE") {
				return `The launch window opens on March 15 [plan.txt_s1 : "window opens on March 15"].`
			}
			return "The launch window opens on March 15 and closes on March 22."
		}
	})
}

// newScriptedBackend serves the two Ollama endpoints the CLI touches: /api/chat
// answered by respond, and /api/tags listing all three tier models. Per-model
// call counting happens here so scripts stay pure.
func newScriptedBackend(t *testing.T, counts *chatCounts, respond func(model, user string) string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			writeStubJSON(t, w, map[string]any{"models": []map[string]string{
				{"name": testFastModel},
				{"name": testMidModel},
				{"name": testHighModel},
			}})
		case "/api/chat":
			var req struct {
				Model    string `json:"model"`
				Messages []struct {
					Role    string `json:"role"`
					Content string `json:"content"`
				} `json:"messages"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			var user string
			if len(req.Messages) > 0 {
				user = req.Messages[len(req.Messages)-1].Content
			}
			switch req.Model {
			case testFastModel:
				counts.fast.Add(1)
			case testMidModel:
				counts.mid.Add(1)
			case testHighModel:
				counts.high.Add(1)
			default:
				http.Error(w, "unknown model", http.StatusBadRequest)
				return
			}
			writeStubJSON(t, w, map[string]any{
				"message": map[string]string{"role": "assistant", "content": respond(req.Model, user)},
				"done":    true,
			})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func writeStubJSON(t *testing.T, w http.ResponseWriter, payload any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		t.Errorf("encode stub response: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
