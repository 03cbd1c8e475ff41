package cli

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"trivia-quiz-service/internal/domain"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestTemplatesCommandListsCatalogue(t *testing.T) {
	path := writeConfig(t, "log:\n  level: error\n")

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"templates", "--config", path})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("templates: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) < 2 || !strings.HasPrefix(lines[0], "ID") {
		t.Fatalf("unexpected output %q", out.String())
	}
	if !strings.Contains(out.String(), "geography") {
		t.Fatalf("expected geography templates in %q", out.String())
	}
}

func TestGenerateCommandPrintsQuestion(t *testing.T) {
	sparqlServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/sparql-results+json")
		_, _ = w.Write([]byte(`{"results":{"bindings":[
			{"label":{"type":"literal","value":"Madrid"}},
			{"label":{"type":"literal","value":"Paris"}},
			{"label":{"type":"literal","value":"Rome"}},
			{"label":{"type":"literal","value":"Berlin"}}
		]}}`))
	}))
	defer sparqlServer.Close()

	path := writeConfig(t, "log:\n  level: error\nsparql:\n  endpoint: \""+sparqlServer.URL+"\"\ncache:\n  ttl: \"0s\"\n")

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"generate", "--config", path, "--topics", "geography", "--lang", "es"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("generate: %v", err)
	}

	var q domain.GeneratedQuestion
	if err := json.Unmarshal(out.Bytes(), &q); err != nil {
		t.Fatalf("decode output %q: %v", out.String(), err)
	}
	if q.Language != domain.LanguageES || len(q.Options) != 4 {
		t.Fatalf("unexpected question %+v", q)
	}
}

func TestGenerateCommandRejectsLanguage(t *testing.T) {
	path := writeConfig(t, "log:\n  level: error\n")

	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"generate", "--config", path, "--lang", "fr"})
	if err := cmd.Execute(); err == nil {
		t.Fatalf("expected unsupported language error")
	}
}
