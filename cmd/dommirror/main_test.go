package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hazyhaar/dommirror/mirror"
	"github.com/hazyhaar/dommirror/transport"
)

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func writeFile(t *testing.T, name, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestSnapshotThenReplay(t *testing.T) {
	page := writeFile(t, "page.html", `<!DOCTYPE html><html><head><title>t</title></head><body><p class="x">hi</p><script>alert(1)</script></body></html>`)
	cfg, err := loadConfig("")
	if err != nil {
		t.Fatal(err)
	}
	cfg.Primary.RootID = "cli"

	var out bytes.Buffer
	if err := runSnapshot(context.Background(), quiet(), cfg, page, &out); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out.String(), `{"type":"snapshot","root":"cli"`) {
		t.Fatalf("snapshot output: got %s", out.String())
	}

	records := writeFile(t, "records.jsonl", out.String()+
		`{"type":"record","root":"cli","record":{"targetPath":[0,1,0],"prop":["classList","add"],"args":["y"]}}`+"\n")
	var rendered bytes.Buffer
	if err := runReplay(context.Background(), quiet(), records, "", &rendered); err != nil {
		t.Fatal(err)
	}
	got := rendered.String()
	if !strings.Contains(got, `<p class="x y">hi</p>`) {
		t.Errorf("replica: got %s", got)
	}
	if !strings.Contains(got, `type="text/x-dommirror-inert"`) {
		t.Errorf("script not neutralised: %s", got)
	}
}

func TestReplayReportsLine(t *testing.T) {
	records := writeFile(t, "records.jsonl", "\n"+`{"type":"record","root":"r","record":{"targetPath":[9],"prop":"remove","args":[]}}`+"\n")
	err := runReplay(context.Background(), quiet(), records, "", io.Discard)
	if err == nil || !strings.Contains(err.Error(), "records.jsonl:2") {
		t.Errorf("got %v, want an error naming line 2", err)
	}
}

func TestSnapshotNeedsHTML(t *testing.T) {
	cfg, _ := loadConfig("")
	if err := runSnapshot(context.Background(), quiet(), cfg, "", io.Discard); err == nil {
		t.Error("expected an error")
	}
}

func TestBuildSinks(t *testing.T) {
	cfg, err := mirror.ParseConfig([]byte(`
primary:
  sinks:
    - type: stdout
    - type: webhook
      url: http://127.0.0.1:1/roots/{root}/records
`))
	if err != nil {
		t.Fatal(err)
	}
	sink, err := buildSinks(quiet(), cfg, io.Discard)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := sink.(*transport.Router); !ok {
		t.Errorf("two sinks: got %T, want a router", sink)
	}
	cfg.Primary.Sinks = cfg.Primary.Sinks[:1]
	sink, err = buildSinks(quiet(), cfg, io.Discard)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := sink.(*transport.Stdout); !ok {
		t.Errorf("one stdout sink: got %T", sink)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
		"":      slog.LevelInfo,
	}
	for in, want := range tests {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q): got %v, want %v", in, got, want)
		}
	}
}

func TestJournalRoundTrip(t *testing.T) {
	page := writeFile(t, "page.html", `<!DOCTYPE html><html><head></head><body><p>journal</p></body></html>`)
	db := filepath.Join(t.TempDir(), "session.db")
	cfg, err := mirror.ParseConfig([]byte("primary:\n  root_id: j1\n  sinks:\n    - type: journal\n      path: " + db + "\n"))
	if err != nil {
		t.Fatal(err)
	}
	if err := runSnapshot(context.Background(), quiet(), cfg, page, io.Discard); err != nil {
		t.Fatal(err)
	}

	var rendered bytes.Buffer
	if err := runJournalReplay(context.Background(), quiet(), db, "", &rendered); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(rendered.String(), "<p>journal</p>") {
		t.Errorf("replica: got %s", rendered.String())
	}
}
