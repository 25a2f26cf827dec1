package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte("{}"))
	if err != nil {
		t.Fatal(err)
	}
	yes := true
	want := &Config{
		LogLevel: "info",
		Primary: PrimaryConfig{
			QueueSize: 1024,
			Sinks:     []SinkConfig{{Type: "stdout", Retries: 3}},
		},
		Replica: ReplicaConfig{
			Listen:       ":8089",
			InertScripts: &yes,
			SanitizeView: &yes,
			MaxBody:      8 << 20,
		},
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("defaults (-want +got):\n%s", diff)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dommirror.yaml")
	data := `
log_level: debug
primary:
  root_id: page-1
  queue_size: 16
  sinks:
    - type: webhook
      url: http://replica:8089/roots/{root}/records
replica:
  listen: "127.0.0.1:9000"
  sanitize_view: false
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LogLevel != "debug" || cfg.Primary.RootID != "page-1" || cfg.Primary.QueueSize != 16 {
		t.Errorf("primary: got %+v", cfg.Primary)
	}
	if got := cfg.Primary.Sinks[0]; got.Type != "webhook" || got.Retries != 3 {
		t.Errorf("sink: got %+v", got)
	}
	if *cfg.Replica.SanitizeView {
		t.Error("sanitize_view: got true, want false")
	}
	if !*cfg.Replica.InertScripts {
		t.Error("inert_scripts: got false, want true")
	}
	if cfg.Replica.Listen != "127.0.0.1:9000" {
		t.Errorf("listen: got %q", cfg.Replica.Listen)
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"unknown sink", "primary: {sinks: [{type: nats}]}"},
		{"webhook without url", "primary: {sinks: [{type: webhook}]}"},
		{"journal without path", "primary: {sinks: [{type: journal}]}"},
		{"bad yaml", "primary: ["},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.data)); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestLoadFile_Missing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected an error")
	}
}
