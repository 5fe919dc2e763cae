package capture

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigFillsDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "capture.yaml")
	content := `
server:
  base_url: http://backend:9000
  owner_id: 6f1c8f0a-52a7-4b6e-9a7e-3f1d2c4b5a69
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.BaseURL != "http://backend:9000" {
		t.Errorf("base_url = %q", cfg.Server.BaseURL)
	}
	// Unset sections keep defaults.
	if cfg.Recorder.SampleRate != 16000 || cfg.Recorder.Channels != 1 {
		t.Errorf("recorder defaults = %+v", cfg.Recorder)
	}
	if cfg.Poll.Interval != 1 || cfg.Poll.Attempts != 60 {
		t.Errorf("poll defaults = %+v", cfg.Poll)
	}
	if cfg.PollInterval() != time.Second {
		t.Errorf("poll interval = %v", cfg.PollInterval())
	}
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"empty base url": `
server:
  base_url: ""
`,
		"zero poll interval": `
poll:
  interval: 0
`,
		"tiny sample rate": `
recorder:
  sample_rate: 4000
`,
	}
	for name, content := range cases {
		path := filepath.Join(dir, "bad.yaml")
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatalf("write config: %v", err)
		}
		if _, err := Load(path); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
