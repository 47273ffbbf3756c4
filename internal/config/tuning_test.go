package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/eventvision/normflow/internal/dvs"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadTuningConfigPartial(t *testing.T) {
	path := writeConfig(t, "tuning.json", `{
		"decay_sec": 0.02,
		"window_radius": 7,
		"extract_interval": "250ms"
	}`)

	cfg, err := LoadTuningConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	want := dvs.DefaultExtractorParams()
	want.DecaySec = 0.02
	want.WindowRadius = 7
	if diff := cmp.Diff(want, cfg.ExtractorParams()); diff != "" {
		t.Errorf("extractor params mismatch (-want +got):\n%s", diff)
	}
	if got := cfg.GetExtractInterval(); got != 250*time.Millisecond {
		t.Errorf("extract interval = %v, want 250ms", got)
	}
	// Unset fields fall back to defaults.
	if got := cfg.GetRefractorySec(); got != 1e-4 {
		t.Errorf("refractory = %v, want 1e-4", got)
	}
}

func TestLoadTuningConfigEmptyKeepsDefaults(t *testing.T) {
	path := writeConfig(t, "tuning.json", `{}`)

	cfg, err := LoadTuningConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if diff := cmp.Diff(dvs.DefaultExtractorParams(), cfg.ExtractorParams()); diff != "" {
		t.Errorf("defaults changed (-want +got):\n%s", diff)
	}
	if got := cfg.GetExtractInterval(); got != 100*time.Millisecond {
		t.Errorf("extract interval = %v, want 100ms", got)
	}
}

func TestLoadTuningConfigRejectsNonJSON(t *testing.T) {
	path := writeConfig(t, "tuning.yaml", `decay_sec: 0.02`)
	if _, err := LoadTuningConfig(path); err == nil {
		t.Error("non-JSON extension accepted")
	}
}

func TestLoadTuningConfigRejectsMissingFile(t *testing.T) {
	if _, err := LoadTuningConfig(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Error("missing file accepted")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"negative refractory": `{"refractory_sec": -0.001}`,
		"zero decay":          `{"decay_sec": 0}`,
		"zero window":         `{"window_radius": 0}`,
		"ratio above one":     `{"min_inlier_ratio": 1.5}`,
		"zero ceiling":        `{"flow_ceiling_px_per_sec": 0}`,
		"bad interval":        `{"extract_interval": "fast"}`,
		"bad json":            `{"decay_sec": }`,
	}
	for name, content := range cases {
		path := writeConfig(t, "tuning.json", content)
		if _, err := LoadTuningConfig(path); err == nil {
			t.Errorf("%s: accepted", name)
		}
	}
}

func TestDefaultsFileLoads(t *testing.T) {
	cfg, err := LoadTuningConfig("../../" + DefaultConfigPath)
	if err != nil {
		t.Fatalf("load defaults file: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults file invalid: %v", err)
	}
}
