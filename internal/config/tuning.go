package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/eventvision/normflow/internal/dvs"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig represents the root configuration for extraction tuning
// parameters. The schema matches the /api/flow/params endpoint so the same
// JSON can be used for both startup configuration and runtime updates.
type TuningConfig struct {
	// Surface params
	RefractorySec *float64 `json:"refractory_sec,omitempty"`
	DecaySec      *float64 `json:"decay_sec,omitempty"`

	// Extraction params
	WindowRadius          *int     `json:"window_radius,omitempty"`
	NeighborDist          *int     `json:"neighbor_dist,omitempty"`
	MinInlierRatio        *float64 `json:"min_inlier_ratio,omitempty"`
	PlaneDistThresholdSec *float64 `json:"plane_dist_threshold_sec,omitempty"`
	RansacMaxIter         *int     `json:"ransac_max_iter,omitempty"`
	FlowCeilingPxPerSec   *float64 `json:"flow_ceiling_px_per_sec,omitempty"`
	RansacSeed            *int64   `json:"ransac_seed,omitempty"`

	// Pipeline params
	ExtractInterval *string `json:"extract_interval,omitempty"` // duration string like "100ms"
}

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the
// max file size. Fields omitted from the JSON file retain their default
// values, so partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse JSON into empty config. The Get* methods provide fallback
	// defaults for any fields not specified in the JSON.
	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.RefractorySec != nil && *c.RefractorySec < 0 {
		return fmt.Errorf("refractory_sec must be non-negative, got %f", *c.RefractorySec)
	}
	if c.DecaySec != nil && *c.DecaySec <= 0 {
		return fmt.Errorf("decay_sec must be positive, got %f", *c.DecaySec)
	}
	if c.WindowRadius != nil && *c.WindowRadius < 1 {
		return fmt.Errorf("window_radius must be at least 1, got %d", *c.WindowRadius)
	}
	if c.NeighborDist != nil && *c.NeighborDist < 0 {
		return fmt.Errorf("neighbor_dist must be non-negative, got %d", *c.NeighborDist)
	}
	if c.MinInlierRatio != nil {
		if *c.MinInlierRatio <= 0 || *c.MinInlierRatio > 1 {
			return fmt.Errorf("min_inlier_ratio must be in (0,1], got %f", *c.MinInlierRatio)
		}
	}
	if c.PlaneDistThresholdSec != nil && *c.PlaneDistThresholdSec <= 0 {
		return fmt.Errorf("plane_dist_threshold_sec must be positive, got %f", *c.PlaneDistThresholdSec)
	}
	if c.RansacMaxIter != nil && *c.RansacMaxIter < 1 {
		return fmt.Errorf("ransac_max_iter must be at least 1, got %d", *c.RansacMaxIter)
	}
	if c.FlowCeilingPxPerSec != nil && *c.FlowCeilingPxPerSec <= 0 {
		return fmt.Errorf("flow_ceiling_px_per_sec must be positive, got %f", *c.FlowCeilingPxPerSec)
	}
	if c.ExtractInterval != nil && *c.ExtractInterval != "" {
		if _, err := time.ParseDuration(*c.ExtractInterval); err != nil {
			return fmt.Errorf("invalid extract_interval '%s': %w", *c.ExtractInterval, err)
		}
	}
	return nil
}

// GetRefractorySec returns the refractory_sec value or the default.
func (c *TuningConfig) GetRefractorySec() float64 {
	if c.RefractorySec == nil {
		return 1e-4 // default
	}
	return *c.RefractorySec
}

// GetExtractInterval parses and returns the ExtractInterval as a
// time.Duration.
func (c *TuningConfig) GetExtractInterval() time.Duration {
	if c.ExtractInterval == nil || *c.ExtractInterval == "" {
		return 100 * time.Millisecond // default
	}
	d, err := time.ParseDuration(*c.ExtractInterval)
	if err != nil {
		return 100 * time.Millisecond // default on parse error
	}
	return d
}

// ExtractorParams merges the configured values over the extraction defaults.
func (c *TuningConfig) ExtractorParams() dvs.ExtractorParams {
	p := dvs.DefaultExtractorParams()
	if c.DecaySec != nil {
		p.DecaySec = *c.DecaySec
	}
	if c.WindowRadius != nil {
		p.WindowRadius = *c.WindowRadius
	}
	if c.NeighborDist != nil {
		p.NeighborDist = *c.NeighborDist
	}
	if c.MinInlierRatio != nil {
		p.GoodRatio = *c.MinInlierRatio
	}
	if c.PlaneDistThresholdSec != nil {
		p.PlaneDistSec = *c.PlaneDistThresholdSec
	}
	if c.RansacMaxIter != nil {
		p.RansacMaxIter = *c.RansacMaxIter
	}
	if c.FlowCeilingPxPerSec != nil {
		p.FlowCeilPxPerSec = *c.FlowCeilingPxPerSec
	}
	if c.RansacSeed != nil {
		p.Seed = *c.RansacSeed
	}
	return p
}
