package detection

import (
	"context"

	"github.com/xanadossd/avscan-core/internal/cerrors"
	"github.com/xanadossd/avscan-core/internal/types"
)

// Classifier scores a byte buffer; MLEngine compares the score with
// MLConfig.Threshold to decide the verdict. No concrete model ships with this repository (spec
// §4.7 calls the ML engine optional); a real model is wired in by
// implementing this function type.
type Classifier func(ctx context.Context, data []byte) (score float64, err error)

// MLConfig configures the optional machine-learning engine.
type MLConfig struct {
	ModelVersion string
	Threshold    float64 // is_malware := score >= Threshold
	Classify     Classifier
}

// MLEngine adapts a Classifier to the Engine interface, reporting its
// confidence score and model version in the verdict's metadata fields.
type MLEngine struct {
	cfg MLConfig
}

// NewMLEngine returns nil if cfg.Classify is nil, signalling to callers
// that no ML backend is configured (the adapter then runs
// signature-only, per spec §4.7's "optional").
func NewMLEngine(cfg MLConfig) *MLEngine {
	if cfg.Classify == nil {
		return nil
	}
	return &MLEngine{cfg: cfg}
}

func (e *MLEngine) IsAvailable(ctx context.Context) bool {
	return e != nil && e.cfg.Classify != nil
}

func (e *MLEngine) EngineVersion(ctx context.Context) (string, string, error) {
	return "ml", e.cfg.ModelVersion, nil
}

func (e *MLEngine) ScanBytes(ctx context.Context, data []byte, pathHint string) (types.Verdict, error) {
	score, err := e.cfg.Classify(ctx, data)
	if err != nil {
		return types.ErrVerdict(cerrors.Wrap(cerrors.KindBackend, "ml classifier", err)), nil
	}
	if score >= e.cfg.Threshold {
		v := types.InfectedVerdict("ML.Detection", types.ThreatMalware, "ml", e.cfg.ModelVersion)
		v.ModelVersion = e.cfg.ModelVersion
		v.Confidence = score
		return v, nil
	}
	v := types.CleanVerdict("ml", e.cfg.ModelVersion)
	v.ModelVersion = e.cfg.ModelVersion
	v.Confidence = score
	return v, nil
}

// UpdateSignatures is a no-op: model updates are out of scope for this
// adapter (spec's non-goal: "ML model training").
func (e *MLEngine) UpdateSignatures(ctx context.Context) (bool, error) {
	return true, nil
}
