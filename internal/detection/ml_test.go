package detection

import (
	"context"
	"testing"

	"github.com/xanadossd/avscan-core/internal/types"
)

func TestNewMLEngineNilWithoutClassifier(t *testing.T) {
	if NewMLEngine(MLConfig{}) != nil {
		t.Fatal("expected nil engine when no Classify func is configured")
	}
}

func TestMLEngineScanBytesAboveThreshold(t *testing.T) {
	e := NewMLEngine(MLConfig{
		ModelVersion: "v1",
		Threshold:    0.5,
		Classify: func(ctx context.Context, data []byte) (float64, error) {
			return 0.9, nil
		},
	})
	v, err := e.ScanBytes(context.Background(), []byte("x"), "x")
	if err != nil {
		t.Fatalf("ScanBytes: %v", err)
	}
	if v.Kind != types.Infected {
		t.Errorf("expected Infected, got %v", v.Kind)
	}
	if v.Confidence != 0.9 {
		t.Errorf("expected confidence 0.9, got %v", v.Confidence)
	}
}

func TestMLEngineScanBytesBelowThreshold(t *testing.T) {
	e := NewMLEngine(MLConfig{
		Threshold: 0.5,
		Classify: func(ctx context.Context, data []byte) (float64, error) {
			return 0.1, nil
		},
	})
	v, _ := e.ScanBytes(context.Background(), []byte("x"), "x")
	if v.Kind != types.Clean {
		t.Errorf("expected Clean, got %v", v.Kind)
	}
}
