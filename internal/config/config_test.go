package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewLoader_AppliesDefaultsWithNoFile(t *testing.T) {
	dir := t.TempDir()
	cwd, _ := os.Getwd()
	defer os.Chdir(cwd)
	os.Chdir(dir)

	l, err := NewLoader("", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg := l.Current()
	if cfg.BatchProcessing.DefaultConcurrentLimit != 2 {
		t.Errorf("expected default concurrency 2, got %d", cfg.BatchProcessing.DefaultConcurrentLimit)
	}
	if cfg.TextSegmentation.TriggerLength != 2048 {
		t.Errorf("expected default trigger length 2048, got %d", cfg.TextSegmentation.TriggerLength)
	}
	if cfg.SummaryMerging.DefaultStrategy != "balanced" {
		t.Errorf("expected default strategy balanced, got %s", cfg.SummaryMerging.DefaultStrategy)
	}
}

func TestNewLoader_ReadsConfigFileOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "orchestrator.yaml")
	contents := []byte("batchProcessing:\n  defaultConcurrentLimit: 3\nprovider:\n  aiProvider: openai\n")
	if err := os.WriteFile(path, contents, 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	l, err := NewLoader(path, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg := l.Current()
	if cfg.BatchProcessing.DefaultConcurrentLimit != 3 {
		t.Errorf("expected overridden concurrency 3, got %d", cfg.BatchProcessing.DefaultConcurrentLimit)
	}
	if cfg.Provider.AiProvider != "openai" {
		t.Errorf("expected overridden provider openai, got %s", cfg.Provider.AiProvider)
	}
	// untouched keys still carry their defaults.
	if cfg.RetryPolicy.MaxRetries != 3 {
		t.Errorf("expected default max retries 3, got %d", cfg.RetryPolicy.MaxRetries)
	}
}

func TestConfig_SchedulerConfig_TranslatesFields(t *testing.T) {
	cfg := Defaults()
	sc := cfg.SchedulerConfig()

	if sc.ConcurrencyLimit != cfg.BatchProcessing.DefaultConcurrentLimit {
		t.Errorf("expected concurrency limit to carry over")
	}
	if sc.MaxRetries != cfg.RetryPolicy.MaxRetries {
		t.Errorf("expected max retries to carry over")
	}
	if sc.CallTimeout.Seconds() != float64(cfg.ApiTimeout.DefaultTimeoutSeconds) {
		t.Errorf("expected call timeout to carry over in seconds")
	}
}

func TestConfig_SegmenterOptions_TranslatesFields(t *testing.T) {
	cfg := Defaults()
	opts := cfg.SegmenterOptions()

	if opts.MaxSegmentLen != cfg.TextSegmentation.MaxSegmentLength {
		t.Errorf("expected max segment length to carry over")
	}
	if opts.TriggerLen != cfg.TextSegmentation.TriggerLength {
		t.Errorf("expected trigger length to carry over")
	}
}
