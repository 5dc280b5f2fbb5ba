// Package config loads and hot-reloads the orchestrator's configuration via
// spf13/viper, binding every key named in spec.md §6 to a typed Config
// struct, matching the teacher's viper-backed internal/cmd root command.
package config

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/batchsumm/orchestrator/internal/merger"
	"github.com/batchsumm/orchestrator/internal/scheduler"
	"github.com/batchsumm/orchestrator/internal/segmenter"
)

// BatchProcessing mirrors spec.md §6's BatchProcessing block.
type BatchProcessing struct {
	DefaultConcurrentLimit int `mapstructure:"defaultConcurrentLimit"`
	MaxConcurrentLimit     int `mapstructure:"maxConcurrentLimit"`
}

// RetryPolicy mirrors spec.md §6's RetryPolicy block.
type RetryPolicy struct {
	MaxRetries        int     `mapstructure:"maxRetries"`
	BackoffMultiplier float64 `mapstructure:"backoffMultiplier"`
	BaseDelaySeconds  float64 `mapstructure:"baseDelaySeconds"`
	Jitter            float64 `mapstructure:"jitter"`
}

// ApiTimeout mirrors spec.md §6's ApiTimeout block.
type ApiTimeout struct {
	DefaultTimeoutSeconds int `mapstructure:"defaultTimeoutSeconds"`
	LongTimeoutSeconds    int `mapstructure:"longTimeoutSeconds"`
	LongTimeoutTrigger    int `mapstructure:"longTimeoutTrigger"`
}

// ProgressReporting mirrors spec.md §6's ProgressReporting block.
type ProgressReporting struct {
	UpdateIntervalSeconds int  `mapstructure:"updateIntervalSeconds"`
	EnableRealtimeUpdates bool `mapstructure:"enableRealtimeUpdates"`
}

// TextSegmentation mirrors spec.md §6's TextSegmentation block.
type TextSegmentation struct {
	TriggerLength         int     `mapstructure:"triggerLength"`
	MaxSegmentLength      int     `mapstructure:"maxSegmentLength"`
	ContextLimitBuffer    float64 `mapstructure:"contextLimitBuffer"`
	PreserveParagraphs    bool    `mapstructure:"preserveParagraphs"`
	EnableLlmSegmentation bool    `mapstructure:"enableLlmSegmentation"`
	SentenceEndMarkers    string  `mapstructure:"sentenceEndMarkers"`
	GenerateAutoTitles    bool    `mapstructure:"generateAutoTitles"`
}

// LengthControl mirrors spec.md §6's SummaryMerging.LengthControl block.
type LengthControl struct {
	MinTargetLength     int     `mapstructure:"minTargetLength"`
	MaxTargetLength     int     `mapstructure:"maxTargetLength"`
	DefaultTargetLength int     `mapstructure:"defaultTargetLength"`
	LengthTolerance     float64 `mapstructure:"lengthTolerance"`
}

// DuplicateDetection mirrors spec.md §6's SummaryMerging.DuplicateDetection.
type DuplicateDetection struct {
	SimilarityThreshold float64 `mapstructure:"similarityThreshold"`
}

// LLMAssistance mirrors spec.md §6's SummaryMerging.LLMAssistance block.
type LLMAssistance struct {
	MinSegmentsForLLM int `mapstructure:"minSegmentsForLLM"`
}

// SummaryMerging mirrors spec.md §6's SummaryMerging block.
type SummaryMerging struct {
	DefaultStrategy    string             `mapstructure:"defaultStrategy"`
	TargetLengthRatio  float64            `mapstructure:"targetLengthRatio"`
	MinCoherence       float64            `mapstructure:"minCoherence"`
	MinCompleteness    float64            `mapstructure:"minCompleteness"`
	MinConciseness     float64            `mapstructure:"minConciseness"`
	MinAccuracy        float64            `mapstructure:"minAccuracy"`
	DuplicateDetection DuplicateDetection `mapstructure:"duplicateDetection"`
	LLMAssistance      LLMAssistance      `mapstructure:"llmAssistance"`
	LengthControl      LengthControl      `mapstructure:"lengthControl"`
}

// Provider selects and configures the active Summarizer adapter.
type Provider struct {
	AiProvider string `mapstructure:"aiProvider"`
	BaseURL    string `mapstructure:"baseUrl"`
	APIKey     string `mapstructure:"apiKey"`
	Model      string `mapstructure:"model"`
}

// Server configures the HTTP/websocket boundary.
type Server struct {
	ListenAddr string `mapstructure:"listenAddr"`
}

// Storage configures the persistence layer.
type Storage struct {
	SqlitePath    string `mapstructure:"sqlitePath"`
	RetentionDays int    `mapstructure:"retentionDays"`
	CacheSize     int    `mapstructure:"cacheSize"`
}

// Config is the fully-typed, viper-bound configuration for the
// orchestrator, covering every key spec.md §6 names plus the ambient
// server/storage/provider concerns SPEC_FULL.md adds.
type Config struct {
	BatchProcessing   BatchProcessing   `mapstructure:"batchProcessing"`
	RetryPolicy       RetryPolicy       `mapstructure:"retryPolicy"`
	ApiTimeout        ApiTimeout        `mapstructure:"apiTimeout"`
	ProgressReporting ProgressReporting `mapstructure:"progressReporting"`
	TextSegmentation  TextSegmentation  `mapstructure:"textSegmentation"`
	SummaryMerging    SummaryMerging    `mapstructure:"summaryMerging"`
	Provider          Provider          `mapstructure:"provider"`
	Server            Server            `mapstructure:"server"`
	Storage           Storage           `mapstructure:"storage"`
}

// Defaults matches the literal defaults spec.md §6 gives for every key.
func Defaults() Config {
	return Config{
		BatchProcessing: BatchProcessing{DefaultConcurrentLimit: 2, MaxConcurrentLimit: 4},
		RetryPolicy:     RetryPolicy{MaxRetries: 3, BackoffMultiplier: 2.0, BaseDelaySeconds: 1, Jitter: 0.2},
		ApiTimeout:      ApiTimeout{DefaultTimeoutSeconds: 30, LongTimeoutSeconds: 60, LongTimeoutTrigger: 4000},
		ProgressReporting: ProgressReporting{
			UpdateIntervalSeconds: 2,
			EnableRealtimeUpdates: true,
		},
		TextSegmentation: TextSegmentation{
			TriggerLength:         2048,
			MaxSegmentLength:      2000,
			ContextLimitBuffer:    0.8,
			PreserveParagraphs:    true,
			EnableLlmSegmentation: true,
			SentenceEndMarkers:    ".。!！?？",
			GenerateAutoTitles:    true,
		},
		SummaryMerging: SummaryMerging{
			DefaultStrategy:   "balanced",
			TargetLengthRatio: 0.6,
			MinCoherence:      0.7,
			MinCompleteness:   0.8,
			MinConciseness:    0.6,
			MinAccuracy:       0.75,
			DuplicateDetection: DuplicateDetection{
				SimilarityThreshold: 0.8,
			},
			LLMAssistance: LLMAssistance{MinSegmentsForLLM: 5},
			LengthControl: LengthControl{
				MinTargetLength:     100,
				MaxTargetLength:     2000,
				DefaultTargetLength: 800,
				LengthTolerance:     0.15,
			},
		},
		Provider: Provider{AiProvider: "ollama", Model: "llama3"},
		Server:   Server{ListenAddr: ":8080"},
		Storage:  Storage{SqlitePath: "orchestrator.db", RetentionDays: 30, CacheSize: 64},
	}
}

// SchedulerConfig translates the loaded Config into a scheduler.Config,
// clamping concurrency per spec.md §4.2.
func (c Config) SchedulerConfig() scheduler.Config {
	return scheduler.Config{
		ConcurrencyLimit: c.BatchProcessing.DefaultConcurrentLimit,
		MaxRetries:       c.RetryPolicy.MaxRetries,
		BaseDelay:        time.Duration(c.RetryPolicy.BaseDelaySeconds * float64(time.Second)),
		Multiplier:       c.RetryPolicy.BackoffMultiplier,
		Jitter:           c.RetryPolicy.Jitter,
		CallTimeout:      time.Duration(c.ApiTimeout.DefaultTimeoutSeconds) * time.Second,
		LongCallTimeout:  time.Duration(c.ApiTimeout.LongTimeoutSeconds) * time.Second,
		LongCallTrigger:  c.ApiTimeout.LongTimeoutTrigger,
		MergeOptions:     c.MergeOptions(),
	}
}

// MergeOptions translates the loaded Config into a merger.Options.
func (c Config) MergeOptions() merger.Options {
	return merger.Options{
		Strategy:            merger.Strategy(c.SummaryMerging.DefaultStrategy),
		TargetLengthRatio:   c.SummaryMerging.TargetLengthRatio,
		MinLength:           c.SummaryMerging.LengthControl.MinTargetLength,
		MaxLength:           c.SummaryMerging.LengthControl.MaxTargetLength,
		Tolerance:           c.SummaryMerging.LengthControl.LengthTolerance,
		SimilarityThreshold: c.SummaryMerging.DuplicateDetection.SimilarityThreshold,
		EnableLLMAssist:     true,
		MinSegmentsForLLM:   c.SummaryMerging.LLMAssistance.MinSegmentsForLLM,
		FallbackToRuleBased: true,
		PrependTitles:       true,
		MinCoherence:        c.SummaryMerging.MinCoherence,
		MinCompleteness:     c.SummaryMerging.MinCompleteness,
		MinConciseness:      c.SummaryMerging.MinConciseness,
		MinAccuracy:         c.SummaryMerging.MinAccuracy,
	}
}

// SegmenterOptions translates the loaded Config into a segmenter.Options.
func (c Config) SegmenterOptions() segmenter.Options {
	return segmenter.Options{
		MaxSegmentLen:       c.TextSegmentation.MaxSegmentLength,
		TriggerLen:          c.TextSegmentation.TriggerLength,
		PreserveParagraphs:  c.TextSegmentation.PreserveParagraphs,
		GenerateTitles:      c.TextSegmentation.GenerateAutoTitles,
		EnableLLMAssist:     c.TextSegmentation.EnableLlmSegmentation,
		SentenceTerminators: []rune(c.TextSegmentation.SentenceEndMarkers),
	}
}

// Loader owns the live, hot-reloadable Config plus the viper instance
// backing it, generalizing the teacher's package-level viper singleton
// (internal/cmd/root.go's initConfig) into a reusable, testable type.
type Loader struct {
	v      *viper.Viper
	mu     sync.RWMutex
	cur    Config
	logger *slog.Logger
}

// NewLoader builds a Loader, applying defaults, then any config file found
// at path (if non-empty) or named "orchestrator" on the current path, then
// ORCHESTRATOR_-prefixed environment variables, per the teacher's
// cfgFile/BENCHFLOW_ precedence order.
func NewLoader(path string, logger *slog.Logger) (*Loader, error) {
	if logger == nil {
		logger = slog.Default()
	}

	v := viper.New()
	applyDefaults(v, Defaults())

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName("orchestrator")
	}

	v.SetEnvPrefix("ORCHESTRATOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	l := &Loader{v: v, logger: logger}
	if err := l.reload(); err != nil {
		return nil, err
	}

	v.OnConfigChange(func(fsnotify.Event) {
		if err := l.reload(); err != nil {
			logger.Warn("config reload failed", "error", err)
			return
		}
		logger.Info("config reloaded")
	})
	v.WatchConfig()

	return l, nil
}

func (l *Loader) reload() error {
	cfg := Defaults()
	if err := l.v.Unmarshal(&cfg); err != nil {
		return err
	}
	l.mu.Lock()
	l.cur = cfg
	l.mu.Unlock()
	return nil
}

// Current returns the most recently loaded Config. concurrencyLimit is
// read only when a new batch starts, per spec.md §6's note that running
// batches keep their original concurrency; every other field here is safe
// to pick up mid-flight.
func (l *Loader) Current() Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cur
}

func applyDefaults(v *viper.Viper, d Config) {
	v.SetDefault("batchProcessing.defaultConcurrentLimit", d.BatchProcessing.DefaultConcurrentLimit)
	v.SetDefault("batchProcessing.maxConcurrentLimit", d.BatchProcessing.MaxConcurrentLimit)
	v.SetDefault("retryPolicy.maxRetries", d.RetryPolicy.MaxRetries)
	v.SetDefault("retryPolicy.backoffMultiplier", d.RetryPolicy.BackoffMultiplier)
	v.SetDefault("retryPolicy.baseDelaySeconds", d.RetryPolicy.BaseDelaySeconds)
	v.SetDefault("retryPolicy.jitter", d.RetryPolicy.Jitter)
	v.SetDefault("apiTimeout.defaultTimeoutSeconds", d.ApiTimeout.DefaultTimeoutSeconds)
	v.SetDefault("apiTimeout.longTimeoutSeconds", d.ApiTimeout.LongTimeoutSeconds)
	v.SetDefault("apiTimeout.longTimeoutTrigger", d.ApiTimeout.LongTimeoutTrigger)
	v.SetDefault("progressReporting.updateIntervalSeconds", d.ProgressReporting.UpdateIntervalSeconds)
	v.SetDefault("progressReporting.enableRealtimeUpdates", d.ProgressReporting.EnableRealtimeUpdates)
	v.SetDefault("textSegmentation.triggerLength", d.TextSegmentation.TriggerLength)
	v.SetDefault("textSegmentation.maxSegmentLength", d.TextSegmentation.MaxSegmentLength)
	v.SetDefault("textSegmentation.contextLimitBuffer", d.TextSegmentation.ContextLimitBuffer)
	v.SetDefault("textSegmentation.preserveParagraphs", d.TextSegmentation.PreserveParagraphs)
	v.SetDefault("textSegmentation.enableLlmSegmentation", d.TextSegmentation.EnableLlmSegmentation)
	v.SetDefault("textSegmentation.sentenceEndMarkers", d.TextSegmentation.SentenceEndMarkers)
	v.SetDefault("textSegmentation.generateAutoTitles", d.TextSegmentation.GenerateAutoTitles)
	v.SetDefault("summaryMerging.defaultStrategy", d.SummaryMerging.DefaultStrategy)
	v.SetDefault("summaryMerging.targetLengthRatio", d.SummaryMerging.TargetLengthRatio)
	v.SetDefault("summaryMerging.minCoherence", d.SummaryMerging.MinCoherence)
	v.SetDefault("summaryMerging.minCompleteness", d.SummaryMerging.MinCompleteness)
	v.SetDefault("summaryMerging.minConciseness", d.SummaryMerging.MinConciseness)
	v.SetDefault("summaryMerging.minAccuracy", d.SummaryMerging.MinAccuracy)
	v.SetDefault("summaryMerging.duplicateDetection.similarityThreshold", d.SummaryMerging.DuplicateDetection.SimilarityThreshold)
	v.SetDefault("summaryMerging.llmAssistance.minSegmentsForLLM", d.SummaryMerging.LLMAssistance.MinSegmentsForLLM)
	v.SetDefault("summaryMerging.lengthControl.minTargetLength", d.SummaryMerging.LengthControl.MinTargetLength)
	v.SetDefault("summaryMerging.lengthControl.maxTargetLength", d.SummaryMerging.LengthControl.MaxTargetLength)
	v.SetDefault("summaryMerging.lengthControl.defaultTargetLength", d.SummaryMerging.LengthControl.DefaultTargetLength)
	v.SetDefault("summaryMerging.lengthControl.lengthTolerance", d.SummaryMerging.LengthControl.LengthTolerance)
	v.SetDefault("provider.aiProvider", d.Provider.AiProvider)
	v.SetDefault("provider.baseUrl", d.Provider.BaseURL)
	v.SetDefault("provider.apiKey", d.Provider.APIKey)
	v.SetDefault("provider.model", d.Provider.Model)
	v.SetDefault("server.listenAddr", d.Server.ListenAddr)
	v.SetDefault("storage.sqlitePath", d.Storage.SqlitePath)
	v.SetDefault("storage.retentionDays", d.Storage.RetentionDays)
	v.SetDefault("storage.cacheSize", d.Storage.CacheSize)
}
