package cmd

import (
	"github.com/batchsumm/orchestrator/internal/config"
	"github.com/batchsumm/orchestrator/internal/provider"
)

// buildProvider instantiates the configured Summarizer from the default
// registry, mirroring the teacher's ParserRegistry-driven selection.
func buildProvider(cfg config.Config) (provider.Summarizer, error) {
	registry := provider.DefaultRegistry()
	return registry.Build(cfg.Provider.AiProvider, map[string]string{
		"baseUrl": cfg.Provider.BaseURL,
		"apiKey":  cfg.Provider.APIKey,
		"model":   cfg.Provider.Model,
	})
}
