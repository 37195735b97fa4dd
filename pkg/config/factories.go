package config

import (
	"fmt"

	"github.com/marmos91/hsha/pkg/processor"
)

// CreateProcessor creates the processing routine selected by the configuration.
//
// The options map matching Type is decoded by the processor package, so
// durations may be written as "500ms" in YAML or passed as time.Duration.
func CreateProcessor(cfg *ProcessorConfig) (processor.Processor, error) {
	proc, err := processor.New(cfg.Type, cfg.Options())
	if err != nil {
		return nil, fmt.Errorf("failed to create %q processor: %w", cfg.Type, err)
	}
	return proc, nil
}
