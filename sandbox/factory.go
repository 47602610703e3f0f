package sandbox

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/isdmx/codelab/config"
)

// NewExecutor creates the sandbox executor described by the configuration
func NewExecutor(logger *zap.Logger, cfg *config.Config) (Executor, error) {
	if cfg.Sandbox.TimeoutSec <= 0 {
		return nil, fmt.Errorf("sandbox timeout must be positive, got: %d", cfg.Sandbox.TimeoutSec)
	}

	executorConfig := Config{
		TimeoutSec: cfg.Sandbox.TimeoutSec,
		TempDir:    cfg.Sandbox.TempDir,
		Python: PythonToolchain{
			Command: cfg.Languages.Python.Command,
			Env:     cfg.Languages.Python.Environment,
		},
		Java: JavaToolchain{
			Compiler: cfg.Languages.Java.Compiler,
			Runtime:  cfg.Languages.Java.Runtime,
			Env:      cfg.Languages.Java.Environment,
		},
	}

	logger = logger.Named("sandbox")
	var executor Executor = NewLocalExecutor(logger, &executorConfig)

	if cfg.Sandbox.MaxConcurrent > 0 {
		executor = NewLimitedExecutor(logger, executor, int64(cfg.Sandbox.MaxConcurrent))
	}

	logger.Info("sandbox executor ready",
		zap.Int("timeout_sec", executorConfig.TimeoutSec),
		zap.String("temp_dir", executorConfig.TempDir),
		zap.Int("max_concurrent", cfg.Sandbox.MaxConcurrent))

	return executor, nil
}
