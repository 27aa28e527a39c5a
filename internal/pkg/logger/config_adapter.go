package logger

import "github.com/bookwell/bookwell/internal/config"

// OptionsFromConfig translates the config package's log section into
// InitOptions. Kept here so config does not import logger.
func OptionsFromConfig(cfg config.LogConfig) InitOptions {
	opts := InitOptions{
		Level:           cfg.Level,
		Format:          cfg.Format,
		ServiceName:     cfg.ServiceName,
		Environment:     cfg.Environment,
		Caller:          cfg.Caller,
		StacktraceLevel: cfg.StacktraceLevel,
	}
	opts.Output = OutputOptions{
		ToStdout: cfg.Output.ToStdout,
		ToFile:   cfg.Output.ToFile,
		FilePath: cfg.Output.FilePath,
	}
	opts.Rotation = RotationOptions{
		MaxSizeMB:  cfg.Rotation.MaxSizeMB,
		MaxBackups: cfg.Rotation.MaxBackups,
		MaxAgeDays: cfg.Rotation.MaxAgeDays,
		Compress:   cfg.Rotation.Compress,
		LocalTime:  cfg.Rotation.LocalTime,
	}
	opts.Sampling = SamplingOptions{
		Enabled:    cfg.Sampling.Enabled,
		Initial:    cfg.Sampling.Initial,
		Thereafter: cfg.Sampling.Thereafter,
	}
	return opts
}
