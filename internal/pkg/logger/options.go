package logger

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	// DefaultContainerLogPath is where the container image writes logs when
	// no path is configured.
	DefaultContainerLogPath = "/app/data/logs/bookwell.log"
	defaultLogFilename      = "bookwell.log"
)

type InitOptions struct {
	Level           string
	Format          string
	ServiceName     string
	Environment     string
	Caller          bool
	StacktraceLevel string
	Output          OutputOptions
	Rotation        RotationOptions
	Sampling        SamplingOptions
}

type OutputOptions struct {
	ToStdout bool
	ToFile   bool
	FilePath string
}

type RotationOptions struct {
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
	LocalTime  bool
}

type SamplingOptions struct {
	Enabled    bool
	Initial    int
	Thereafter int
}

func (o InitOptions) withDefaults() InitOptions {
	out := o
	out.Level = lowerOr(out.Level, "info")
	out.Format = lowerOr(out.Format, "json")
	out.ServiceName = trimOr(out.ServiceName, "bookwell")
	out.Environment = trimOr(out.Environment, "production")
	out.StacktraceLevel = lowerOr(out.StacktraceLevel, "error")

	if !out.Output.ToStdout && !out.Output.ToFile {
		out.Output.ToStdout = true
	}
	out.Output.FilePath = resolveLogFilePath(out.Output.FilePath)

	if out.Rotation.MaxSizeMB <= 0 {
		out.Rotation.MaxSizeMB = 100
	}
	if out.Rotation.MaxBackups < 0 {
		out.Rotation.MaxBackups = 10
	}
	if out.Rotation.MaxAgeDays < 0 {
		out.Rotation.MaxAgeDays = 7
	}
	if out.Sampling.Enabled {
		if out.Sampling.Initial <= 0 {
			out.Sampling.Initial = 100
		}
		if out.Sampling.Thereafter <= 0 {
			out.Sampling.Thereafter = 100
		}
	}
	return out
}

func trimOr(v, fallback string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return fallback
	}
	return v
}

func lowerOr(v, fallback string) string {
	return strings.ToLower(trimOr(v, fallback))
}

// resolveLogFilePath prefers an explicit path, then DATA_DIR, then the
// container default.
func resolveLogFilePath(explicit string) string {
	if explicit = strings.TrimSpace(explicit); explicit != "" {
		return explicit
	}
	if dataDir := strings.TrimSpace(os.Getenv("DATA_DIR")); dataDir != "" {
		return filepath.Join(dataDir, "logs", defaultLogFilename)
	}
	return DefaultContainerLogPath
}

func bootstrapOptions() InitOptions {
	return InitOptions{
		Level:       "info",
		Format:      "console",
		ServiceName: "bookwell",
		Environment: "bootstrap",
		Output:      OutputOptions{ToStdout: true},
	}
}
