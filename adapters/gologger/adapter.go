package gologger

import (
	"strings"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue/worker"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-social/adapters/gojob"
	"github.com/goliatone/go-social/core"
)

const (
	DefaultName = "social"
	JobsName    = "social.jobs"
)

// Resolve uses deterministic precedence provider > logger > nop. An empty
// name resolves the root social logger.
func Resolve(name string, provider glog.LoggerProvider, logger glog.Logger) (glog.LoggerProvider, glog.Logger) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultName
	}
	return glog.Resolve(name, provider, logger)
}

func ToJobProvider(provider glog.LoggerProvider) job.LoggerProvider {
	if provider == nil {
		return nil
	}
	return job.GoLoggerProvider(provider)
}

func ToJobLogger(logger glog.Logger) job.Logger {
	if logger == nil {
		return nil
	}
	return job.GoLogger(logger)
}

// ResolveForJob resolves glog logger/provider then returns equivalent go-job adapters.
func ResolveForJob(
	name string,
	provider glog.LoggerProvider,
	logger glog.Logger,
) (glog.LoggerProvider, glog.Logger, job.LoggerProvider, job.Logger) {
	resolvedProvider, resolvedLogger := Resolve(name, provider, logger)
	return resolvedProvider, resolvedLogger, ToJobProvider(resolvedProvider), ToJobLogger(resolvedLogger)
}

// WorkerHook returns a go-job worker hook logging scheduled publications
// through the social.jobs logger.
func WorkerHook(provider glog.LoggerProvider, logger glog.Logger, metrics core.MetricsRecorder) worker.Hook {
	_, resolved := Resolve(JobsName, provider, logger)
	return gojob.NewLoggingHook(resolved, metrics)
}
