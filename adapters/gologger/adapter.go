package gologger

import (
	"strings"

	glog "github.com/goliatone/go-logger/glog"
)

// Resolve uses deterministic precedence provider > logger > nop.
func Resolve(name string, provider glog.LoggerProvider, logger glog.Logger) (glog.LoggerProvider, glog.Logger) {
	return glog.Resolve(name, provider, logger)
}

// ComponentName joins the client name and a component into the dotted
// logger name used across packages, e.g. "supasoka.realtime".
func ComponentName(base string, component string) string {
	base = strings.Trim(strings.TrimSpace(base), ".")
	component = strings.Trim(strings.TrimSpace(component), ".")
	switch {
	case base == "":
		return component
	case component == "":
		return base
	default:
		return base + "." + component
	}
}

// ForComponent returns the component logger from provider, never nil.
func ForComponent(provider glog.LoggerProvider, base string, component string) glog.Logger {
	if provider == nil {
		return glog.Nop()
	}
	return glog.Ensure(provider.GetLogger(ComponentName(base, component)))
}

// WithFields attaches fields when the logger supports them and returns it
// unchanged otherwise.
func WithFields(logger glog.Logger, fields map[string]any) glog.Logger {
	logger = glog.Ensure(logger)
	if len(fields) == 0 {
		return logger
	}
	if fieldsLogger, ok := logger.(glog.FieldsLogger); ok {
		return fieldsLogger.WithFields(fields)
	}
	return logger
}
