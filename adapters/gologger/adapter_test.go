package gologger

import (
	"context"
	"testing"

	glog "github.com/goliatone/go-logger/glog"
)

func TestResolveDeterministicFallback(t *testing.T) {
	loggerOnly := &capturingLogger{id: "logger"}
	providerLogger := &capturingLogger{id: "provider"}
	provider := &capturingProvider{logger: providerLogger}

	var resolvedProvider glog.LoggerProvider
	_, resolved := Resolve("supasoka", provider, loggerOnly)
	got := resolved.(*capturingLogger)
	if got.id != "provider" {
		t.Fatalf("expected provider logger precedence, got %q", got.id)
	}

	resolvedProvider, resolved = Resolve("supasoka", nil, loggerOnly)
	got = resolved.(*capturingLogger)
	if got.id != "logger" {
		t.Fatalf("expected direct logger when provider is nil, got %q", got.id)
	}
	if resolvedProvider == nil {
		t.Fatalf("expected provider wrapper from logger")
	}

	_, resolved = Resolve("supasoka", nil, nil)
	if resolved == nil {
		t.Fatalf("expected nop logger fallback")
	}
}

func TestComponentLoggerNaming(t *testing.T) {
	if got := ComponentName("supasoka", "realtime"); got != "supasoka.realtime" {
		t.Fatalf("expected dotted component name, got %q", got)
	}
	if got := ComponentName(" supasoka. ", ""); got != "supasoka" {
		t.Fatalf("expected base name only, got %q", got)
	}
	if got := ComponentName("", "catalog"); got != "catalog" {
		t.Fatalf("expected component name only, got %q", got)
	}

	providerLogger := &capturingLogger{id: "provider"}
	provider := &capturingProvider{logger: providerLogger}
	logger := ForComponent(provider, "supasoka", "session")
	logger.Info("hello", "k", "v")
	if provider.lastName != "supasoka.session" {
		t.Fatalf("expected provider lookup by component name, got %q", provider.lastName)
	}
	if providerLogger.lastInfo.msg != "hello" {
		t.Fatalf("expected message routed to provider logger, got %q", providerLogger.lastInfo.msg)
	}
	if ForComponent(nil, "supasoka", "session") == nil {
		t.Fatalf("expected nop logger without provider")
	}
}

func TestWithFieldsFallsBackWhenUnsupported(t *testing.T) {
	plain := &capturingLogger{id: "plain"}
	if got := WithFields(plain, map[string]any{"user_id": "u1"}); got != plain {
		t.Fatalf("expected logger without field support to be returned unchanged")
	}
	fielded := &fieldsLogger{capturingLogger: &capturingLogger{id: "fields"}}
	got := WithFields(fielded, map[string]any{"user_id": "u1"})
	withFields, ok := got.(*fieldsLogger)
	if !ok || withFields.fields["user_id"] != "u1" {
		t.Fatalf("expected fields attached, got %#v", got)
	}
	if WithFields(nil, nil) == nil {
		t.Fatalf("expected nop logger for nil input")
	}
}

var (
	_ glog.Logger         = (*capturingLogger)(nil)
	_ glog.LoggerProvider = (*capturingProvider)(nil)
)

type capturingProvider struct {
	logger   *capturingLogger
	lastName string
}

func (p *capturingProvider) GetLogger(name string) glog.Logger {
	if p == nil || p.logger == nil {
		return glog.Nop()
	}
	p.lastName = name
	return p.logger
}

type infoCall struct {
	msg  string
	args []any
}

type capturingLogger struct {
	id       string
	lastInfo infoCall
}

func (l *capturingLogger) Trace(string, ...any) {}
func (l *capturingLogger) Debug(string, ...any) {}
func (l *capturingLogger) Warn(string, ...any)  {}
func (l *capturingLogger) Error(string, ...any) {}
func (l *capturingLogger) Fatal(string, ...any) {}

func (l *capturingLogger) Info(msg string, args ...any) {
	l.lastInfo = infoCall{
		msg:  msg,
		args: append([]any(nil), args...),
	}
}

func (l *capturingLogger) WithContext(context.Context) glog.Logger {
	return l
}

type fieldsLogger struct {
	*capturingLogger
	fields map[string]any
}

func (l *fieldsLogger) WithFields(fields map[string]any) glog.Logger {
	return &fieldsLogger{capturingLogger: l.capturingLogger, fields: fields}
}
