package core

import glog "github.com/goliatone/go-logger/glog"

var (
	_ CredentialStore     = (*MemoryCredentialStore)(nil)
	_ UnauthorizedHandler = UnauthorizedHandlerFunc(nil)
	_ TokenSource         = TokenSourceFunc(nil)
	_ Clock               = SystemClock{}
	_ Clock               = ClockFunc(nil)
	_ SessionHook         = SessionHookFunc{}
	_ MetricsRecorder     = NopMetricsRecorder{}
	_ ConfigProvider      = (*CfgxConfigProvider)(nil)
	_ OptionsResolver     = GoOptionsResolver{}
	_ RawConfigLoader     = StaticRawConfigLoader{}

	_ Logger         = glog.Nop()
	_ LoggerProvider = glog.ProviderFromLogger(glog.Nop())
)
