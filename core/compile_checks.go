package core

import glog "github.com/goliatone/go-logger/glog"

var (
	_ MetricsRecorder = NopMetricsRecorder{}
	_ ConfigProvider  = (*CfgxConfigProvider)(nil)
	_ RawConfigLoader = (*EnvConfigLoader)(nil)
	_ OptionsResolver = GoOptionsResolver{}

	_ error = (*EncryptionError)(nil)
	_ error = (*ExternalAPIError)(nil)
	_ error = (*ValidationError)(nil)

	_ Logger         = glog.Nop()
	_ LoggerProvider = glog.ProviderFromLogger(glog.Nop())
)
