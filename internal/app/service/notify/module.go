package notify

import "go.uber.org/fx"

// Module exposes the configured notifier via Fx.
var Module = fx.Options(
	fx.Provide(New),
)
