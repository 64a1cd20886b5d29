// Package api is the HTTP face of the service: feed XML for podcast players,
// a small landing page and a JSON listing of what is cached.
package api

import (
	"go.uber.org/fx"
)

var Module = fx.Module("api",
	fx.Provide(
		NewServer,
	),
)
