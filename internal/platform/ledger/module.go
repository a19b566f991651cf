package ledger

import "go.uber.org/fx"

var Module = fx.Options(
	fx.Provide(func(c *HTTPClient) Client { return c }),
	fx.Provide(NewHTTPClient),
)
