package api

import "github.com/labstack/echo/v4"

// Routes bundles every HTTP handler so the server wiring takes a
// single registration point.
type Routes struct {
	Webhook   *WebhookEchoHandler
	Admin     *AdminEchoHandler
	Dashboard *DashboardEchoHandler
}

func NewRoutes(webhook *WebhookEchoHandler, admin *AdminEchoHandler, dashboard *DashboardEchoHandler) *Routes {
	return &Routes{Webhook: webhook, Admin: admin, Dashboard: dashboard}
}

func (r *Routes) RegisterRoutes(e *echo.Echo) {
	if r.Webhook != nil {
		r.Webhook.RegisterRoutes(e)
	}
	if r.Admin != nil {
		r.Admin.RegisterRoutes(e)
	}
	if r.Dashboard != nil {
		r.Dashboard.RegisterRoutes(e)
	}
}
