package devserver

import "github.com/jrsteele09/lunar-session/client"

// Route path constants
const (
	RouteAuthLogin   = client.LoginPath
	RouteAuthRefresh = client.RefreshPath
	RouteAuthLogout  = client.LogoutPath
	RouteAuthMe      = client.MePath
	RouteHealth      = "/healthz"
)
