package server

// Route path constants for the control API
const (
	RouteSession        = "/session"
	RouteSessionLogin   = "/session/login"
	RouteSessionLogout  = "/session/logout"
	RouteSessionRenew   = "/session/renew"
	RouteSessionSignup  = "/session/register"
	RouteSessionPrompt  = "/session/prompt"
	RouteSessionAnswer  = "/session/prompt/{id}"
	RouteSessionNotices = "/session/notices"
)
