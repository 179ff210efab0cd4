package devserver

func (s *Server) initRoutes() {
	s.RegisterRouteFunc("GET "+RouteHealth, ChainMiddleware(s.HealthHandler(), s.LoggingMiddleware))

	s.RegisterRouteHandler("POST "+RouteAuthLogin, ChainMiddleware(s.LoginHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteAuthRefresh, ChainMiddleware(s.RefreshHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteAuthLogout, ChainMiddleware(s.LogoutHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteAuthMe, ChainMiddleware(s.MeHandler(), s.APIMiddleware(s.RequireAuth())...))

	// CORS preflight for every API route
	s.RegisterRouteHandler("OPTIONS /api/", ChainMiddleware(s.PreflightHandler(), s.APIMiddleware()...))
}
