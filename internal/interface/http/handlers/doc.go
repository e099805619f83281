// Package handlers contains reusable HTTP building blocks: health checks and
// middleware that do not depend on the API's routes.
//
// # Health Checks
//
// Named checks run in parallel, each under its own timeout:
//
//	checker := handlers.NewCompositeHealthChecker("v1.0.0")
//	checker.AddCheck("database", handlers.NewPingCheck(conn))
//	checker.AddOptionalCheck("cache", handlers.NewPingCheck(cache))
//
//	status := checker.Check(ctx)
//
// A failing optional check marks the service degraded but still ready.
//
// # Middleware
//
//	limiter := handlers.NewClientRateLimiter(100, time.Minute)
//	defer limiter.Stop()
//
//	r := chi.NewRouter()
//	r.Use(handlers.SecurityHeadersMiddleware)
//	r.Use(handlers.RequestSizeLimitMiddleware(1 << 20))
package handlers
