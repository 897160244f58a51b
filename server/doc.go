// Package server runs the Gin engine behind an h2c handler with the
// standard middleware stack and the /health, /alive and /info endpoints.
//
//	srv := server.New(cfg.Server, log)
//	srv.ApplyMiddleware(metrics)
//	srv.RegisterDefaultEndpoints("dictation", registry.HealthAll)
//	srv.GinEngine().GET("/ws/dictation/:session_id", handler)
//	app.RegisterComponent(server.NewComponent(srv))
package server
