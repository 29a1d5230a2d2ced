// Package httpserver provides a reusable HTTP server implementation with common functionality
// for search cluster components.
//
// The httpserver package implements a base HTTP server with standard health endpoints,
// graceful shutdown capabilities, metrics, and flexible routing. A search node mounts
// both its peer-facing frame routes and the operator-facing inspection API on the same
// BaseServer, so every rank gets health checks and metrics for free.
//
// # Key Components
//
//   - BaseServer: Core HTTP server with health checks, metrics, and lifecycle management
//   - RouteRegistrar: Interface for components to register their routes with the server
//   - NodeHandler: Read-only inspection API for a running search node
//
// # Server Lifecycle
//
// The BaseServer implements a complete server lifecycle:
//
//  1. Initialization: Configure server with HTTP settings and route registrars
//  2. Startup: Run HTTP and metrics servers in background goroutines
//  3. Operation: Handle requests with proper logging and monitoring
//  4. Readiness Control: Support drain/undrain operations for load balancers
//  5. Graceful Shutdown: Wait for in-flight requests to complete
//
// # Health and Diagnostics
//
// All servers built with BaseServer automatically include:
//
//   - Liveness Check: Simple endpoint to verify server is running (/livez)
//   - Readiness Check: Endpoint indicating if server is ready to accept requests (/readyz)
//   - Drain Control: Endpoints to prepare for graceful shutdown (/drain, /undrain)
//   - Metrics: Optional Prometheus-compatible metrics endpoint
//   - Profiling: Optional pprof debugging endpoints when enabled
//
// The liveness endpoint doubles as the peer probe target: cluster.HTTPTransport
// polls /livez on every rank before the first barrier of a search.
//
// # Inspection API
//
// NodeHandler registers two endpoints under /api/v1 with permissive CORS so
// dashboards can poll them directly:
//
//   - GET /api/v1/status: progress of the local rank (round, collector size, ELP totals)
//   - GET /api/v1/result: final mask set once the search is done, strongest first
//
// # Usage Example
//
//	transport, _ := cluster.NewHTTPTransport(transportConfig)
//	nodeConfig.Transport = transport
//	node, _ := cluster.NewNode(nodeConfig)
//
//	srv, err := httpserver.New(cfg, transport, httpserver.NewNodeHandler(node))
//	if err != nil {
//	    return err
//	}
//	srv.RunInBackground()
//	defer srv.Shutdown()
//
// Frame posts from peers legitimately block until the local round loop consumes
// them, so search nodes leave ReadTimeout and WriteTimeout at zero.
package httpserver
