package coordinator

import "net/http"

// registerRoutes wires up the ServeMux using Go's method+pattern routing
// and composes the middleware chain in the teacher's
// auth -> requestID -> accessLog -> CORS order.
func (s *Server) registerRoutes() {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /job", s.handleIssueJob)
	mux.HandleFunc("PUT /job/{id}", s.handleUpdateJob)
	mux.HandleFunc("POST /job/{id}", s.handleFinishJob)
	mux.HandleFunc("DELETE /job/{id}", s.handleCancelJob)

	mux.HandleFunc("POST /results", s.handleAcceptResults)
	mux.HandleFunc("GET /status/results", s.handleResults)

	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /status/jobs/{state}", s.handleJobsByState)
	mux.HandleFunc("GET /status/stream", s.handleStatusStream)

	mux.HandleFunc("GET /configuration/job", s.handleJobConfig)
	mux.HandleFunc("GET /health", s.handleHealth)

	s.router = mux
	s.handler = s.bearerAuth(RequestID(withAccessLog(s.logger, CORS(mux))))
}
