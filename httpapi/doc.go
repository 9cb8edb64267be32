// Package httpapi serves the token endpoint over HTTP with gorilla/mux.
//
//	POST /token    issue (JSON credentials) or renew (Authorization: Bearer)
//	GET  /healthz  backend reachability
//	GET  /metrics  optional exporter handler
package httpapi
