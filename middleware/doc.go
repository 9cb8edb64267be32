// Package middleware authenticates bearer tokens for HTTP handlers.
//
// [Authenticate] and [AuthenticateIfPresent] read the Authorization header, call
// the engine's Authenticate and store the resulting principal in the request
// context for [PrincipalFromContext]. Rejections are a bare 401 with no body.
//
// This package never parses tokens itself and never issues them.
package middleware
