// Package httputil provides shared HTTP response/request helpers.
//
// Handlers use these instead of raw http.ResponseWriter calls so every
// endpoint answers with the same JSON envelope.
package httputil
