// Package api is the HTTP driving adapter. It exposes registration,
// login, fan-out search, uploads and account usage over echo, and maps
// domain errors onto status codes with plain-text bodies.
package api
