// Package domain contains the core types of the Nexus search gateway.
//
// Types here carry no infrastructure dependencies: users and sessions,
// uploaded documents and their chunks, search requests and results, and
// the errors that the services and adapters agree on.
package domain
