// Package auth provides the credential primitives behind the auth gate:
// bcrypt password hashing and HS256 session tokens.
package auth
