// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
// The Aggregator fans a query out to providers and the PKB index,
// DocumentService ingests uploads under the QuotaEnforcer, and
// AuthService turns credentials into identities.
package services
