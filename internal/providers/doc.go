// Package providers holds the plumbing shared by the external search
// providers: an HTTP client that throttles, classifies failures into
// *domain.ProviderError, and decodes JSON responses.
//
// Each subpackage adapts one upstream API to driven.SearchProvider:
//
//   - serpapi: Google results through SerpApi (source "web")
//   - googlecse: Google Programmable Search (source "web")
//   - wikipedia: MediaWiki full-text search (source "wiki")
//   - duckduckgo: DuckDuckGo Instant Answers (source "ddg")
package providers
