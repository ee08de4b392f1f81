// Package filesystem feeds local files into a user's knowledge base. It
// walks a directory tree once and can then watch it for changes.
package filesystem
