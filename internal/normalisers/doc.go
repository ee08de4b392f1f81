// Package normalisers extracts plain text from uploaded files.
//
// Each subpackage handles one family of formats and implements
// driven.Normaliser. The Registry in this package picks the best match for
// an upload by file extension first, then by MIME type, then by priority.
package normalisers
