// Package html normalises HTML documents into plain text using goquery.
//
// Scripts, styles and other non-content elements are dropped and block
// elements are separated by newlines. The <title> element, or failing that
// the first <h1>, becomes the document title.
package html
