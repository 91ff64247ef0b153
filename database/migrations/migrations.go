// Package migrations registers the schema of the sql document store. Import
// it for side effects wherever the sql driver may be opened.
package migrations
