// Package panels renders the demonstration world as framed text blocks,
// one panel per scheduler target.
//
// A panel keeps the last rendered text of each section. Its Sync method is
// the target's sync handler: it re-executes only the templates of the dirty
// properties, then writes the whole framed panel to its output.
package panels
