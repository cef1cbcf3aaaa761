// Package plan turns OCR text into a bake plan: it splits the text into
// candidate lines, reconciles them against the canonical menu, and works out
// which item is current within the shift window.
package plan
