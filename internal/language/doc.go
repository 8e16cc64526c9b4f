// Package language normalizes language hints for the speech model and turns
// detected language codes into display names.
//
// Hints may be ISO 639-1 or 639-2 codes, BCP 47 tags, or English language
// names ("german"). Parsing and naming are backed by golang.org/x/text.
package language
