// Package engine runs the publish jobs of a manifest.
//
// Every job gets its own publisher, configured from the manifest entry and
// wired with shell command effects and desktop notifications. Jobs run
// concurrently through a SafeGroup; a single publisher is never shared
// between goroutines.
package engine
