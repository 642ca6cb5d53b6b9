// Package download stages remote media locally before analysis.
package download
