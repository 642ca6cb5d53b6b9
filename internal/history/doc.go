// Package history records analysis runs in a local SQLite database so past
// work can be listed and inspected from the CLI.
package history
