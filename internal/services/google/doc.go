// Package google implements the client for the Google-style speech
// recognition back-end: synchronous recognition for short inline audio plus
// the long-running operation flow (start, poll, cancel) for longer inputs.
package google
