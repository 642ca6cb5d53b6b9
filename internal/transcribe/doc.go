// Package transcribe selects and drives a speech back-end for one audio
// asset. The router applies provider, size, and duration rules to choose
// between Google's synchronous and long-running paths and Whisper's direct
// and chunked paths, following defined fallback transitions when a back-end
// reports a capability limit. The stitcher reassembles chunked results into
// a single transcript in strict chunk index order.
package transcribe
