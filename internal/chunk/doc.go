// Package chunk splits long audio into ordered fixed-duration segments for
// chunked transcription. Conversions run concurrently into a pre-allocated
// slot array so consumption order is always index order.
package chunk
