// Package analysis orchestrates the full pipeline for one media asset:
// staging remote sources, probing, transcription with provider fallback,
// speaker identification, frame sampling, OCR captions, and object/label
// detection. Stage failures degrade to report warnings so partial results
// always win over total failure.
package analysis
