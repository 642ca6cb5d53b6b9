// Package voiceprint derives deterministic speaker fingerprints from the
// coarse audio profile a probe provides plus transcribed words. Fingerprints
// combine categorical audio buckets with continuous speaking-style statistics
// and feed the speaker matcher; they carry no raw audio.
package voiceprint
