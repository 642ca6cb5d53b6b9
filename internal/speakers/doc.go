// Package speakers matches voice fingerprints against known speaker
// identities and persists them. Similarity is a weighted blend of
// categorical bucket agreement and tolerance-scaled continuous features;
// identities survive across unrelated files through a JSON store that is
// rewritten atomically after every change.
package speakers
