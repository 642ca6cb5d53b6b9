// Package ocr builds a time-indexed caption track from sampled video frames
// by running each frame through a text-detection collaborator and filtering
// the results by confidence and length.
package ocr
