// Package vision implements the client for the image annotation back-end:
// text detection (OCR), object localization, and label detection.
package vision
