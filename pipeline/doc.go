// Package pipeline runs one push-to-talk turn: validate the upload, trim it,
// transcribe, generate a reply, synthesize speech and normalize the result
// back to canonical WAV. Each stage fails on its own terms and nothing after
// a failed stage runs.
package pipeline
