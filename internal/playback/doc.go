// Package playback plays recitations cache-first. A play request is served
// from the content store when possible, otherwise streamed from the network
// while the store is filled in the background. When the output device
// refuses to start without user interaction, the request is parked as a
// Gesture that the UI resumes on the next interaction.
package playback
