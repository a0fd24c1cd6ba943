// Package fetch retrieves recitation audio over HTTP and persists it to the
// content store without blocking playback.
package fetch
