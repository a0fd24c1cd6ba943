// Package audio drives the single audio output device. A device has one
// source slot; binding a new source replaces the previous one. Devices may
// refuse to start until the user has interacted with the program, in the
// way browsers block autoplay.
package audio
