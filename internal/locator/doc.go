// Package locator derives the fetch and cache key of a recitation from a
// reciter, an item number and a quality tier.
package locator
