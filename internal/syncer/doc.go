// Package syncer downloads a reciter's whole catalog for offline use.
// Items are fetched one at a time with a pacing delay between requests,
// and a run can be cancelled at any item boundary.
package syncer
