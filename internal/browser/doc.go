// Package browser wraps the chromedp automation engine behind the small
// page-control capability the pipeline consumes: navigate, query, type,
// click, evaluate, and cookie transfer.
//
// Every wait is bounded; timeout expiry surfaces as a typed Outcome rather
// than an error, so callers decide whether "condition did not hold" matters.
// The package owns exactly one browser context per process run — stages share
// it sequentially and never load pages concurrently.
package browser
