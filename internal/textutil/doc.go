// Package textutil provides small text normalization helpers shared across
// the pipeline, primarily the shard-key sanitization that maps a free-text
// cohort filter onto a filesystem-safe directory name.
package textutil
