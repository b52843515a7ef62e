// Package services defines shared error handling utilities consumed by the
// pipeline stages and external integrations.
//
// Key responsibilities:
//   - Structured error markers plus the Wrap helper that tag failures for
//     consistent classification (per-item retry vs structural abort).
//   - The Structural predicate the orchestrator uses to decide whether a
//     stage error should abort the whole run.
//
// Use these helpers when wiring new stage logic so operational behaviour
// stays uniform across the pipeline.
package services
