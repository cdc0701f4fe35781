// Package store provides the durable file store for dubswitch.
//
// Two artefacts survive restarts:
//
//   - The channel matrix: a JSON document keyed by two-digit channel id,
//     holding each channel's routing preference record.
//   - The preferred HTTP port: a plain-text scalar.
//
// Both are written with temp-file-plus-rename so a crash mid-write never
// leaves a half-written canonical file behind. When the atomic write
// fails (exotic filesystems, containers with odd mount semantics) a
// best-effort direct write is attempted and surfaced to the caller as a
// warning rather than silently hidden.
package store
