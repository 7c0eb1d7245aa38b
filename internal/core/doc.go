// Package core provides the business logic for editing year-indexed ID
// registry files.
//
// This package contains all domain logic independent of any UI or transport
// layer. It can be driven by web handlers, CLI tools, or tests without
// modification.
//
// # Architecture
//
// The package is organized around a few key concepts:
//
//   - Service: the main entry point for all operations (load, edit, save).
//   - Sessions: each loaded file lives in an in-memory editing session that
//     keeps the parsed table together with the exact original text, so saves
//     can rewrite only the lines that actually changed.
//   - Loads: reading a file (from an upload or from remote storage) passes
//     through a concurrency limiter so a burst of large files cannot exhaust
//     memory.
//
// # Load Pipeline
//
// Loading a file runs the same pipeline regardless of where the bytes came
// from:
//
//  1. The raw bytes are decoded (Shift_JIS first, then UTF-8, then detection).
//  2. The decoded text is parsed into a registry table with per-row line
//     references.
//  3. A session is created holding the table and the original text.
//
// # Error Handling
//
// Technical errors are mapped to user-facing messages using [MapError].
// Each error category has a unique code for support reference:
//
//   - FILE001-FILE004: file problems (type, empty, malformed, missing columns)
//   - EDIT001-EDIT005: rejected edits (immutable year, bad column or row)
//   - SES001-SES002: session problems (expired, too many loads)
//   - REM001-REM005: remote storage problems (unconfigured, missing, failing)
package core
