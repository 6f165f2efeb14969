// Package engine implements the settlement engine for token streams.
//
// The engine is the only entry point that mutates streams. Each operation
// combines an authorization check, an accrual computation, a ledger
// mutation and zero or more calls to the TransferPort, and either commits
// all of it or none of it.
//
// ARCHITECTURE:
//
// Per-stream serialization:
// Mutating operations run under the ledger's per-record lock, so no two
// operations observe-then-commit the same stream. Operations on different
// streams run in parallel.
//
// Operation flow:
//  1. Ledger.Update hands the operation a copy of the record
//  2. Journal.Atomically opens a transaction
//  3. Transfers run through the TransferPort
//  4. The new record and its audit events are written through the Writer
//  5. The transaction commits, then the ledger commits the copy
//  6. Events are published to sinks and metrics are recorded
//
// Any failure before step 5 completes leaves the record, the journal and
// (for ports enlisted in the journal transaction) all balances unchanged.
//
// Time:
// Accrual is computed lazily from Clock.Now at call time. There are no
// timers and no background goroutines.
package engine
