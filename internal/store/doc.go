// Package store provides SQLite-backed durable storage for the stream ledger.
//
// The store keeps:
//   - Streams: the current record of every stream
//   - Grants: every (grantor, delegate, action) triple ever written
//   - Events: the append-only, hash-chained audit log
//   - Balances: per-(token, account) holdings managed by the Vault
//
// # Critical Patterns
//
// Single transaction per operation:
//   - Store implements engine.Journal; Atomically opens one SQL transaction
//     and carries it in the context
//   - Vault reads the transaction from the context, so token movements
//     commit or roll back together with the stream record and its events
//
// Hash chain:
//   - Each event row stores prev_hash and hash, where
//     hash = SHA-256("tokenstream/event/v1" 0x00 canonical(event, id, prev_hash))
//   - VerifyChain recomputes every hash in seq order
//
// Deterministic reads:
//   - Events are always returned ORDER BY seq ASC
//   - Streams ORDER BY id ASC, grants ORDER BY grantor, delegate, action
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//   - One open connection: transactions from different goroutines queue
//     instead of failing with SQLITE_BUSY
//
// Amounts are stored as SQLite INTEGER (signed 64-bit). Quantities at or
// above 2^63 base units are rejected by the driver.
package store
