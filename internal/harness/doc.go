// Package harness runs stream scenarios end to end.
//
// A scenario is a YAML file that funds accounts, drives the engine through
// a timed list of operations and then checks the final ledger. Each run
// gets a fresh in-memory SQLite store with its vault, a manual clock and
// sequential event ids, so the same scenario always produces the same
// audit log.
//
// # Scenario Format
//
//	name: linear_withdraw
//	description: "Recipient withdraws half way through"
//	ledger: vault            # optional, default "tokenstream"
//	epoch: 1700000000        # optional; every "at", "start" and "stop" is relative to it
//	policy:                  # optional
//	  sweep_dust: false
//	  resume: sender
//	balances:
//	  - { account: alice, token: TKN, amount: 5000 }
//	steps:
//	  - at: -10
//	    op: create
//	    caller: alice
//	    recipient: bob
//	    token: TKN
//	    deposit: 1000
//	    start: 0
//	    stop: 100
//	    expect: { stream: 1 }
//	  - at: 50
//	    op: withdraw
//	    caller: bob
//	    stream: 1
//	    expect: { amount: 500 }
//	assertions:
//	  - { type: stream, stream: 1, status: active, remaining: 500 }
//	  - { type: balance, account: bob, token: TKN, amount: 500 }
//	  - { type: conservation, token: TKN }
//	  - { type: event_count, kind: stream.withdrawn, count: 1 }
//
// A step without expect must succeed. expect.error names the error code
// a step must fail with.
//
// # Assertion Types
//
//   - stream: status, remaining, carried or withdrawable of one stream
//   - balance: vault balance of one account
//   - conservation: balances of a token sum to what was funded, and the
//     ledger account holds exactly the streams' remaining deposits
//   - event_count: number of audit events, optionally of one kind
//
// # Golden Traces
//
// RunWithGolden compares the audit log with testdata/golden/<name>.golden.
// Regenerate with:
//
//	go test ./internal/harness -update
package harness
