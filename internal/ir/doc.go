// Package ir provides the shared domain vocabulary for tokenstream.
//
// This package contains type definitions, coded errors and the canonical
// serialization used for audit hashing. All other internal packages import
// ir; ir imports nothing internal.
//
// Key design constraints:
//   - Amounts are unsigned integer base units, never floats
//   - Times are Unix seconds (Timestamp)
//   - A Stream's lifecycle is a sealed State (Active, Paused, Terminated);
//     no field changes meaning based on a flag
//   - Action is a closed enumeration of delegable operations
//   - All JSON tags use snake_case
package ir
