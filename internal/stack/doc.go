// Package stack models causal stack traces captured when a node is
// scheduled for rebuild.
//
// A trace is an ordered list of Frame values, most recent call first. Key
// wraps such a list in a comparable value so traces can be deduplicated by
// content, and Trim cuts a raw capture down to the part that starts at the
// state mutation which caused the schedule.
//
// Capturing is abstracted behind Source so hosts can plug in their own
// stack walker; tests use StaticSource, Go hosts can use RuntimeSource.
package stack
