// Package sink provides destinations for completed frame records.
//
// Sinks are attached to a tracker through its OnFrame callback and are fed
// one frame.Record per completed frame.
//
// # Implementations
//
//   - Nop: discards everything
//   - StreamSink: writes each record immediately (text, NDJSON or msgpack)
//   - RingSink: keeps the last N records in memory for a final dump
//   - MultiSink: fans a record out to several sinks
//
// # Levels
//
//   - LevelOff: nothing
//   - LevelSummary: frame number and event counts
//   - LevelEvents: plus subjects of every event
//   - LevelStacks: plus causal stacks of schedule events
//
// # Context propagation
//
// The CLI attaches the configured sink to the command context:
//
//	ctx = sink.WithSink(ctx, s)
//	s := sink.FromContext(ctx)
package sink
