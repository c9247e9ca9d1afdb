// Package pipeline runs the stages of one reply-thread check in
// sequence.
//
// A check moves through four stages: fetch the current reply snapshot,
// diff it against persisted state, classify the replies, and assemble
// the report. Each stage is a Step that receives the shared check
// aggregate and fills in its part.
//
// Design decision: We use a pipeline pattern instead of direct function
// calls because:
// 1. It allows easy addition/removal of steps without modifying core logic
// 2. It provides consistent error handling and logging across steps
// 3. It supports cancellation via context between stages
//
// The fetch stage prefers the rendered-browser path and races the
// configured mirror instances with errgroup when falling back to
// direct fetching.
package pipeline
