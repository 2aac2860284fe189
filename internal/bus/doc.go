// Package bus provides the coordination primitives shared by the tasks of
// one operate phase.
//
//   - Channel: bounded FIFO queue. Senders suspend while it is full, nothing
//     is ever dropped.
//   - Signal: single slot where the latest value wins. The waiter consumes
//     the value and is woken once per batch of signals.
//   - Event: one-shot flag, set at most once, observable by any number of
//     goroutines.
//
// All primitives are safe for concurrent use and are built per cycle, so
// nothing in this package is global.
package bus
