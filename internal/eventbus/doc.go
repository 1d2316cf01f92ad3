// Package eventbus provides the in-process publish/subscribe hub that domain
// code emits into and the view-sync router listens on.
//
// Emission is synchronous: Emit returns after every listener ran. Wildcard
// listeners registered under "*" see each event wrapped in an Envelope. A
// listener that panics is skipped and recorded in a bounded failure list;
// the remaining listeners still run.
//
// Besides immediate emission the bus keeps a bounded history of emitted
// events and a deferred queue that is drained with Flush.
//
// Bus satisfies viewsync.EventSource.
package eventbus
