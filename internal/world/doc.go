// Package world is the demonstration model the panels display: a trading
// character with gold, an inventory, equipment, quests, a party and a local
// market.
//
// Every mutator emits a domain event (see events.go) after applying its
// change. Nothing in this package knows about panels or the scheduler; the
// event bindings in the configuration connect the two.
//
// Simulator drives random mutations through host timers for the run and
// console commands.
package world
