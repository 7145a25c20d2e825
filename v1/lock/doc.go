// Package lock provides a FIFO distributed lock kept in the shared store.
//
// Waiters append a token to a list and poll until their token reaches the
// head. A holder that keeps the lock longer than the maximum hold time is
// presumed crashed: the next waiter clears the queue and everyone still
// waiting sees Lost and must retry.
package lock
