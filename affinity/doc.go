// Package affinity runs functions on one designated OS thread.
//
// Some native speech engines may only be touched from the thread that
// created them. An Executor owns a goroutine locked to its OS thread with
// runtime.LockOSThread; every engine call is marshaled onto it with Do or
// Post, and callbacks fired by the engine can be posted back the same way.
//
// The thread is released by Close, which the owning backend calls on
// disposal.
package affinity
