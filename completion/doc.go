// Package completion bridges single-shot engine callbacks to waiting callers.
//
// A Token is created when a call starts, fulfilled exactly once by whichever
// of success, engine error, timeout or cancellation happens first, and then
// discarded. Later fulfillment attempts are no-ops that report false, so a
// late engine notification can never overwrite a timeout.
//
//	tok := completion.New[struct{}]()
//	engine.OnDone(func(err error) {
//	    if err != nil {
//	        tok.Reject(err)
//	        return
//	    }
//	    tok.Resolve(struct{}{})
//	})
//	_, err := tok.Await(ctx, 30*time.Second)
//	if errors.Is(err, completion.ErrTimedOut) {
//	    // normal outcome, playback may still be running
//	}
package completion
