// Package notify is a process-wide notification center keyed by event name.
//
// Engines that signal completion through global events post to the center;
// backends subscribe right before issuing a command and unsubscribe once the
// matching notification arrived or the wait ended.
//
//	unsubscribe := notify.Default().AddObserver(voice.SynthesizerDidFinish, func(n notify.Notification) {
//	    if n.Object == utteranceID {
//	        tok.Resolve(struct{}{})
//	    }
//	})
//	defer unsubscribe()
package notify
