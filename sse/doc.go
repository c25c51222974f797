// Package sse streams server-sent events to HTTP clients.
//
// A Hub routes published events to registered clients whose id matches a
// glob pattern. voiced uses it for GET /v1/transcripts/stream: every
// recognition event recorded by the transcript log is published to
// "transcripts:*".
//
//	hub := sse.NewHub(log)
//	go hub.Run()
//	defer hub.Stop()
//	_ = hub.Publish(sse.TopicTranscripts, sse.EventTranscript, entry)
package sse
