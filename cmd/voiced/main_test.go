package main

import (
	"context"
	"testing"
)

type orderRecorder struct{ calls []string }

type recordingServer struct{ rec *orderRecorder }

func (s recordingServer) Stop(context.Context) error {
	s.rec.calls = append(s.rec.calls, "server")
	return nil
}

type recordingEvents struct{ rec *orderRecorder }

func (e recordingEvents) Stop() { e.rec.calls = append(e.rec.calls, "events") }

func TestShutdownEndsStreamsBeforeServer(t *testing.T) {
	rec := &orderRecorder{}
	if err := shutdownHTTP(context.Background(), recordingServer{rec}, recordingEvents{rec}); err != nil {
		t.Fatal(err)
	}
	if len(rec.calls) != 2 || rec.calls[0] != "events" || rec.calls[1] != "server" {
		t.Errorf("shutdown order = %v, want [events server]", rec.calls)
	}
}
