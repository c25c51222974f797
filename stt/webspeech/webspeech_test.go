package webspeech

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/kbukum/voicekit/errors"
	"github.com/kbukum/voicekit/hostbridge"
	"github.com/kbukum/voicekit/testutil"
	"github.com/kbukum/voicekit/voice"
)

func recognitionPage() map[string]bool {
	return map[string]bool{hostbridge.RecognitionProbe: true}
}

func newProvider() (*Provider, *hostbridge.Injector, *testutil.LogCapture) {
	logs, log := testutil.NewLogCapture("stt.webspeech")
	inj := hostbridge.NewInjector(0)
	return New(Options{Injector: inj, Logger: log}), inj, logs
}

func TestInitialize(t *testing.T) {
	p, inj, _ := newProvider()
	bridge := testutil.NewFakeBridge(recognitionPage())
	sink := &testutil.RecordingSink{}

	if p.IsAvailable(context.Background()) {
		t.Fatal("must not be available before Initialize")
	}
	if !p.Initialize(context.Background(), bridge, sink) {
		t.Fatal("Initialize failed")
	}
	if !p.IsAvailable(context.Background()) {
		t.Error("expected available after Initialize")
	}
	if inj.Injections() != 1 {
		t.Errorf("expected one injection, got %d", inj.Injections())
	}
	inv := bridge.Invocations(FnInit)
	if len(inv) != 1 {
		t.Fatalf("expected one %s call, got %d", FnInit, len(inv))
	}
	if _, ok := inv[0].Args[0].(voice.CallbackSink); !ok {
		t.Errorf("plain bridges should receive a sink as callback target, got %T", inv[0].Args[0])
	}
	if inv[0].Args[1] != "de-DE" {
		t.Errorf("expected de-DE, got %v", inv[0].Args[1])
	}
}

func TestInitializeTwiceLoadsOnce(t *testing.T) {
	p, inj, _ := newProvider()
	bridge := testutil.NewFakeBridge(recognitionPage())
	sink := &testutil.RecordingSink{}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Initialize(context.Background(), bridge, sink)
		}()
	}
	wg.Wait()
	p.Initialize(context.Background(), bridge, sink)

	if inj.Injections() != 1 {
		t.Errorf("expected exactly one injection, got %d", inj.Injections())
	}
	if n := len(bridge.Invocations(FnInit)); n != 1 {
		t.Errorf("expected exactly one %s call, got %d", FnInit, n)
	}
}

func TestConcurrentInitializeForDifferentPages(t *testing.T) {
	p, _, _ := newProvider()
	ctx := context.Background()

	entered, release := make(chan struct{}), make(chan struct{})
	first := testutil.NewFakeBridge(recognitionPage())
	first.OnInvoke = func(fn string, _ []any) {
		if fn == FnInit {
			close(entered)
			<-release
		}
	}
	firstDone := make(chan bool, 1)
	go func() { firstDone <- p.Initialize(ctx, first, &testutil.RecordingSink{}) }()
	<-entered

	second := testutil.NewFakeBridge(recognitionPage())
	secondDone := make(chan bool, 1)
	go func() { secondDone <- p.Initialize(ctx, second, &testutil.RecordingSink{}) }()
	select {
	case ok := <-secondDone:
		if !ok {
			t.Error("second page failed to initialize")
		}
	case <-time.After(time.Second):
		t.Fatal("second page waited on the first page's initialization")
	}
	close(release)
	<-firstDone

	if n := len(second.Invocations(FnInit)); n != 1 {
		t.Errorf("second page should be initialized itself, got %d %s calls", n, FnInit)
	}
}

func TestInitializeFailuresReportFalse(t *testing.T) {
	tests := []struct {
		name  string
		setup func(b *testutil.FakeBridge)
	}{
		{name: "recognition unsupported", setup: func(b *testutil.FakeBridge) { b.SetBool(hostbridge.RecognitionProbe, false) }},
		{name: "no page", setup: func(b *testutil.FakeBridge) { b.EvalErr = stderrors.New("no page connected") }},
		{name: "init throws", setup: func(b *testutil.FakeBridge) { b.SetInvokeErr(FnInit, stderrors.New("not supported")) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _, logs := newProvider()
			bridge := testutil.NewFakeBridge(recognitionPage())
			tt.setup(bridge)

			if p.Initialize(context.Background(), bridge, &testutil.RecordingSink{}) {
				t.Fatal("expected Initialize to report false")
			}
			if p.IsAvailable(context.Background()) {
				t.Error("failed provider must be unavailable")
			}
			if logs.Count("error", "initialization failed") != 1 {
				t.Error("expected the failure to be logged")
			}
		})
	}
}

func TestStartStop(t *testing.T) {
	p, _, _ := newProvider()
	bridge := testutil.NewFakeBridge(recognitionPage())
	ctx := context.Background()

	if err := p.Start(ctx); !stderrors.Is(err, errors.NotInitialized("")) {
		t.Fatalf("expected NOT_INITIALIZED before Initialize, got %v", err)
	}
	if err := p.Stop(ctx); err != nil {
		t.Fatalf("idle Stop should be a no-op, got %v", err)
	}

	p.Initialize(ctx, bridge, &testutil.RecordingSink{})
	if err := p.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if err := p.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if n := len(bridge.Invocations(FnStart)); n != 2 {
		t.Errorf("second Start should restart the session, got %d start calls", n)
	}
	if !p.Listening() {
		t.Error("expected listening")
	}

	if err := p.Stop(ctx); err != nil {
		t.Fatal(err)
	}
	if err := p.Stop(ctx); err != nil {
		t.Fatal(err)
	}
	if n := len(bridge.Invocations(FnStop)); n != 1 {
		t.Errorf("expected one stop call, got %d", n)
	}
}

func TestStartStopFailuresAreReturned(t *testing.T) {
	p, _, logs := newProvider()
	bridge := testutil.NewFakeBridge(recognitionPage())
	ctx := context.Background()
	p.Initialize(ctx, bridge, &testutil.RecordingSink{})

	bridge.SetInvokeErr(FnStart, stderrors.New("not-allowed"))
	err := p.Start(ctx)
	if !stderrors.Is(err, errors.RecognitionFailed("", "", nil)) {
		t.Fatalf("expected RECOGNITION_FAILED, got %v", err)
	}
	if p.Listening() {
		t.Error("failed Start must not mark the session listening")
	}

	bridge.SetInvokeErr(FnStart, nil)
	if err := p.Start(ctx); err != nil {
		t.Fatal(err)
	}
	bridge.SetInvokeErr(FnStop, stderrors.New("bridge closed"))
	if err := p.Stop(ctx); !stderrors.Is(err, errors.RecognitionFailed("", "", nil)) {
		t.Fatalf("expected RECOGNITION_FAILED, got %v", err)
	}
	if logs.Count("error", "starting recognition failed") != 1 || logs.Count("error", "stopping recognition failed") != 1 {
		t.Error("expected both failures to be logged")
	}
}

func TestPageEndedSession(t *testing.T) {
	p, _, _ := newProvider()
	bridge := testutil.NewFakeBridge(recognitionPage())
	sink := &testutil.RecordingSink{}
	ctx := context.Background()
	p.Initialize(ctx, bridge, sink)
	if err := p.Start(ctx); err != nil {
		t.Fatal(err)
	}

	target := bridge.Invocations(FnInit)[0].Args[0].(voice.CallbackSink)
	target.OnSpeechResult("hallo welt", true)
	target.OnSpeechEnd()

	if p.Listening() {
		t.Error("end event should clear the listening flag")
	}
	results, _, ends := sink.Snapshot()
	if len(results) != 1 || results[0].Text != "hallo welt" || ends != 1 {
		t.Errorf("events should reach the sink, got %v and %d ends", results, ends)
	}
	if err := p.Stop(ctx); err != nil {
		t.Fatal(err)
	}
	if len(bridge.Invocations(FnStop)) != 0 {
		t.Error("Stop after the page ended the session must not reach the page")
	}
}

func TestLateEndOfRestartedSessionIsIgnored(t *testing.T) {
	p, _, _ := newProvider()
	bridge := testutil.NewFakeBridge(recognitionPage())
	sink := &testutil.RecordingSink{}
	ctx := context.Background()
	p.Initialize(ctx, bridge, sink)

	for range 2 {
		if err := p.Start(ctx); err != nil {
			t.Fatal(err)
		}
	}
	starts := bridge.Invocations(FnStart)
	if starts[0].Args[0] != int64(1) || starts[1].Args[0] != int64(2) {
		t.Fatalf("sessions should be numbered, got %v and %v", starts[0].Args, starts[1].Args)
	}

	// The page reports the aborted first session after the restart.
	target := bridge.Invocations(FnInit)[0].Args[0].(voice.SessionSink)
	target.OnSessionEnd(1)
	if !p.Listening() {
		t.Fatal("the end of a replaced session must not clear the listening flag")
	}
	if _, _, ends := sink.Snapshot(); ends != 0 {
		t.Errorf("the end of a replaced session must not reach the sink, got %d", ends)
	}

	if err := p.Stop(ctx); err != nil {
		t.Fatal(err)
	}
	if n := len(bridge.Invocations(FnStop)); n != 1 {
		t.Errorf("Stop must reach the page while the restarted session runs, got %d stop calls", n)
	}

	target.OnSessionEnd(2)
	if _, _, ends := sink.Snapshot(); ends != 1 {
		t.Errorf("expected the current session's end to reach the sink, got %d", ends)
	}
}

type sessionBridge struct {
	*testutil.FakeBridge
	mu      sync.Mutex
	session string
}

func (b *sessionBridge) Session() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.session
}

func (b *sessionBridge) replace(session string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.session = session
}

func TestStartRebindsAfterPageReplaced(t *testing.T) {
	p, inj, _ := newProvider()
	bridge := &sessionBridge{FakeBridge: testutil.NewFakeBridge(recognitionPage()), session: "page-1"}
	ctx := context.Background()

	if !p.Initialize(ctx, bridge, &testutil.RecordingSink{}) {
		t.Fatal("Initialize failed")
	}
	bridge.replace("page-2")
	if p.IsAvailable(ctx) {
		t.Error("a replaced page is not bound yet")
	}

	if err := p.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if n := len(bridge.Invocations(FnInit)); n != 2 {
		t.Errorf("expected a second %s for the new page, got %d", FnInit, n)
	}
	if inj.Injections() != 2 {
		t.Errorf("expected the script injected into the new page, got %d", inj.Injections())
	}
	if !p.IsAvailable(ctx) {
		t.Error("expected available after rebinding")
	}
}
