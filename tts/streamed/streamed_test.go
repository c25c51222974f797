package streamed

import (
	"context"
	stderrors "errors"
	"io"
	"testing"
	"time"

	"github.com/kbukum/voicekit/engine"
	"github.com/kbukum/voicekit/process"
	"github.com/kbukum/voicekit/testutil"
	"github.com/kbukum/voicekit/voice"
)

const espeakVoices = "Pty Language       Age/Gender VoiceName          File                 Other Languages\n" +
	" 5  de              --/M      German             gmw/de\n" +
	" 5  en-us           --/M      English_(America)  gmw/en-US\n"

func newRunner() *testutil.FakeRunner {
	r := testutil.NewFakeRunner()
	r.Outputs[testutil.Key("aplay", "--version")] = "aplay: version 1.2.10"
	r.Outputs[testutil.Key("espeak-ng", "--voices")] = espeakVoices
	r.StartStdout = "RIFF....WAVEfmt "
	return r
}

func newProvider(t *testing.T, r *testutil.FakeRunner, locale string) (*Provider, *testutil.LogCapture) {
	t.Helper()
	logs, log := testutil.NewLogCapture("tts.streamed")
	p := New(engine.NewEspeakStream(r, "espeak-ng"), engine.NewAplay(r, "aplay"), Options{Locale: locale, Logger: log})
	return p, logs
}

func TestSpeakHandsStreamToPlayer(t *testing.T) {
	r := newRunner()
	p, _ := newProvider(t, r, "")
	if err := p.Init(context.Background()); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	if out := p.Speak(context.Background(), "Hallo"); out != voice.OutcomeSubmitted {
		t.Fatalf("expected submitted, got %s", out)
	}
	procs := r.Started()
	if len(procs) != 2 {
		t.Fatalf("expected synthesizer and player, got %d processes", len(procs))
	}
	synth, player := procs[0], procs[1]
	if got := testutil.Key(synth.Command.Binary, synth.Command.Args...); got != "espeak-ng --stdout --stdin -v de" {
		t.Errorf("unexpected synth command %q", got)
	}
	if synth.Stdin() != "Hallo" {
		t.Errorf("text not passed on stdin: %q", synth.Stdin())
	}
	if player.Stdin() != "RIFF....WAVEfmt " {
		t.Errorf("player did not receive the stream, got %q", player.Stdin())
	}

	p.StopSpeaking(context.Background())
	if synth.Stops() != 1 || player.Stops() != 1 {
		t.Errorf("expected both processes stopped once, got %d/%d", synth.Stops(), player.Stops())
	}
	p.StopSpeaking(context.Background())
	if synth.Stops() != 1 || player.Stops() != 1 {
		t.Error("second StopSpeaking must be a no-op")
	}
}

func TestStopAfterPlaybackFinishedIsNoop(t *testing.T) {
	r := newRunner()
	r.AutoExit = true
	p, _ := newProvider(t, r, "")
	if err := p.Init(context.Background()); err != nil {
		t.Fatal(err)
	}

	if out := p.Speak(context.Background(), "Hallo"); out != voice.OutcomeSubmitted {
		t.Fatalf("expected submitted, got %s", out)
	}
	testutil.Eventually(t, time.Second, func() bool {
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.current == nil
	}, "finished playback not cleared")

	p.StopSpeaking(context.Background())
	for _, proc := range r.Started() {
		if proc.Stops() != 0 {
			t.Error("idle StopSpeaking must not stop anything")
		}
	}
}

func TestSpeakStopsPreviousStream(t *testing.T) {
	r := newRunner()
	p, _ := newProvider(t, r, "")
	if err := p.Init(context.Background()); err != nil {
		t.Fatal(err)
	}

	p.Speak(context.Background(), "eins")
	p.Speak(context.Background(), "zwei")

	procs := r.Started()
	if len(procs) != 4 {
		t.Fatalf("expected 4 processes, got %d", len(procs))
	}
	if procs[0].Stops() != 1 || procs[1].Stops() != 1 {
		t.Error("first stream should be stopped by the second Speak")
	}
	if procs[2].Stops() != 0 || procs[3].Stops() != 0 {
		t.Error("second stream must keep playing")
	}
}

type gatedSynth struct {
	Synthesizer
	entered chan struct{}
	release chan struct{}
}

func (g *gatedSynth) Synthesize(ctx context.Context, voiceID, text string) (process.Process, error) {
	close(g.entered)
	<-g.release
	return g.Synthesizer.Synthesize(ctx, voiceID, text)
}

func TestStopSpeakingDuringHandoff(t *testing.T) {
	r := newRunner()
	synth := &gatedSynth{
		Synthesizer: engine.NewEspeakStream(r, "espeak-ng"),
		entered:     make(chan struct{}),
		release:     make(chan struct{}),
	}
	_, log := testutil.NewLogCapture("tts.streamed")
	p := New(synth, engine.NewAplay(r, "aplay"), Options{Logger: log})
	if err := p.Init(context.Background()); err != nil {
		t.Fatal(err)
	}

	result := make(chan voice.Outcome, 1)
	go func() { result <- p.Speak(context.Background(), "Hallo") }()
	<-synth.entered

	stopped := make(chan struct{})
	go func() {
		p.StopSpeaking(context.Background())
		close(stopped)
	}()
	time.Sleep(20 * time.Millisecond)
	close(synth.release)
	<-stopped

	if out := <-result; out != voice.OutcomeSubmitted {
		t.Fatalf("expected submitted, got %s", out)
	}
	for _, proc := range r.Started() {
		if proc.Stops() != 1 {
			t.Errorf("%s left running after StopSpeaking", proc.Command.Binary)
		}
	}
}

func TestFallbackVoiceWarnsOnce(t *testing.T) {
	r := newRunner()
	p, logs := newProvider(t, r, "ja-JP")
	if err := p.Init(context.Background()); err != nil {
		t.Fatal(err)
	}

	p.Speak(context.Background(), "Hallo")
	synth := r.Started()[0]
	if got := testutil.Key(synth.Command.Binary, synth.Command.Args...); got != "espeak-ng --stdout --stdin" {
		t.Errorf("expected default voice, got %q", got)
	}
	if n := logs.Count("warn", "no installed voice"); n != 1 {
		t.Errorf("expected one fallback warning, got %d", n)
	}
}

func TestInitFailsWithoutPlayer(t *testing.T) {
	r := newRunner()
	r.RunErrors[testutil.Key("aplay", "--version")] = stderrors.New("executable file not found")
	p, logs := newProvider(t, r, "")

	if err := p.Init(context.Background()); err == nil {
		t.Fatal("expected init failure")
	}
	if p.State() != voice.StateFailed || p.IsAvailable(context.Background()) {
		t.Errorf("expected failed and unavailable, got %s", p.State())
	}
	if out := p.Speak(context.Background(), "Hallo"); out != voice.OutcomeSkipped {
		t.Errorf("expected skipped, got %s", out)
	}
	if len(r.Started()) != 0 {
		t.Error("no process may be started while not ready")
	}
	if logs.Count("error", "initialization failed") != 1 {
		t.Error("expected the init failure to be logged")
	}
}

func TestHandoffFailureStopsSynthesizer(t *testing.T) {
	r := newRunner()
	p, _ := newProvider(t, r, "")
	if err := p.Init(context.Background()); err != nil {
		t.Fatal(err)
	}

	failing := &failingPlayer{Player: engine.NewAplay(r, "aplay")}
	p.player = failing
	if out := p.Speak(context.Background(), "Hallo"); out != voice.OutcomeFailed {
		t.Fatalf("expected failed, got %s", out)
	}
	if synth := r.Last(); synth.Stops() != 1 {
		t.Error("synthesizer must be stopped when the handoff fails")
	}
}

type failingPlayer struct {
	Player
}

func (f *failingPlayer) Play(context.Context, io.Reader) (process.Process, error) {
	return nil, stderrors.New("aplay: device busy")
}

func TestCloseMakesUnavailable(t *testing.T) {
	r := newRunner()
	p, _ := newProvider(t, r, "")
	if err := p.Init(context.Background()); err != nil {
		t.Fatal(err)
	}
	p.Speak(context.Background(), "Hallo")

	if err := p.Close(context.Background()); err != nil {
		t.Fatal(err)
	}
	if p.IsAvailable(context.Background()) {
		t.Error("closed provider must be unavailable")
	}
	if r.Started()[1].Stops() != 1 {
		t.Error("Close should stop playback")
	}
}
