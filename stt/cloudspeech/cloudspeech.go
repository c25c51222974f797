// Package cloudspeech recognizes speech with Google Cloud Speech-to-Text
// streaming recognition. Audio comes from a local capture process and
// transcripts are delivered to the sink bound by Initialize.
//
// Session start is guarded by a circuit breaker: after repeated failures the
// provider reports unavailable so the coordinator falls through to the next
// recognizer until the breaker lets a probe call through again.
package cloudspeech

import (
	"context"
	stderrors "errors"
	"io"
	"sync"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/kbukum/voicekit/errors"
	"github.com/kbukum/voicekit/logger"
	"github.com/kbukum/voicekit/process"
	"github.com/kbukum/voicekit/provider"
	"github.com/kbukum/voicekit/resilience"
	"github.com/kbukum/voicekit/voice"
)

const chunkSize = 4096

// Stream is one bidirectional recognition stream.
type Stream interface {
	Send(*speechpb.StreamingRecognizeRequest) error
	Recv() (*speechpb.StreamingRecognizeResponse, error)
	CloseSend() error
}

// Client opens recognition streams.
type Client interface {
	Open(ctx context.Context) (Stream, error)
	Close() error
}

// Capturer records raw mono 16-bit little-endian PCM, read from the
// process Stdout.
type Capturer interface {
	Capture(ctx context.Context, sampleRate int) (process.Process, error)
}

type gcpClient struct {
	c *speech.Client
}

// NewClient creates a Cloud Speech client. An empty credentialsFile uses
// Application Default Credentials.
func NewClient(ctx context.Context, credentialsFile string) (Client, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	c, err := speech.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return &gcpClient{c: c}, nil
}

func (g *gcpClient) Open(ctx context.Context) (Stream, error) {
	return g.c.StreamingRecognize(ctx)
}

func (g *gcpClient) Close() error { return g.c.Close() }

// Options configures a Provider.
type Options struct {
	// Name defaults to "cloudspeech".
	Name string
	// Language defaults to voice.DefaultLocale.
	Language string
	// SampleRate defaults to 16000.
	SampleRate int
	// Breaker defaults to resilience.DefaultCircuitBreakerConfig(Name).
	Breaker *resilience.CircuitBreaker
	Logger  *logger.Logger
}

// session is published before its stream opens so Stop can cancel the
// opening. capture is nil until the stream is up and is guarded by
// Provider.mu.
type session struct {
	cancel  context.CancelFunc
	capture process.Process
	done    chan struct{}
}

// Provider is a voice.SpeechRecognitionProvider over a streaming Client.
type Provider struct {
	client  Client
	capture Capturer
	opts    Options
	log     *logger.Logger
	breaker *resilience.CircuitBreaker

	mu      sync.Mutex
	sink    voice.CallbackSink
	closed  bool
	current *session
}

var (
	_ voice.SpeechRecognitionProvider = (*Provider)(nil)
	_ provider.Closeable              = (*Provider)(nil)
	_ provider.HealthChecker          = (*Provider)(nil)
)

// New creates a provider. Initialize binds the transcript sink.
func New(client Client, capture Capturer, opts Options) *Provider {
	if opts.Name == "" {
		opts.Name = "cloudspeech"
	}
	if opts.Language == "" {
		opts.Language = voice.DefaultLocale
	}
	if opts.SampleRate <= 0 {
		opts.SampleRate = 16000
	}
	if opts.Logger == nil {
		opts.Logger = logger.Get("stt.cloudspeech")
	}
	if opts.Breaker == nil {
		cfg := resilience.DefaultCircuitBreakerConfig(opts.Name)
		log := opts.Logger
		cfg.OnStateChange = func(name string, from, to resilience.State) {
			log.Warn("recognizer circuit changed", logger.Fields("provider", name, "from", from.String(), "to", to.String()))
		}
		opts.Breaker = resilience.NewCircuitBreaker(cfg)
	}
	return &Provider{client: client, capture: capture, opts: opts, log: opts.Logger, breaker: opts.Breaker}
}

// Name returns the provider name.
func (p *Provider) Name() string { return p.opts.Name }

// IsAvailable reports whether a sink is bound and the breaker lets calls
// through.
func (p *Provider) IsAvailable(context.Context) bool {
	p.mu.Lock()
	ready := p.sink != nil && !p.closed
	p.mu.Unlock()
	return ready && p.breaker.Allows()
}

// Initialize binds sink. The host bridge is not used: audio is captured
// locally. Calling it again rebinds the sink.
func (p *Provider) Initialize(_ context.Context, _ voice.HostBridge, sink voice.CallbackSink) bool {
	if sink == nil {
		p.log.Error("recognition initialization failed", logger.MergeWithError(
			logger.ProviderFields(p.opts.Name, "initialize"),
			errors.InvalidInput("sink", "must not be nil"),
		))
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	p.sink = sink
	return true
}

// Start opens a recognition stream and starts capturing audio into it. A
// session already in progress is stopped first.
func (p *Provider) Start(ctx context.Context) error {
	p.mu.Lock()
	sink := p.sink
	p.mu.Unlock()
	if sink == nil {
		return errors.NotInitialized(p.opts.Name)
	}

	sctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s := &session{cancel: cancel, done: make(chan struct{})}
	p.mu.Lock()
	prev := p.current
	p.current = s
	p.mu.Unlock()
	if prev != nil {
		if err := p.stopSession(ctx, prev); err != nil {
			p.abort(s)
			return err
		}
	}

	var (
		stream Stream
		capt   process.Process
	)
	err := p.breaker.Execute(sctx, func(sctx context.Context) error {
		var err error
		stream, err = p.open(sctx)
		if err != nil {
			return err
		}
		capt, err = p.capture.Capture(sctx, p.opts.SampleRate)
		if err != nil {
			_ = stream.CloseSend()
		}
		return err
	})

	p.mu.Lock()
	live := p.current == s
	if live && err == nil {
		s.capture = capt
	}
	p.mu.Unlock()

	if !live {
		// Stopped or replaced while the stream was opening.
		if err == nil {
			_ = capt.Stop(context.WithoutCancel(ctx))
			_ = stream.CloseSend()
		}
		cancel()
		close(s.done)
		sink.OnSpeechEnd()
		p.log.Debug("recognition stopped while starting", logger.ProviderFields(p.opts.Name, "start"))
		return nil
	}
	if err != nil {
		p.abort(s)
		p.log.Error("starting recognition failed", logger.MergeWithError(logger.ProviderFields(p.opts.Name, "start"), err))
		return errors.RecognitionFailed(p.opts.Name, "start", err)
	}

	go p.pump(s, stream)
	go p.receive(s, stream, sink)

	p.log.Info("recognition started", logger.Fields(
		logger.FieldProvider, p.opts.Name,
		logger.FieldLocale, p.opts.Language,
	))
	return nil
}

// abort unpublishes a session that never got its stream.
func (p *Provider) abort(s *session) {
	p.mu.Lock()
	if p.current == s {
		p.current = nil
	}
	p.mu.Unlock()
	s.cancel()
	close(s.done)
}

func (p *Provider) open(ctx context.Context) (Stream, error) {
	stream, err := p.client.Open(ctx)
	if err != nil {
		return nil, err
	}
	err = stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					Encoding:        speechpb.RecognitionConfig_LINEAR16,
					SampleRateHertz: int32(p.opts.SampleRate),
					LanguageCode:    p.opts.Language,
				},
				InterimResults: true,
			},
		},
	})
	if err != nil {
		_ = stream.CloseSend()
		return nil, err
	}
	return stream, nil
}

// pump copies captured audio into the stream until the capture ends.
func (p *Provider) pump(s *session, stream Stream) {
	defer func() { _ = stream.CloseSend() }()

	audio := s.capture.Stdout()
	buf := make([]byte, chunkSize)
	for {
		n, err := audio.Read(buf)
		if n > 0 {
			req := &speechpb.StreamingRecognizeRequest{
				StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
					AudioContent: append([]byte(nil), buf[:n]...),
				},
			}
			if sendErr := stream.Send(req); sendErr != nil {
				return
			}
		}
		if err != nil {
			if !stderrors.Is(err, io.EOF) {
				p.log.Debug("audio capture ended", logger.MergeWithError(logger.ProviderFields(p.opts.Name, "capture"), err))
			}
			return
		}
	}
}

// receive forwards transcripts to sink until the stream ends, then reports
// the end of the session.
func (p *Provider) receive(s *session, stream Stream, sink voice.CallbackSink) {
	defer close(s.done)
	defer sink.OnSpeechEnd()
	defer p.clear(s)

	for {
		resp, err := stream.Recv()
		if err != nil {
			if !stderrors.Is(err, io.EOF) && status.Code(err) != codes.Canceled {
				p.log.Warn("recognition stream failed", logger.MergeWithError(logger.ProviderFields(p.opts.Name, "recv"), err))
				sink.OnSpeechError(err.Error())
			}
			return
		}
		if e := resp.GetError(); e != nil && e.GetCode() != 0 {
			sink.OnSpeechError(e.GetMessage())
			continue
		}
		for _, result := range resp.GetResults() {
			alts := result.GetAlternatives()
			if len(alts) == 0 {
				continue
			}
			sink.OnSpeechResult(alts[0].GetTranscript(), result.GetIsFinal())
		}
	}
}

func (p *Provider) clear(s *session) {
	s.cancel()
	_ = s.capture.Stop(context.Background())
	p.mu.Lock()
	if p.current == s {
		p.current = nil
	}
	p.mu.Unlock()
}

// Stop ends the session and waits for its end event. A session still
// opening its stream is cancelled. Stopping while idle is a no-op.
func (p *Provider) Stop(ctx context.Context) error {
	p.mu.Lock()
	s := p.current
	p.current = nil
	p.mu.Unlock()
	if s == nil {
		return nil
	}
	return p.stopSession(ctx, s)
}

func (p *Provider) stopSession(ctx context.Context, s *session) error {
	p.mu.Lock()
	capt := s.capture
	p.mu.Unlock()

	var err error
	if capt != nil {
		err = capt.Stop(ctx)
	}
	s.cancel()
	select {
	case <-s.done:
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err != nil {
		p.log.Error("stopping recognition failed", logger.MergeWithError(logger.ProviderFields(p.opts.Name, "stop"), err))
		return errors.RecognitionFailed(p.opts.Name, "stop", err)
	}
	return nil
}

// Listening reports whether a session is in progress.
func (p *Provider) Listening() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current != nil
}

// Health reports the breaker state alongside availability.
func (p *Provider) Health(ctx context.Context) provider.HealthStatus {
	p.mu.Lock()
	bound, closed, listening := p.sink != nil, p.closed, p.current != nil
	p.mu.Unlock()

	snap := p.breaker.Snapshot()
	state := snap.State
	h := provider.HealthStatus{
		Status: provider.StatusHealthy,
		Details: map[string]any{
			"breaker":   state.String(),
			"failures":  snap.Failures,
			"listening": listening,
		},
	}
	if !snap.RetryAt.IsZero() {
		h.Details["retry_at"] = snap.RetryAt.UTC().Format(time.RFC3339)
	}
	switch {
	case closed:
		h.Status, h.Message = provider.StatusUnavailable, "closed"
	case !bound:
		h.Status, h.Message = provider.StatusUnavailable, "not initialized"
	case state == resilience.StateOpen:
		h.Status, h.Message = provider.StatusUnavailable, "circuit open after repeated stream failures"
	case state == resilience.StateHalfOpen:
		h.Status, h.Message = provider.StatusDegraded, "probing after stream failures"
	}
	return h
}

// Close ends any session and closes the client.
func (p *Provider) Close(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	stopErr := p.Stop(ctx)
	if err := p.client.Close(); err != nil {
		return err
	}
	return stopErr
}
