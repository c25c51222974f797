package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apperrors "github.com/kbukum/voicekit/errors"
	"github.com/kbukum/voicekit/hostbridge"
	"github.com/kbukum/voicekit/observability"
	"github.com/kbukum/voicekit/sse"
	"github.com/kbukum/voicekit/transcript"
	"github.com/kbukum/voicekit/validation"
	"github.com/kbukum/voicekit/voice"
)

// Speaker is the synthesis side of the voice API, usually a *tts.Coordinator.
type Speaker interface {
	Speak(ctx context.Context, text string) voice.Outcome
	StopSpeaking(ctx context.Context)
	Active(ctx context.Context) string
	Describe(ctx context.Context) []voice.Descriptor
}

// Listener is the recognition side of the voice API, usually a *stt.Coordinator.
type Listener interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Active(ctx context.Context) string
	Describe(ctx context.Context) []voice.Descriptor
}

// TranscriptSource lists recent recognition events.
type TranscriptSource interface {
	Recent() []transcript.Entry
}

// VoiceRoutes are the handlers behind the /v1 API and the bridge endpoints.
// Bridge and Events are optional; without them /bridge and
// /v1/transcripts/stream are not registered.
type VoiceRoutes struct {
	Speaker     Speaker
	Listener    Listener
	Transcripts TranscriptSource
	Bridge      http.Handler
	Events      *sse.Hub
}

// CapabilityView describes one capability in GET /v1/providers.
type CapabilityView struct {
	Active    string             `json:"active"`
	Providers []voice.Descriptor `json:"providers"`
}

// ProvidersResponse is the body of GET /v1/providers.
type ProvidersResponse struct {
	TTS CapabilityView `json:"tts"`
	STT CapabilityView `json:"stt"`
}

// SpeakRequest is the body of POST /v1/speak.
type SpeakRequest struct {
	Text string `json:"text" validate:"notblank,max=4096"`
}

// SpeakResponse reports how a speak request ended.
type SpeakResponse struct {
	Outcome voice.Outcome `json:"outcome"`
	Spoke   bool          `json:"spoke"`
}

// ListenResponse names the recognizer serving a started session.
type ListenResponse struct {
	Active string `json:"active"`
}

// RegisterVoiceRoutes registers the voice API on the Gin engine.
func (s *Server) RegisterVoiceRoutes(r VoiceRoutes) {
	v1 := s.engine.Group("/v1")
	v1.GET("/providers", r.providers)
	v1.POST("/speak", r.speak)
	v1.POST("/speak/stop", r.stopSpeaking)
	v1.POST("/listen/start", r.startListening)
	v1.POST("/listen/stop", r.stopListening)
	v1.GET("/transcripts", r.transcripts)
	if r.Events != nil {
		v1.GET("/transcripts/stream", r.streamTranscripts)
	}

	s.engine.GET("/bridge.js", gin.WrapH(hostbridge.BridgeScriptHandler()))
	if r.Bridge != nil {
		s.engine.GET("/bridge", gin.WrapH(r.Bridge))
	}
}

// streamTranscripts sends each new recognition event as it is recorded.
func (r VoiceRoutes) streamTranscripts(c *gin.Context) {
	sse.ServeSSE(r.Events, c.Writer, c.Request, sse.TranscriptClientPrefix+uuid.NewString())
}

func (r VoiceRoutes) providers(c *gin.Context) {
	ctx := c.Request.Context()
	RespondOK(c, ProvidersResponse{
		TTS: CapabilityView{Active: r.Speaker.Active(ctx), Providers: r.Speaker.Describe(ctx)},
		STT: CapabilityView{Active: r.Listener.Active(ctx), Providers: r.Listener.Describe(ctx)},
	})
}

// speak blocks until the utterance ends, so a client disconnect interrupts
// playback.
func (r VoiceRoutes) speak(c *gin.Context) {
	var req SpeakRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondWithError(c, apperrors.InvalidInput("body", err.Error()))
		return
	}
	if err := validation.Validate(req); err != nil {
		RespondWithError(c, err)
		return
	}
	ctx := c.Request.Context()
	outcome := r.Speaker.Speak(ctx, req.Text)
	observability.AnnotateContext(ctx, observability.AttrCapability, "tts")
	observability.AnnotateContext(ctx, observability.AttrOutcome, outcome.String())
	RespondOK(c, SpeakResponse{Outcome: outcome, Spoke: outcome.Spoke()})
}

func (r VoiceRoutes) stopSpeaking(c *gin.Context) {
	r.Speaker.StopSpeaking(c.Request.Context())
	RespondNoContent(c)
}

func (r VoiceRoutes) startListening(c *gin.Context) {
	ctx := c.Request.Context()
	observability.AnnotateContext(ctx, observability.AttrCapability, "stt")
	if err := r.Listener.Start(ctx); err != nil {
		RespondWithError(c, err)
		return
	}
	active := r.Listener.Active(ctx)
	observability.AnnotateContext(ctx, observability.AttrProvider, active)
	RespondOK(c, ListenResponse{Active: active})
}

func (r VoiceRoutes) stopListening(c *gin.Context) {
	if err := r.Listener.Stop(c.Request.Context()); err != nil {
		RespondWithError(c, err)
		return
	}
	RespondNoContent(c)
}

// transcripts lists recent events, optionally filtered by ?kind=final.
func (r VoiceRoutes) transcripts(c *gin.Context) {
	entries := []transcript.Entry{}
	if r.Transcripts != nil {
		entries = append(entries, r.Transcripts.Recent()...)
	}
	if kind := c.Query("kind"); kind != "" {
		filtered := entries[:0]
		for _, e := range entries {
			if string(e.Kind) == kind {
				filtered = append(filtered, e)
			}
		}
		entries = filtered
	}
	RespondOK(c, entries)
}
