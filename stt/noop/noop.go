// Package noop provides the speech recognition fallback terminus.
package noop

import (
	"context"

	"github.com/kbukum/voicekit/voice"
)

// Name is the provider name.
const Name = "noop"

// Provider never initializes and ignores Start and Stop.
type Provider struct{}

var _ voice.SpeechRecognitionProvider = Provider{}

// New returns the no-op provider.
func New() Provider { return Provider{} }

// Name returns "noop".
func (Provider) Name() string { return Name }

// IsAvailable always reports false.
func (Provider) IsAvailable(context.Context) bool { return false }

// Initialize reports false: there is nothing to bind the sink to.
func (Provider) Initialize(context.Context, voice.HostBridge, voice.CallbackSink) bool {
	return false
}

// Start does nothing and reports no error.
func (Provider) Start(context.Context) error { return nil }

// Stop does nothing and reports no error.
func (Provider) Stop(context.Context) error { return nil }
