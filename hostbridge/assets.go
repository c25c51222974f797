package hostbridge

import (
	_ "embed"
	"net/http"
)

// SpeechScriptID is the id of the script element holding speech.js. Its
// presence in the page is the injection marker.
const SpeechScriptID = "voicekit-speech-script"

// Probe expressions evaluated in the page.
const (
	RecognitionProbe = "!!(window.SpeechRecognition || window.webkitSpeechRecognition)"
	SynthesisProbe   = "'speechSynthesis' in window"
)

//go:embed assets/speech.js
var speechJS string

//go:embed assets/bridge.js
var bridgeJS []byte

// SpeechScript returns the speech script resource.
func SpeechScript() string { return speechJS }

// BridgeScriptHandler serves bridge.js.
func BridgeScriptHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		_, _ = w.Write(bridgeJS)
	})
}
