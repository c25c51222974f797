// Package hostbridge connects the voice layer to a script host (a browser
// page) over a websocket.
//
// The page loads bridge.js, which dials /bridge and answers two request
// shapes from the host:
//
//	{"id":"…","op":"eval","expr":"'speechSynthesis' in window"}
//	{"id":"…","op":"invoke","fn":"startSpeechRecognition","args":[1]}
//
// with {"id":"…","op":"result","value":…,"error":"…"}. Transcript events
// flow the other way as {"op":"callback","target":"<ref>","method":"OnSpeechResult","args":[…]}
// addressed to a sink previously handed out with Ref.
//
// A Hub serves the websocket endpoint and forwards calls to the most
// recently connected page. The Injector loads speech.js into the page once
// per page session and waits a settle delay before first use.
package hostbridge
