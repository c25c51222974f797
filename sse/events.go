package sse

// Event names.
const (
	// EventConnected is sent once when a client connects.
	EventConnected = "connected"
	// EventTranscript carries one recognition event.
	EventTranscript = "transcript"
)

// TopicTranscripts matches every transcript stream client.
const TopicTranscripts = "transcripts:*"

// TranscriptClientPrefix prefixes the ids of transcript stream clients.
const TranscriptClientPrefix = "transcripts:"
