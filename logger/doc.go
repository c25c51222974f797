// Package logger provides structured logging for voicekit using zerolog.
//
// It supports JSON and console output, level configuration, and
// component-scoped loggers carrying the standard voice fields (provider,
// capability, operation, locale, utterance id).
//
// # Configuration
//
//	logging:
//	  level: "info"
//	  format: "json"
//	  output: /var/log/voiced.log   # stdout, stderr or a file
//	  components:
//	    hostbridge: debug           # per-component override
//
// # Usage
//
//	log := logger.Get("tts.threadbound")
//	log.Warn("provider not ready", logger.Fields(logger.FieldProvider, "espeak"))
package logger
