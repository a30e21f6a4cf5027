// Package logger records shell session events as newline delimited JSON and
// summarizes them.
//
// Every line is a protobuf Struct in its canonical JSON form with at least
// the fields "timestamp_micros", "session_id" and "event"; the remaining
// fields depend on the event type.
package logger
