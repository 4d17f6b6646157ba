// Package protocol defines the shared vocabulary of the host bridge.
//
// Every strategy, the detector and the coordinator speak in terms of the
// types declared here, so consumers never depend on which host is active.
//
// # Package Organization
//
//   - environment.go: environment kinds, detection results and connection states
//   - wire.go: the wire message exchanged with correlation-based hosts, method and event names
//   - events.go: payloads carried by bridge events
//   - normalize.go: conversion of loosely shaped host responses into typed results
//
// # Wire Format
//
// Correlation-based hosts exchange JSON messages of the form
//
//	{"event": "getRoster", "data": {...}, "timestamp": "2024-01-01T00:00:00Z", "messageId": "a1b2c3d4_1"}
//
// A message whose event name ends in "Response" answers the pending request
// carrying the same messageId.
//
// # Normalization
//
// Native hosts return roster data as a raw array, an object with a "data"
// array, or a JSON string of either. Boolean acknowledgements may arrive as
// true/false, "true"/"false"/"1", 1/0 or an object whose "success" or
// "result" field is truthy. NormalizeRoster and NormalizeBool accept all of
// these and report through their second result whether the shape was
// recognized.
package protocol
