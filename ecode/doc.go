// Package ecode defines the business error codes returned by the job service
// and the helpers that turn them into messages and HTTP statuses.
//
// Common codes mirror the HTTP status they map to, negated:
//   - 0: Success (OK)
//   - -400 to -499: Request errors
//   - -500 to -599: Server errors
//
// Usage with the response package:
//
//	resp.Fail(w, resp.FromCode(ecode.JobNotFound))
//
// Job specific codes live in the -1000 range:
//
//	ecode.QueueFull    // -1001: Job queue is full
//	ecode.JobNotFound  // -1002: Job does not exist
package ecode
