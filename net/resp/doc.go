// Package resp provides the HTTP response envelope shared by the job service
// handlers and the job client.
//
// Successful responses carry the payload as the body. Failures carry an
// Exception:
//
//	{
//	  "code": -401,            // Business error code
//	  "message": "...",        // Human-readable message
//	  "errors": {...}          // Error details
//	}
//
// # Success Responses
//
//	resp.Success(w, job)
//	resp.WithStatusCode(w, http.StatusAccepted, started)
//
// # Failure Responses
//
//	resp.Fail(w, resp.BadRequest("since invalid"))
//	resp.Fail(w, resp.FromCode(ecode.QueueFull))
package resp
