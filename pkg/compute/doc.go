// Package compute dispatches jobs to an external compute provider and
// finalizes them from signed webhook callbacks.
//
// A job moves queued -> dispatched -> succeeded | failed. The callback and the
// timeout sweep are the only ways out of dispatched; both are conditional in
// the store, so a redelivered callback or a sweep racing a late callback
// leaves the first terminal write in place.
//
// Callbacks are verified before anything is read:
//
//	res, err := d.HandleCallback(ctx, compute.CallbackRequest{
//		JobID:     r.URL.Query().Get("job_id"),
//		Token:     r.URL.Query().Get("token"),
//		Signature: r.URL.Query().Get("signature"),
//		Body:      body,
//	})
//
// The signature is HMAC-SHA256 of the raw body with the shared secret,
// hex or base64 encoded. Inline base64 results are uploaded to object
// storage and the object URL becomes the job result. A succeeded job is
// handed to a ResultNotifier, which delivers it to the requester either in
// process (DirectNotifier) or through the job queue.
package compute
