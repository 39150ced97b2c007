// Package internal holds the HTTP application core re-exported by the root
// herald package. Import "github.com/dmitrymomot/herald" instead.
//
// App owns a chi router, adapts Context-based handlers and middleware onto
// it, serves /health/live and /health/ready, and runs the job manager's
// workers for the lifetime of the server.
//
// Context embeds context.Context, so handlers pass it straight to stores and
// dispatchers:
//
//	func (h *Broadcasts) stats(c herald.Context) error {
//	    stats, err := h.store.Stats(c, c.Param("id"))
//	    if err != nil {
//	        return err
//	    }
//	    return c.JSON(http.StatusOK, stats)
//	}
//
// Context.Body reads the request once and caches it, which lets a webhook
// handler verify a signature over the exact bytes before decoding them.
package internal
