// Package health serves liveness and readiness probes for herald.
//
// Readiness runs every registered [CheckFunc] concurrently under a shared
// timeout. Checks marked optional with [WithOptional] are reported but never
// flip readiness, which suits dependencies such as the external compute
// provider whose outage should not pull a delivery node out of rotation.
//
//	r.Get("/health/ready", health.ReadinessHandler(health.Checks{
//	    "postgres": db.Healthcheck(pool),
//	    "redis":    redis.Healthcheck(client),
//	    "jobs":     job.Healthcheck(manager),
//	}, health.WithTimeout(3*time.Second), health.WithLogger(log)))
//
// Probes answer in plain text by default. JSON is returned when the client
// sends Accept: application/json or ?format=json:
//
//	{"status":"unhealthy","checks":{"redis":{"status":"unhealthy","error":"health: check timeout"}}}
package health
