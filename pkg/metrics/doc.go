// Package metrics counts runner registrations, unregistrations and token cache
// hits using the Prometheus client library.
//
// glrunner is a short-lived command rather than a server, so metrics are not
// scraped over HTTP. Instead a Recorder can write its registry to a file in
// the node exporter textfile collector format, which is picked up on the next
// node exporter scrape.
//
// # Metrics
//
//   - glrunner_registrations_total: registration attempts (labels: result)
//   - glrunner_unregistrations_total: unregistration attempts (labels: result)
//   - glrunner_token_cache_hits_total: assemblies that reused a cached token
//   - glrunner_assemble_duration_seconds: time spent assembling one runner
//
// # Label Conventions
//
// The result label is always lowercase: success or failure.
//
// # Usage
//
//	rec := metrics.New()
//	rec.Registration(err)
//	if err := rec.WriteTextfile("/var/lib/node_exporter/glrunner.prom"); err != nil {
//		...
//	}
//
// A nil *Recorder is valid and records nothing.
package metrics
