// Package gitlab is a minimal client for the GitLab runner registration API:
// registering a runner with a registration token, unregistering it with its
// runner token, and verifying a runner token.
//
// Failures are reported as *RegistrationError, which carries the HTTP status
// and upstream body or the transport error. The client never retries.
package gitlab
