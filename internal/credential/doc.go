// Package credential acquires and caches the bearer token used for the
// authenticated platform endpoints.
//
// Tokens come from an OIDC password-grant exchange. Refresh is pull-style:
// [Manager.AcquireOrReuse] only contacts the identity provider when the
// credential it is given is unset or older than the TTL. There is no
// background refresh timer.
package credential
