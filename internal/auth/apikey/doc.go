// Package apikey provides the API key authorization gate used by the
// gateway's route and spec checkpoints.
//
// # Decision
//
// Each checkpoint maps the pair (credential present, identity present) to
// one of three outcomes:
//
//	credential  identity  outcome          status
//	absent      -         Unauthenticated  401
//	present     absent    Unauthorized     403
//	present     present   Authorized       204
//
// An empty credential is treated the same as an absent one.
//
// # Checkpoints
//
// The route and spec checkpoints share one policy and differ only in the
// context variables they read:
//
//	rc := apikey.NewRequestContext(map[string]string{
//	    apikey.VarRouteCredential: "k-123",
//	    apikey.VarRouteIdentity:   "client-42",
//	})
//	outcome := apikey.ValidateRoute(rc, w) // writes 204 "204"
//
// # Fingerprints
//
// Fingerprint returns the lowercase hex SHA-256 digest of a credential. It
// is the key of the identity store and may be used by callers as a cache
// or audit key in place of the raw secret.
//
// # Collaborators
//
// The Resolver builds a RequestContext from an HTTP request using the
// configured extractors and an IdentityStore (MemoryStore or RedisStore).
// Handler exposes both checkpoints as auth subrequest endpoints.
package apikey
