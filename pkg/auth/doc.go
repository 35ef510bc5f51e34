// Package auth answers one question for the billing endpoints: which user is
// making this request.
//
// Authenticator has two variants picked by Config.Mode at startup.
// TokenAuthenticator validates HS256 JWTs (golang-jwt/v5) from a bearer header
// or session cookie. HeaderAuthenticator trusts an identity header injected
// by a gateway that already authenticated the caller. Middleware stores the
// resolved user in the request context for UserFromContext.
//
//	a, err := cfg.Auth.Authenticator()
//	if err != nil {
//		return err
//	}
//	r.With(auth.Middleware(a, nil)).Get("/subscription/status", h)
package auth
