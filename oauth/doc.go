// Package oauth implements goSession.OAuthProvider on top of OpenID Connect.
//
// [NewGoogle] discovers Google's endpoints; [NewOIDC] works with any issuer
// that publishes /.well-known/openid-configuration. Every authorization
// request carries a PKCE S256 challenge and every ID token is verified
// against the issuer's keys before its claims are trusted.
package oauth
