// Package auth authenticates dictation clients.
//
// An Authenticator verifies a JWT through a TokenVerifier (JWTVerifier in
// production) and resolves the subject to a user through a UserResolver
// (the clinical store). The streaming endpoint passes the token as a query
// parameter; the REST API uses an Authorization: Bearer header.
package auth
