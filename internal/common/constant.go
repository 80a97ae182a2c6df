package common

// TokenCookieName is the HTTP-only cookie that carries the session token.
// Middleware reads only this cookie, never request bodies, for the
// authoritative credential.
const TokenCookieName = "token"
