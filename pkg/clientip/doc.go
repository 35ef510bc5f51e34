// Package clientip resolves the caller's IP address, for rate limiting and logs.
//
// Proxy headers (CF-Connecting-IP, X-Forwarded-For, X-Real-IP) are honoured
// only when the deployment sits behind a proxy that overwrites them; set
// HTTP_TRUST_PROXY accordingly.
package clientip
