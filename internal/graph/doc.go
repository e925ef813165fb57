// Package graph provides authentication and shared plumbing for Microsoft
// Graph API requests.
//
// This package provides:
//   - Client-credentials token acquisition against Microsoft Entra ID
//   - Rate limiting for Microsoft Graph API requests
//   - Error handling for Microsoft Graph API responses
//
// The gateway authenticates as an application, not as a user, so the token
// endpoint is tenant-scoped rather than "common":
//
//	https://login.microsoftonline.com/{tenant-id}/oauth2/v2.0/token
//
// The only scope requested is "https://graph.microsoft.com/.default", which
// resolves to the application permissions granted to the app registration.
//
// # Rate Limits
//
// Microsoft Graph allows approximately 10,000 requests per 10 minutes per app.
// This package implements conservative rate limiting to avoid hitting quotas,
// and honours Retry-After on 429 responses.
package graph
