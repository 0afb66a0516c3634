// Package auth provides bearer-token authorisation for the pinforge API.
//
// pinforge has no user accounts. Operators mint HS256 access tokens with
// the configured security.jwt.secret (see cmd/pinforge -issue-token) and
// hand them to tools and CI jobs. A token names a subject and one role:
//
//	viewer  read the catalog, projects, runs and exports
//	editor  viewer plus create, change, delete and allocate projects
//	admin   editor plus system endpoints
//
// Role permissions are a static map; no lookup happens per request.
package auth
