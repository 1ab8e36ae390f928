// Package github connects the index to the GitHub API. It supplies the
// remote snapshot of the user's starred repositories and fetches README
// documents, with dual-strategy rate limiting (proactive token bucket
// plus reactive header tracking) so a large star list never trips the
// API limits.
package github
