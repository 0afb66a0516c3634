// Package audit records who changed which project, and when.
//
// Entries are written to the audit_logs table by the API after successful
// project mutations and allocation runs. The user id is the subject of the
// bearer token, empty when auth is disabled.
package audit
