// Package credstore is a Redis-backed credential verifier for the token engine.
//
// Users live in Redis hashes keyed <prefix>:user:<username> with the fields
// password_hash (argon2id PHC), email, primary_id, primary_group_id and role_id.
// Failed attempts per username are counted in fixed windows; a throttled
// username resolves to no identity until the window expires.
package credstore
