// Package claims defines the identity record, the ordered claim set written into
// issued tokens, and the conversions between them.
//
// Builders here are pure: they perform no I/O and never read the clock. Callers
// supply the token identifier and issue instant so that one issuance produces
// exactly one jti regardless of how many claims it carries.
package claims
