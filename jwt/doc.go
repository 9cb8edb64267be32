// Package jwt signs claim sets into compact HS256 tokens and verifies them with
// the same issuer, audience and clock-skew parameters used at issuance.
package jwt
