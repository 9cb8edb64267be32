// Package password hashes and verifies stored passwords with argon2id.
//
// Hashes use the PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<key>
//
// [Hasher.NeedsRehash] reports hashes produced with weaker parameters so the
// credential store can upgrade them.
//
// This package never stores passwords and never logs them.
package password
