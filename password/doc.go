// Package password hashes and verifies user passwords.
//
// Two encodings are understood:
//
//	$2a$/$2b$/$2y$...                          bcrypt (golang.org/x/crypto/bcrypt)
//	$argon2id$v=19$m=<mem>,t=<time>,p=<par>$<salt>$<hash>   argon2id PHC string
//
// [Verifier] dispatches on the stored hash prefix so user tables holding a mix
// of legacy bcrypt and argon2id hashes keep working. Comparisons are constant
// time. [Verifier.NeedsRehash] reports hashes that should be upgraded to the
// configured primary algorithm on the next successful login.
//
// # What this package must NOT do
//
//   - Store or fetch hashes; callers hand them in.
//   - Log plaintext passwords.
package password
