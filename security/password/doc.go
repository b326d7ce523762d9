// Package password provides Argon2id credential hashing for wishd.
//
// Hashing policy itself is not this system's concern; the package exists
// so that session issuance can be gated on a credential check. It encodes
// hashes in the PHC-like format
// $argon2id$v=19$m=<mem>,t=<iter>,p=<par>$<salt_b64>$<hash_b64> and treats
// stored hash strings as untrusted input during verification.
package password
