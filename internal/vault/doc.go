// Package vault provides authenticated symmetric encryption for credential
// secrets using AES-256-GCM. A Vault holds a single immutable 32-byte key
// and is safe for concurrent use; a fresh random nonce is generated on every
// Encrypt call and never reused.
package vault
