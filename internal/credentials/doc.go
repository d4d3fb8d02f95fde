// Package credentials manages stored host-access credentials: input
// validation, vault encryption, metadata-only listing, and the
// single-default-per-(host,type) invariant. Secret material leaves this
// package only through Secret, which exists for the collection layer.
package credentials
