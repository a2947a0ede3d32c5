// Package common contains shared constants and sentinel errors used across
// docvault components.
package common

// AccessTokenHeaderName is the gRPC metadata key used to carry the
// access token on inbound requests.
const AccessTokenHeaderName = "access_token"

// Byte sizes of the bit-exact contracts shared with previously stored data.
const (
	KeySize   = 32
	NonceSize = 12
	HashSize  = 32
)
