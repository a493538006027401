// Package common contains shared constants and sentinel errors used across
// daybook components.
package common

// AccessTokenHeaderName is the gRPC metadata key used to carry the
// access token on outbound requests.
const AccessTokenHeaderName = "access_token"

// MaxContentRunes bounds the length of a journal entry body.
const MaxContentRunes = 10000
