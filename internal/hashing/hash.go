package hashing

import (
	"github.com/cespare/xxhash/v2"
	"github.com/zeebo/xxh3"
)

// Role names the structural position a hash feeds. Every role carries its
// own salt so the positions derived for one key look independent.
type Role uint8

const (
	RoleBucket    Role = iota // load-balancing bucket choice
	RoleChoiceOne             // first candidate bucket, two-choice table
	RoleChoiceTwo             // second candidate bucket, two-choice table
	RoleContainer             // container partition, variable-size table
	roleCount
)

var roleSalt = [roleCount]uint64{
	RoleBucket:    xxhash.Sum64String("tinyptr:lbt"),
	RoleChoiceOne: xxhash.Sum64String("tinyptr:p2c1"),
	RoleChoiceTwo: xxhash.Sum64String("tinyptr:p2c2"),
	RoleContainer: xxhash.Sum64String("tinyptr:container"),
}

// Sum64 returns the deterministic 64-bit hash of key under role's salt.
func Sum64(role Role, key string) uint64 {
	return xxh3.HashStringSeed(key, roleSalt[role])
}

// Bucket maps key into [0, numBuckets) for the given role.
func Bucket(role Role, key string, numBuckets int) int {
	return int(Sum64(role, key) % uint64(numBuckets))
}
