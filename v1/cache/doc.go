// Package cache memoizes function results in Redis.
//
// The building blocks are small Cache implementations: RedisCache stores
// encoded values with a TTL, RistrettoCache keeps a bounded in-process copy
// and ResilientCache turns backend failures into misses. Memo combines them
// into a read-through policy applied with Memoize:
//
//	m := cache.NewMemo(client).TTL(time.Minute).Version(2)
//	lookup := cache.Memoize(m, "users.lookup", repo.FindUser)
//	user, err := lookup(ctx, userID)
//
// Keys have the form "{version}_{name}_{base64(json(args))}", so bumping the
// version invalidates every entry written by older code.
package cache
