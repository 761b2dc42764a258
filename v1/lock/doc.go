// Package lock implements a distributed lock on top of a shared key-value
// store.
//
// A Locker is an immutable acquisition policy. Builder methods such as Spin,
// Wait or IfTaken return a derived Locker and leave the receiver untouched, so
// a base policy can be defined once and specialised per call site:
//
//	base := lock.New(lock.NewRedisStore(client))
//	lease, err := base.Spin(10).Wait(backoff.Default, 5*time.Second).Acquire(ctx, "jobs:42", 30*time.Second)
//
// Every lease carries a random owner token and a mandatory TTL. Release only
// deletes the key while the token still matches, so a holder whose lease
// expired can never remove a lease that was since granted to someone else.
package lock
