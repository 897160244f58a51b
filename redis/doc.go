// Package redis is the optional Redis connection behind the cluster-wide
// session presence directory, built on go-redis.
//
// JSONStore keeps typed values under a key prefix with a TTL:
//
//	store := redis.NewJSONStore[session.Presence](client, "dictation:presence")
//	err := store.Put(ctx, sessionID, p, 10*time.Minute)
//	live, gone, err := store.GetMany(ctx, ids)
package redis
