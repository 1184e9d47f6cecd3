package storage

import "context"

type scoped struct {
	Store
	prefix string
}

// Scoped returns a view of s whose keys are prefixed with the session id.
// Closing the view closes s.
func Scoped(s Store, sessionID string) Store {
	return &scoped{Store: s, prefix: "session/" + sessionID + "/"}
}

func (s *scoped) Get(ctx context.Context, key string) (string, bool, error) {
	return s.Store.Get(ctx, s.prefix+key)
}

func (s *scoped) Set(ctx context.Context, key, value string) error {
	return s.Store.Set(ctx, s.prefix+key, value)
}

func (s *scoped) Remove(ctx context.Context, key string) error {
	return s.Store.Remove(ctx, s.prefix+key)
}
