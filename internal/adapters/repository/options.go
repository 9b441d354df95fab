package repository

// MemOption applies a configuration option to the MemStore.
type MemOption func(*MemStore)

// WithClock overrides the store's time source. Used by tests to drive
// session timestamps deterministically.
func WithClock(now clock) MemOption {
	return func(s *MemStore) {
		if now != nil {
			s.now = now
		}
	}
}

// SQLOption applies a configuration option to the SQLStore.
type SQLOption func(*SQLStore)

// WithSQLClock overrides the SQL store's time source.
func WithSQLClock(now clock) SQLOption {
	return func(s *SQLStore) {
		if now != nil {
			s.now = now
		}
	}
}
