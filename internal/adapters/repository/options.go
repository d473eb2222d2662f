package repository

// Option applies a configuration option to a store.
type Option func(*settings)

type settings struct {
	maxEntries int
}

func defaults(opts []Option) settings {
	s := settings{maxEntries: DefaultMaxEntries}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// WithMaxEntries sets how many entries a day list keeps.
func WithMaxEntries(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.maxEntries = n
		}
	}
}
