package ptuple

import "go.uber.org/zap"

type Options struct {
	// Logger receives debug events from compaction and capacity refusals.
	// Nil discards them.
	Logger *zap.Logger
	// NoAutoShrink disables the implicit compaction a mutation runs when
	// reclaiming junk would make room for it.
	NoAutoShrink bool
}

func (o Options) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}
