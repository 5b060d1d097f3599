package stream

import "log/slog"

// Observer receives progress reports from a Stream.
type Observer interface {
	// Progress is called with the running document count.
	Progress(index string, count int)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(index string, count int)

// Progress calls f(index, count).
func (f ObserverFunc) Progress(index string, count int) { f(index, count) }

type multiObserver []Observer

func (m multiObserver) Progress(index string, count int) {
	for _, o := range m {
		o.Progress(index, count)
	}
}

// Observers fans progress out to every non-nil observer, in order.
func Observers(obs ...Observer) Observer {
	out := make(multiObserver, 0, len(obs))
	for _, o := range obs {
		if o != nil {
			out = append(out, o)
		}
	}
	return out
}

// LogObserver logs each report at info level.
func LogObserver(logger *slog.Logger) Observer {
	return ObserverFunc(func(index string, count int) {
		logger.Info("claims_sent",
			slog.String("index", index),
			slog.Int("count", count))
	})
}
