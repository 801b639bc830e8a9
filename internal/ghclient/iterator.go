package ghclient

import "context"

// item pairs a yielded value with any terminal error from the fetch that
// produced it.
type item[T any] struct {
	val T
	err error
}

// Iterator is the "lazy sequence" construct from spec §9: finite,
// non-restartable, with suspension allowed between items. It is backed by a
// channel of capacity 1 fed by a single producer goroutine, one of the two
// shapes the design notes call out explicitly.
type Iterator[T any] struct {
	ch     chan item[T]
	cancel context.CancelFunc
}

func newIterator[T any](ctx context.Context, produce func(ctx context.Context, yield func(T) bool) error) *Iterator[T] {
	ctx, cancel := context.WithCancel(ctx)
	ch := make(chan item[T], 1)

	go func() {
		defer close(ch)
		err := produce(ctx, func(v T) bool {
			select {
			case ch <- item[T]{val: v}:
				return true
			case <-ctx.Done():
				return false
			}
		})
		if err != nil {
			select {
			case ch <- item[T]{err: err}:
			case <-ctx.Done():
			}
		}
	}()

	return &Iterator[T]{ch: ch, cancel: cancel}
}

// Next pulls the next item. ok is false once the sequence is exhausted; err
// is set if the producer terminated with a failure.
func (it *Iterator[T]) Next() (val T, ok bool, err error) {
	i, open := <-it.ch
	if !open {
		return val, false, nil
	}
	if i.err != nil {
		return val, false, i.err
	}
	return i.val, true, nil
}

// Close releases the producer goroutine. Safe to call multiple times.
func (it *Iterator[T]) Close() {
	it.cancel()
}
