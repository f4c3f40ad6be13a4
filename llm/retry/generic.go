package retry

import "context"

// Value 按 r 的策略重试 fn，返回最后一次成功的结果。
//
//	body, err := retry.Value(ctx, r, func() ([]byte, error) { return fetch(ctx) })
func Value[T any](ctx context.Context, r Retryer, fn func() (T, error)) (T, error) {
	var out T
	err := r.Do(ctx, func() error {
		v, err := fn()
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}
