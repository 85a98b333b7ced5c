package fn

// Map applies f to each element.
func Map[T, U any](items []T, f func(T) U) []U {
	out := make([]U, len(items))
	for i, v := range items {
		out[i] = f(v)
	}
	return out
}

// Reduce folds items into a single value.
func Reduce[T, Acc any](items []T, init Acc, f func(Acc, T) Acc) Acc {
	acc := init
	for _, v := range items {
		acc = f(acc, v)
	}
	return acc
}

// Chunk splits items into consecutive slices of at most n elements. The
// slices share items' backing array. n <= 0 yields nil.
func Chunk[T any](items []T, n int) [][]T {
	if n <= 0 || len(items) == 0 {
		return nil
	}
	out := make([][]T, 0, (len(items)+n-1)/n)
	for i := 0; i < len(items); i += n {
		out = append(out, items[i:min(i+n, len(items))])
	}
	return out
}

// UniqueBy keeps the first element for every key, preserving order.
func UniqueBy[T any, K comparable](items []T, key func(T) K) []T {
	seen := make(map[K]struct{}, len(items))
	var out []T
	for _, v := range items {
		k := key(v)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, v)
	}
	return out
}
