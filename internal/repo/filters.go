package repo

import "github.com/samber/lo"

type Filter[T any] func(T) bool

func Where[T any](filterFunc func(T) bool) Filter[T] {
	return filterFunc
}

func Apply[T any](items []T, filters ...Filter[T]) []T {
	return lo.Filter(items, func(item T, _ int) bool {
		return Match(item, filters...)
	})
}

func Match[T any](item T, filters ...Filter[T]) bool {
	return lo.EveryBy(filters, func(f Filter[T]) bool {
		return f == nil || f(item)
	})
}
