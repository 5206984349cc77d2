package seq

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type closingIter struct {
	*SliceIterator[int]
	closed *int
}

func (c closingIter) Close() error {
	*c.closed++
	return nil
}

func (c closingIter) Iter() Iterator[int] {
	return c
}

func TestFlattenPreservesOrder(t *testing.T) {
	outer := FromSlice([]*SliceIterator[int]{
		FromSlice([]int{1, 2}),
		FromSlice([]int{}),
		FromSlice([]int{3}),
		FromSlice([]int{4, 5, 6}),
	})

	got := Collect[int](Flatten[int, *SliceIterator[int]](outer))
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6}, got)
}

func TestFlattenEmptyOuter(t *testing.T) {
	f := Flatten[int, *SliceIterator[int]](FromSlice[*SliceIterator[int]](nil))

	_, ok := f.Next()
	assert.False(t, ok)
	_, ok = f.Next()
	assert.False(t, ok, "exhaustion must be sticky")
}

func TestFlattenIsLazy(t *testing.T) {
	converted := 0
	provider := func(items ...int) ProviderFunc[int] {
		return func() Iterator[int] {
			converted++
			return FromSlice(items)
		}
	}

	f := Flatten[int, ProviderFunc[int]](FromSlice([]ProviderFunc[int]{
		provider(1),
		provider(2),
		provider(3),
	}))

	item, ok := f.Next()
	require.True(t, ok)
	assert.Equal(t, 1, item)
	assert.Equal(t, 1, converted, "only the first provider should be converted")

	item, ok = f.Next()
	require.True(t, ok)
	assert.Equal(t, 2, item)
	assert.Equal(t, 2, converted)
}

func TestFlattenOfFlatten(t *testing.T) {
	inner := func(groups ...[]int) ProviderFunc[int] {
		return func() Iterator[int] {
			its := make([]*SliceIterator[int], 0, len(groups))
			for _, g := range groups {
				its = append(its, FromSlice(g))
			}
			return Flatten[int, *SliceIterator[int]](FromSlice(its))
		}
	}

	f := Flatten[int, ProviderFunc[int]](FromSlice([]ProviderFunc[int]{
		inner([]int{1}, []int{2, 3}),
		inner(),
		inner([]int{4}),
	}))

	assert.Equal(t, []int{1, 2, 3, 4}, Collect[int](f))
}

func TestFlattenCloseReleasesInnerAndPending(t *testing.T) {
	closed := 0
	mk := func(items ...int) closingIter {
		return closingIter{SliceIterator: FromSlice(items), closed: &closed}
	}

	f := Flatten[int, closingIter](FromSlice([]closingIter{mk(1, 2), mk(3), mk(4)}))

	item, ok := f.Next()
	require.True(t, ok)
	assert.Equal(t, 1, item)

	require.NoError(t, f.Close())
	assert.Equal(t, 3, closed, "active inner plus two unconverted providers")

	_, ok = f.Next()
	assert.False(t, ok)
	require.NoError(t, f.Close())
	assert.Equal(t, 3, closed, "second close is a no-op")
}

func TestFlattenClosesExhaustedInner(t *testing.T) {
	closed := 0
	mk := func(items ...int) closingIter {
		return closingIter{SliceIterator: FromSlice(items), closed: &closed}
	}

	f := Flatten[int, closingIter](FromSlice([]closingIter{mk(1), mk(2)}))
	assert.Equal(t, []int{1, 2}, Collect[int](f))
	assert.Equal(t, 2, closed)
}

func TestAllSupportsRangeAndBreak(t *testing.T) {
	it := FromSlice([]string{"a", "b", "c"})

	var got []string
	for s := range All[string](it) {
		got = append(got, s)
		if s == "b" {
			break
		}
	}
	assert.Equal(t, []string{"a", "b"}, got)

	rest, ok := it.Next()
	require.True(t, ok)
	assert.Equal(t, "c", rest)
}

func TestFuncIterator(t *testing.T) {
	n := 0
	it := Func[int](func() (int, bool) {
		if n == 3 {
			return 0, false
		}
		n++
		return n, true
	})

	assert.Equal(t, []int{1, 2, 3}, Collect[int](it))
}
