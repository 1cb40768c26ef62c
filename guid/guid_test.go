package guid

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew_UniqueAndNonZero(t *testing.T) {
	const n = 10000
	seen := make(map[ID]struct{}, n)
	for i := 0; i < n; i++ {
		id := New()
		require.False(t, id.IsZero())
		_, dup := seen[id]
		require.False(t, dup, "duplicate id %s", id)
		seen[id] = struct{}{}
	}
}

func TestNew_Concurrent(t *testing.T) {
	const workers, per = 8, 500
	ids := make(chan ID, workers*per)
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			var src Source = Random{}
			for i := 0; i < per; i++ {
				ids <- src.NewID()
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[ID]struct{}, workers*per)
	for id := range ids {
		seen[id] = struct{}{}
	}
	require.Len(t, seen, workers*per)
}

func TestStringParse_RoundTrip(t *testing.T) {
	id := New()
	s := id.String()
	require.Len(t, s, 32)

	got, err := Parse(s)
	require.NoError(t, err)
	require.Equal(t, id, got)
}

func TestParse_DashedForm(t *testing.T) {
	got, err := Parse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	require.NoError(t, err)
	require.Equal(t, "6ba7b8109dad11d180b400c04fd430c8", got.String())
}

func TestParse_Invalid(t *testing.T) {
	for _, in := range []string{"", "xyz", "zz7b8109dad11d180b400c04fd430c8z"} {
		_, err := Parse(in)
		if !errors.Is(err, ErrInvalidID) {
			t.Fatalf("Parse(%q) error = %v; want ErrInvalidID", in, err)
		}
	}
}
