package idgen

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGeneratorRejectsBadNode(t *testing.T) {
	_, err := NewGenerator(-1)
	assert.Error(t, err)
	_, err = NewGenerator(MaxNodeID + 1)
	assert.Error(t, err)

	g, err := NewGenerator(MaxNodeID)
	require.NoError(t, err)
	assert.NotNil(t, g)
}

func TestGeneratorUniqueUnderConcurrency(t *testing.T) {
	g, err := NewGenerator(3)
	require.NoError(t, err)

	const workers, perWorker = 8, 500
	ids := make(chan uint64, workers*perWorker)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				id, err := g.NextID(context.Background())
				assert.NoError(t, err)
				ids <- id
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[uint64]struct{}, workers*perWorker)
	for id := range ids {
		_, dup := seen[id]
		require.False(t, dup, "duplicate id %d", id)
		seen[id] = struct{}{}
	}
	assert.Len(t, seen, workers*perWorker)
}

func TestGeneratorSequenceWithinMillisecond(t *testing.T) {
	g, err := NewGenerator(1)
	require.NoError(t, err)
	ms := customEpoch + 1000
	g.now = func() int64 { return ms }

	first, _ := g.NextID(context.Background())
	second, _ := g.NextID(context.Background())

	assert.Equal(t, first+1, second)
	assert.Equal(t, uint64(1), (first>>seqBits)&uint64(MaxNodeID))
}

func TestClientNextID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/new-id", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":424242}`))
	}))
	defer srv.Close()

	id, err := NewClient(srv.URL, 0).NextID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(424242), id)
}

func TestClientNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, 0).NextID(context.Background())
	assert.ErrorContains(t, err, "non-200")
}
