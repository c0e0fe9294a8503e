package pipeline

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aula-chat/aula-go/internal/logging"
)

type namedStage struct {
	name     string
	next     Handler
	order    *[]string
	disposed bool
}

func (s *namedStage) Send(req *http.Request) (*http.Response, error) {
	*s.order = append(*s.order, s.name)
	return s.next.Send(req)
}

func (s *namedStage) Dispose() {
	s.disposed = true
}

func TestChain_OutermostFirst(t *testing.T) {
	var order []string
	var stages []*namedStage
	stage := func(name string) Stage {
		return func(next Handler) Handler {
			s := &namedStage{name: name, next: next, order: &order}
			stages = append(stages, s)
			return s
		}
	}

	transport := HandlerFunc(func(req *http.Request) (*http.Response, error) {
		order = append(order, "transport")
		return respond(http.StatusOK, nil)(), nil
	})

	p := Chain(transport, stage("route"), stage("global"), stage("retry"))
	_, err := p.Send(newRequest(t, context.Background(), http.MethodGet, roomsURL))
	require.NoError(t, err)
	assert.Equal(t, []string{"route", "global", "retry", "transport"}, order)

	p.Dispose()
	for _, s := range stages {
		assert.True(t, s.disposed, "stage %s not disposed", s.name)
	}
}

func TestDefault_AgainstServer(t *testing.T) {
	var hits int32
	var mu sync.Mutex
	var paths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()

		if atomic.AddInt32(&hits, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set(HeaderRouteLimit, "10")
		w.Header().Set(HeaderRouteWindow, "1000")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	p := Default(server.Client(), Settings{}, WithLogger(logging.Discard()))
	defer p.Dispose()

	resp, err := p.Send(newRequest(t, context.Background(), http.MethodGet, server.URL+"/api/v1/rooms"))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
	assert.Equal(t, []string{"/api/v1/rooms", "/api/v1/rooms"}, paths)
}

func TestDefault_DisposedPipelineRejectsRequests(t *testing.T) {
	p := Default(http.DefaultClient, Settings{}, WithLogger(logging.Discard()))
	p.Dispose()

	_, err := p.Send(newRequest(t, context.Background(), http.MethodGet, roomsURL))
	assert.ErrorIs(t, err, ErrDisposed)
}
