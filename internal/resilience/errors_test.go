package resilience

import (
	"errors"
	"fmt"
	"syscall"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("bad request"), false},
		{"marked", Transient(errors.New("too many requests"), 429), true},
		{"wrapped_marked", fmt.Errorf("call failed: %w", Transient(errors.New("upstream"), 503)), true},
		{"eris_wrapped_marked", eris.Wrap(Transient(errors.New("upstream"), 502), "client: request"), true},
		{"conn_reset_errno", syscall.ECONNRESET, true},
		{"conn_refused_errno", syscall.ECONNREFUSED, true},
		{"reset_message", errors.New("read tcp: connection reset by peer"), true},
		{"dns_message", errors.New("dial tcp: lookup api.example.com: no such host"), true},
		{"io_timeout_message", errors.New("read tcp 10.0.0.1:443: i/o timeout"), true},
		{"unrelated_message", errors.New("invalid JSON in response"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestIsTransientStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		assert.True(t, IsTransientStatus(code), "status %d", code)
	}
	for _, code := range []int{200, 204, 301, 400, 401, 403, 404, 422} {
		assert.False(t, IsTransientStatus(code), "status %d", code)
	}
}

func TestTransientErrorUnwrap(t *testing.T) {
	base := errors.New("upstream down")
	te := Transient(base, 503)

	assert.Equal(t, "upstream down", te.Error())
	assert.True(t, errors.Is(te, base))
	assert.Equal(t, 503, te.StatusCode)
}
