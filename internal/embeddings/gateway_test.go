package embeddings

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/memohai/confidant/internal/logger"
)

type recordingProvider struct {
	mu     sync.Mutex
	inputs []string
	dims   int
	vector []float32
	err    error
}

func (p *recordingProvider) Embed(_ context.Context, input string) ([]float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.inputs = append(p.inputs, input)
	if p.err != nil {
		return nil, p.err
	}
	return p.vector, nil
}

func (p *recordingProvider) Model() string   { return "test-model" }
func (p *recordingProvider) Dimensions() int { return p.dims }

func (p *recordingProvider) calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.inputs...)
}

func newGateway(t *testing.T, p Provider, cfg GatewayConfig) *Gateway {
	t.Helper()
	g, err := NewGateway(logger.Discard(), p, cfg, nil)
	if err != nil {
		t.Fatalf("new gateway: %v", err)
	}
	t.Cleanup(g.Close)
	return g
}

func TestGatewayRejectsBlankWithoutCall(t *testing.T) {
	t.Parallel()
	p := &recordingProvider{dims: 2, vector: []float32{1, 2}}
	g := newGateway(t, p, GatewayConfig{})

	for _, in := range []string{"", "   ", "\n\t"} {
		if v, ok := g.Embed(context.Background(), in); ok || v != nil {
			t.Fatalf("expected rejection for %q", in)
		}
	}
	if len(p.calls()) != 0 {
		t.Fatalf("provider should not be called, got %v", p.calls())
	}
}

func TestGatewayTruncatesLongInput(t *testing.T) {
	t.Parallel()
	p := &recordingProvider{dims: 2, vector: []float32{1, 2}}
	g := newGateway(t, p, GatewayConfig{TruncateChars: 5})

	if _, ok := g.Embed(context.Background(), "abcdefgh"); !ok {
		t.Fatal("expected embedding")
	}
	if _, ok := g.Embed(context.Background(), "abc"); !ok {
		t.Fatal("expected embedding")
	}
	calls := p.calls()
	if len(calls) != 2 || calls[0] != "abcde …" || calls[1] != "abc" {
		t.Fatalf("unexpected provider inputs: %q", calls)
	}
}

func TestGatewayFailuresDegrade(t *testing.T) {
	t.Parallel()
	failing := newGateway(t, &recordingProvider{dims: 2, err: errors.New("boom")}, GatewayConfig{})
	if v, ok := failing.Embed(context.Background(), "hello"); ok || v != nil {
		t.Fatal("expected degraded result on provider error")
	}

	wrongSize := newGateway(t, &recordingProvider{dims: 3, vector: []float32{1, 2}}, GatewayConfig{})
	if _, ok := wrongSize.Embed(context.Background(), "hello"); ok {
		t.Fatal("expected rejection on dimension mismatch")
	}
}

func TestGatewayCachesVectors(t *testing.T) {
	t.Parallel()
	p := &recordingProvider{dims: 2, vector: []float32{0.5, 0.5}}
	g := newGateway(t, p, GatewayConfig{CacheEntries: 16})

	if _, ok := g.Embed(context.Background(), "same text"); !ok {
		t.Fatal("expected embedding")
	}
	g.cache.Wait()
	v, ok := g.Embed(context.Background(), "same text")
	if !ok || len(v) != 2 {
		t.Fatalf("expected cached vector, got %v %v", v, ok)
	}
	if n := len(p.calls()); n != 1 {
		t.Fatalf("expected one provider call, got %d", n)
	}
}

func TestGatewayRateLimitHonoursContext(t *testing.T) {
	t.Parallel()
	p := &recordingProvider{dims: 1, vector: []float32{1}}
	g := newGateway(t, p, GatewayConfig{RatePerSecond: 0.001, Burst: 1})

	if _, ok := g.Embed(context.Background(), "first"); !ok {
		t.Fatal("burst call should pass")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, ok := g.Embed(ctx, "second"); ok {
		t.Fatal("expected limiter to refuse within deadline")
	}
	if n := len(p.calls()); n != 1 {
		t.Fatalf("second call must not reach provider, got %d calls", n)
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()
	long := strings.Repeat("я", 4005)
	got := Truncate(long, 4000)
	if !strings.HasSuffix(got, TruncationMarker) || utf8.RuneCountInString(got) != 4002 {
		t.Fatalf("unexpected truncation length %d", utf8.RuneCountInString(got))
	}
	if Truncate("short", 4000) != "short" {
		t.Fatal("short text must be unchanged")
	}
	if Truncate(long, 0) != long {
		t.Fatal("zero limit disables truncation")
	}
}
