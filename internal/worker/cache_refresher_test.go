package worker

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/rs/zerolog"
)

type countingPrewarmer struct {
	calls int
	err   error
}

func (p *countingPrewarmer) PrewarmAllCaches(context.Context) error {
	p.calls++
	return p.err
}

func TestNewCacheRefresher_Spec(t *testing.T) {
	tests := []struct {
		spec    string
		wantErr bool
	}{
		{spec: "@every 10m"},
		{spec: "*/5 * * * *"},
		{spec: "@hourly"},
		{spec: "every ten minutes", wantErr: true},
		{spec: "", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.spec, func(t *testing.T) {
			_, err := NewCacheRefresher(tc.spec, &countingPrewarmer{}, zerolog.New(io.Discard))
			if (err != nil) != tc.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestCacheRefresher_Run(t *testing.T) {
	p := &countingPrewarmer{}
	r, err := NewCacheRefresher("@every 1h", p, zerolog.New(io.Discard))
	if err != nil {
		t.Fatalf("NewCacheRefresher: %v", err)
	}

	r.run()
	p.err = errors.New("redis down")
	r.run()

	if p.calls != 2 {
		t.Fatalf("calls = %d, want 2", p.calls)
	}
}

func TestCacheRefresher_StartStops(t *testing.T) {
	r, err := NewCacheRefresher("@every 1h", &countingPrewarmer{}, zerolog.New(io.Discard))
	if err != nil {
		t.Fatalf("NewCacheRefresher: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Start(ctx)
		close(done)
	}()
	cancel()
	<-done
}
