package nats

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"dexindexer/internal/config"
	"dexindexer/internal/dedupe"
	"dexindexer/internal/domain"
	"dexindexer/internal/metrics"
	"dexindexer/internal/testutil"

	"github.com/nats-io/nats-server/v2/server"
	natsserver "github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const subject = "test.events"

// ------------------------ tests not real connection ------------------------
func TestNew_Validation(t *testing.T) {
	testCases := []struct {
		name    string
		cfg     *config.NATSConfig
		wantErr string
	}{
		{name: "nil_config", cfg: nil, wantErr: "nats config is required"},
		{name: "empty_url", cfg: &config.NATSConfig{Subject: subject}, wantErr: "nats url is required"},
		{name: "empty_subject", cfg: &config.NATSConfig{URL: "nats://127.0.0.1:1"}, wantErr: "nats subject is required"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s, err := New(testutil.Logger(), tc.cfg, nil, nil)
			require.Error(t, err)
			assert.Nil(t, s)
			assert.Equal(t, tc.wantErr, err.Error())
		})
	}
}

func TestSubscriber_NilConnection(t *testing.T) {
	s := &Subscriber{log: testutil.Logger()}

	assert.False(t, s.Ready())
	assert.Equal(t, nats.DISCONNECTED, s.Status())
	assert.Error(t, s.Health(context.Background()))
	assert.NoError(t, s.Close())

	_, err := s.Start(context.Background())
	assert.Error(t, err)
}

func TestDecode(t *testing.T) {
	testCases := []struct {
		name    string
		data    string
		wantErr bool
	}{
		{name: "valid", data: `{"id":"0000000100-abcde-000001","name":"loans.Borrowed","spec_version":1023000,"block":{"height":100},"args":{}}`},
		{name: "not_json", data: `{`, wantErr: true},
		{name: "missing_id", data: `{"name":"loans.Borrowed"}`, wantErr: true},
		{name: "missing_name", data: `{"id":"x"}`, wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ev, err := Decode([]byte(tc.data))
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, uint32(1023000), ev.SpecVersion)
			assert.Equal(t, uint64(100), ev.Block.Height)
		})
	}
}

// ------------------------ tests in-memory nats connection ------------------------
func runTestWithInMemoryNATS(t *testing.T, testFunc func(*testing.T, *server.Server, string)) {
	t.Helper()

	// run in-memory NATS server
	opts := natsserver.DefaultTestOptions
	opts.Port = -1 // random port
	s := natsserver.RunServer(&opts)
	defer s.Shutdown()

	testFunc(t, s, s.ClientURL())
}

func publish(t *testing.T, url string, events ...*domain.RawEvent) {
	t.Helper()

	nc, err := nats.Connect(url)
	require.NoError(t, err)
	defer nc.Close()

	for _, ev := range events {
		b, err := json.Marshal(ev)
		require.NoError(t, err)
		require.NoError(t, nc.Publish(subject, b))
	}
	require.NoError(t, nc.Publish(subject, []byte("garbage")))
	require.NoError(t, nc.Flush())
}

func event(id string, height uint64) *domain.RawEvent {
	return &domain.RawEvent{
		ID:          id,
		Name:        domain.EventBorrowed,
		SpecVersion: 1023000,
		Block:       domain.Block{Height: height, Hash: "0xabcde", Timestamp: time.Unix(1_700_000_000, 0).UTC()},
		Args:        json.RawMessage(`{"accountId":"bob"}`),
	}
}

func receive(t *testing.T, ch <-chan *domain.RawEvent, n int) []*domain.RawEvent {
	t.Helper()

	var got []*domain.RawEvent
	for len(got) < n {
		select {
		case ev := <-ch:
			got = append(got, ev)
		case <-time.After(2 * time.Second):
			t.Fatalf("received %d of %d events", len(got), n)
		}
	}
	return got
}

func TestSubscriber_DeliversInOrder(t *testing.T) {
	runTestWithInMemoryNATS(t, func(t *testing.T, _ *server.Server, url string) {
		m := metrics.NewIndexer(prometheus.NewRegistry())
		s, err := New(testutil.Logger(), &config.NATSConfig{URL: url, Subject: subject}, nil, m)
		require.NoError(t, err)
		defer s.Close()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		ch, err := s.Start(ctx)
		require.NoError(t, err)
		assert.True(t, s.Ready())
		assert.NoError(t, s.Health(ctx))

		publish(t, url, event("e-1", 1), event("e-2", 2), event("e-3", 3))

		got := receive(t, ch, 3)
		assert.Equal(t, []string{"e-1", "e-2", "e-3"}, []string{got[0].ID, got[1].ID, got[2].ID})
		assert.JSONEq(t, `{"accountId":"bob"}`, string(got[0].Args))

		assert.Eventually(t, func() bool {
			return promtest.ToFloat64(m.Ingested.WithLabelValues(OutcomeMalformed)) == 1
		}, time.Second, 10*time.Millisecond)
		assert.Equal(t, 3.0, promtest.ToFloat64(m.Ingested.WithLabelValues(OutcomeAccepted)))
	})
}

func TestSubscriber_DropsRedeliveries(t *testing.T) {
	runTestWithInMemoryNATS(t, func(t *testing.T, _ *server.Server, url string) {
		dd := dedupe.NewInMemoryDedupe(testutil.Logger(), 128)
		s, err := New(testutil.Logger(), &config.NATSConfig{URL: url, Subject: subject}, dd, nil)
		require.NoError(t, err)
		defer s.Close()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		ch, err := s.Start(ctx)
		require.NoError(t, err)

		publish(t, url, event("e-1", 1), event("e-1", 1), event("e-2", 2))

		got := receive(t, ch, 2)
		assert.Equal(t, "e-1", got[0].ID)
		assert.Equal(t, "e-2", got[1].ID)

		select {
		case ev := <-ch:
			t.Fatalf("unexpected event %s", ev.ID)
		case <-time.After(100 * time.Millisecond):
		}
	})
}

func TestSubscriber_ClosesStreamOnCancel(t *testing.T) {
	runTestWithInMemoryNATS(t, func(t *testing.T, _ *server.Server, url string) {
		s, err := New(testutil.Logger(), &config.NATSConfig{URL: url, Subject: subject}, nil, nil)
		require.NoError(t, err)
		defer s.Close()

		ctx, cancel := context.WithCancel(context.Background())
		ch, err := s.Start(ctx)
		require.NoError(t, err)

		cancel()

		select {
		case _, ok := <-ch:
			assert.False(t, ok)
		case <-time.After(2 * time.Second):
			t.Fatal("stream not closed")
		}
	})
}

func TestClose_Idempotent(t *testing.T) {
	runTestWithInMemoryNATS(t, func(t *testing.T, _ *server.Server, url string) {
		s, err := New(testutil.Logger(), &config.NATSConfig{URL: url, Subject: subject}, nil, nil)
		require.NoError(t, err)

		require.NoError(t, s.Close())
		assert.False(t, s.Ready())
		assert.Equal(t, nats.CLOSED, s.Status())

		assert.NoError(t, s.Close())
	})
}
