//go:build ignore

// Run: go run ./build-tools/loadgen.go -nats nats://localhost:4222 -subject kintsugi.events -rps 500 -duration 60s -redis localhost:6379

package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	mrand "math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dexindexer/internal/chain"
	"dexindexer/internal/config"
	"dexindexer/internal/domain"
	"dexindexer/internal/stores/redis"

	"github.com/nats-io/nats.go"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

const (
	swapRuntime = 1025000
	loanRuntime = 1023000
	perBlock    = 20
)

var tokens = []string{"KSM", "KBTC", "KINT"}

var accounts = []string{
	"a3cgeH7D28bBsHY4hGLzxkMFUcFQmjGgDa2kmxg3D9Z6AyhtL",
	"a3dKzyLKfqJBk2jLdXmNiw5gbrM2zFNjRRwnxAc9z2sxkKKoY",
	"a3fKbVb9FdRh4m4YjPz5q1PKNsH4cSsYFKJGw2ms2xxeydfKW",
	"a3eFe9M2HbAgrQrShEDH2CEvXACtzLhSf4JGkwuT9SQ1EV4ti",
}

func main() {
	var (
		natsURL     = flag.String("nats", "nats://localhost:4222", "nats url")
		subject     = flag.String("subject", "kintsugi.events", "subject raw events are published on")
		rps         = flag.Int("rps", 500, "events per second target")
		duration    = flag.Duration("duration", 30*time.Second, "how long to run")
		startHeight = flag.Uint64("height", 1_000_000, "first block height")
		redisAddr   = flag.String("redis", "", "redis address; when set, trading pair state is seeded there")
		statePrefix = flag.String("state-prefix", "chain:", "chain state key prefix")
	)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *redisAddr != "" {
		if err := seedPairs(ctx, *redisAddr, *statePrefix, *startHeight); err != nil {
			fmt.Printf("seed pairs error: %v\n", err)
			os.Exit(1)
		}
	}

	nc, err := nats.Connect(*natsURL, nats.Name("dex-indexer-loadgen"))
	if err != nil {
		fmt.Printf("nats connect error: %v\n", err)
		os.Exit(1)
	}
	defer nc.Close()

	fmt.Printf("loadgen → nats=%s subject=%s rps=%d duration=%s\n", *natsURL, *subject, *rps, duration.String())

	limiter := rate.NewLimiter(rate.Limit(*rps), max(*rps/10, 1))
	runCtx, cancel := context.WithTimeout(ctx, *duration)
	defer cancel()

	var (
		sent   int
		height = *startHeight
		block  = newBlock(height)
		index  uint32
	)
	for {
		if err = limiter.Wait(runCtx); err != nil {
			break
		}
		if index == perBlock {
			height++
			block, index = newBlock(height), 0
		}

		ev := randomEvent(block, index)
		index++

		b, _ := json.Marshal(ev)
		if err = nc.Publish(*subject, b); err != nil {
			fmt.Printf("publish error: %v\n", err)
			continue
		}
		sent++
	}

	fmt.Println("flushing…")
	if err = nc.Flush(); err != nil {
		fmt.Printf("flush error: %v\n", err)
	}
	fmt.Printf("done, sent=%d blocks=%d\n", sent, height-*startHeight+1)
}

// seedPairs marks every generated pair as trading with a 0.3% fee
func seedPairs(ctx context.Context, addr, prefix string, height uint64) error {
	rdb, err := redis.New(ctx, config.RedisConfig{Addr: addr})
	if err != nil {
		return err
	}
	defer rdb.Close()

	cs := redis.NewChainState(rdb, prefix)
	for i := range tokens {
		for j := i + 1; j < len(tokens); j++ {
			lo, hi, err := domain.OrderPair(domain.Token(tokens[i]), domain.Token(tokens[j]))
			if err != nil {
				return err
			}
			pair := &chain.TradingPair{Status: chain.PairTrading, FeeRate: decimal.RequireFromString("0.003")}
			if err = cs.PutTradingPair(ctx, height, lo, hi, pair); err != nil {
				return err
			}
		}
	}
	return nil
}

func newBlock(height uint64) domain.Block {
	return domain.Block{Height: height, Hash: "0x" + randHex(64), Timestamp: time.Now().UTC()}
}

func randomEvent(block domain.Block, index uint32) *domain.RawEvent {
	ev := &domain.RawEvent{
		ID:    domain.MakeEventID(block.Height, block.Hash, index),
		Block: block,
	}

	who := accounts[mrand.Intn(len(accounts))]
	switch n := mrand.Intn(10); {
	case n < 7:
		from, to := mrand.Intn(len(tokens)), mrand.Intn(len(tokens)-1)
		if to >= from {
			to++
		}
		in := 1_000_000 + mrand.Int63n(1_000_000_000)
		out := in * (95 + mrand.Int63n(5)) / 100

		ev.Name = domain.EventAssetSwap
		ev.SpecVersion = swapRuntime
		ev.Args = mustJSON(map[string]any{
			"owner":     who,
			"recipient": who,
			"swapPath":  []json.RawMessage{tokenTag(tokens[from]), tokenTag(tokens[to])},
			"balances":  []string{fmt.Sprint(in), fmt.Sprint(out)},
		})
	default:
		ev.Name = domain.EventBorrowed
		if n == 9 {
			ev.Name = domain.EventRepaidBorrow
		}
		ev.SpecVersion = loanRuntime
		ev.Args = mustJSON(map[string]any{
			"accountId":  who,
			"currencyId": tokenTag(tokens[mrand.Intn(len(tokens))]),
			"amount":     fmt.Sprint(1_000 + mrand.Int63n(1_000_000)),
		})
	}
	return ev
}

func tokenTag(symbol string) json.RawMessage {
	return json.RawMessage(`{"__kind":"Token","value":{"__kind":"` + symbol + `"}}`)
}

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

func randHex(n int) string {
	b := make([]byte, n/2)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
