package main

import (
	"context"
	"flag"
	"log"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/mirkobrombin/go-rstore/v1/config"
	"github.com/mirkobrombin/go-rstore/v1/lock"
)

var (
	concurrency = flag.Int("c", 8, "Number of concurrent waiters")
	rounds      = flag.Int("n", 50, "Acquisitions per waiter")
	hold        = flag.Duration("hold", 2*time.Millisecond, "Time spent holding the lock")
	timeout     = flag.Duration("timeout", 10*time.Second, "Acquire timeout")
	name        = flag.String("lock", "bench.lock", "Lock name")
	configPath  = flag.String("config", "", "Optional config file")
	embedded    = flag.Bool("embedded", false, "Run against an in-process store")
	poll        = flag.Duration("poll", time.Millisecond, "Poll interval, 0 keeps the configured one")
)

func main() {
	flag.Parse()
	config.LoadEnvFiles(".env", ".env.local")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if *embedded {
		mr, err := miniredis.Run()
		if err != nil {
			log.Fatalf("embedded store: %v", err)
		}
		defer mr.Close()
		cfg.Host = mr.Host()
		if cfg.Port, err = strconv.Atoi(mr.Port()); err != nil {
			log.Fatalf("embedded store: %v", err)
		}
	}
	if *poll > 0 {
		cfg.Lock.PollInterval = *poll
	}

	client := cfg.NewClient()
	defer client.Close()

	ctx := context.Background()
	log.Printf("Starting lock benchmark on %s: %d waiters x %d rounds, hold %v", cfg.Addr(), *concurrency, *rounds, *hold)

	var (
		wg       sync.WaitGroup
		acquired = xsync.NewCounter()
		lost     = xsync.NewCounter()
		expired  = xsync.NewCounter()
		overlaps = xsync.NewCounter()
		inside   int32
		perOwner = xsync.NewMapOf[string, int64]()
	)
	start := time.Now()
	for i := 0; i < *concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := uuid.NewString()[:8]
			q, err := lock.New(ctx, client, *name, cfg.LockOptions()...)
			if err != nil {
				log.Printf("open lock: %v", err)
				return
			}
			for j := 0; j < *rounds; j++ {
				token := lock.NewToken()
				res, err := q.Acquire(ctx, token, *timeout)
				if err != nil {
					log.Printf("acquire: %v", err)
					return
				}
				switch res {
				case lock.Lost:
					lost.Inc()
					continue
				case lock.TimedOut:
					expired.Inc()
					continue
				}
				acquired.Inc()
				perOwner.Compute(id, func(old int64, _ bool) (int64, bool) { return old + 1, false })
				if atomic.AddInt32(&inside, 1) > 1 {
					overlaps.Inc()
				}
				time.Sleep(*hold)
				atomic.AddInt32(&inside, -1)
				if _, err := q.Release(ctx, token); err != nil {
					log.Printf("release: %v", err)
				}
			}
		}()
	}
	wg.Wait()
	elapsed := time.Since(start)

	log.Printf("Finished in %v", elapsed)
	log.Printf("Acquired: %d, Lost: %d, TimedOut: %d", acquired.Value(), lost.Value(), expired.Value())
	if n := acquired.Value(); n > 0 {
		log.Printf("Throughput: %.2f acquisitions/s", float64(n)/elapsed.Seconds())
	}
	fewest, most := int64(-1), int64(0)
	perOwner.Range(func(_ string, n int64) bool {
		if fewest < 0 || n < fewest {
			fewest = n
		}
		most = max(most, n)
		return true
	})
	log.Printf("Waiters served: %d, per waiter min %d max %d", perOwner.Size(), max(fewest, 0), most)
	if n := overlaps.Value(); n > 0 {
		log.Printf("Mutual exclusion violated %d times", n)
	}
}
