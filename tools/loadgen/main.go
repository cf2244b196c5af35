package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

var levels = []string{"INFO", "INFO", "INFO", "WARN", "ERROR"}

var messages = []string{
	"request served in %dms",
	"cache hit for key %s",
	"connection timeout while calling upstream %s",
	"disk usage at %d percent",
	"user %s authenticated",
	"retrying job %s",
}

func main() {
	out := flag.String("out", "-", "Output file path, or - for stdout")
	redisAddr := flag.String("redis", "", "Redis address; when set, lines go to a stream instead of a file")
	stream := flag.String("stream", "log_chunks", "Redis stream name")
	duration := flag.Duration("d", 30*time.Second, "Duration of the generation run")
	lps := flag.Int("lps", 1000, "Lines per second limit")
	malformedPct := flag.Int("malformed", 2, "Percent of lines emitted malformed")
	seed := flag.Int64("seed", time.Now().UnixNano(), "Random seed")
	flag.Parse()

	log.Printf("Generating log lines for %s at %d lines/sec", *duration, *lps)

	rng := rand.New(rand.NewSource(*seed))
	limiter := rate.NewLimiter(rate.Limit(*lps), 100) // Allow bursts up to 100

	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	emit, cleanup, err := buildSink(ctx, *out, *redisAddr, *stream)
	if err != nil {
		log.Fatalf("failed to set up output: %v", err)
	}
	defer cleanup()

	var emitted, failed atomic.Int64
	for {
		if err := limiter.Wait(ctx); err != nil {
			break
		}
		if err := emit(makeLine(rng, *malformedPct)); err != nil {
			failed.Add(1)
			continue
		}
		emitted.Add(1)
	}

	log.Printf("Done. Emitted: %d, Failed: %d", emitted.Load(), failed.Load())
}

func makeLine(rng *rand.Rand, malformedPct int) string {
	if rng.Intn(100) < malformedPct {
		return fmt.Sprintf("garbage %s\n", uuid.NewString())
	}

	level := levels[rng.Intn(len(levels))]
	template := messages[rng.Intn(len(messages))]
	var msg string
	switch {
	case template == "request served in %dms" || template == "disk usage at %d percent":
		msg = fmt.Sprintf(template, rng.Intn(100))
	default:
		msg = fmt.Sprintf(template, uuid.NewString()[:8])
	}

	return fmt.Sprintf("[%s] %s: %s\n", time.Now().UTC().Format(time.RFC3339), level, msg)
}

// buildSink returns a line emitter for the chosen output plus its cleanup.
func buildSink(ctx context.Context, out, redisAddr, stream string) (func(string) error, func(), error) {
	noop := func() {}

	if redisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: redisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, noop, err
		}
		emit := func(line string) error {
			return client.XAdd(ctx, &redis.XAddArgs{
				Stream: stream,
				Values: map[string]any{"data": line},
			}).Err()
		}
		return emit, func() { client.Close() }, nil
	}

	if out == "-" {
		emit := func(line string) error {
			_, err := os.Stdout.WriteString(line)
			return err
		}
		return emit, noop, nil
	}

	f, err := os.OpenFile(out, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, noop, err
	}
	emit := func(line string) error {
		_, err := f.WriteString(line)
		return err
	}
	return emit, func() { f.Close() }, nil
}
