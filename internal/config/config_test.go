package config

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestApplyUpdatesTunables(t *testing.T) {
	cfg := &Config{}

	cfg.apply(Config{
		TickInterval:  30 * time.Second,
		RetryAttempts: 5,
		RetryDelay:    time.Second,
		ConnTimeout:   10 * time.Second,
		TempDir:       "/var/tmp/relay",
	})

	attempts, delay := cfg.Retry()
	assert.Equal(t, 5, attempts)
	assert.Equal(t, time.Second, delay)
	assert.Equal(t, 30*time.Second, cfg.Tick())
	assert.Equal(t, 10*time.Second, cfg.DialTimeout())
	assert.Equal(t, "/var/tmp/relay", cfg.TempPath())
}

// Reads through the accessors must be safe against a concurrent reload.
// Run with -race to catch regressions toward lock-free field access.
func TestAccessorsSafeDuringReload(t *testing.T) {
	cfg := &Config{}

	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			cfg.apply(Config{
				TickInterval:  time.Duration(i) * time.Millisecond,
				RetryAttempts: i,
				RetryDelay:    time.Duration(i),
				ConnTimeout:   time.Duration(i),
				TempDir:       "/tmp",
			})
		}
	}()

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				cfg.Retry()
				_ = cfg.Tick()
				_ = cfg.DialTimeout()
				_ = cfg.TempPath()
			}
		}()
	}

	time.Sleep(10 * time.Millisecond)
	close(stop)
	wg.Wait()
}
