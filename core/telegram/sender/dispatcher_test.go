package sender

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestDispatcherRunsEnqueuedJobs(t *testing.T) {
	d := NewDispatcher(Options{QueueSize: 8, Workers: 2})
	defer d.Close()

	var done sync.WaitGroup
	var ran atomic.Int32
	for i := 0; i < 5; i++ {
		done.Add(1)
		err := d.Enqueue(context.Background(), "send.text", "sendMessage", func() error {
			defer done.Done()
			ran.Add(1)
			return nil
		})
		if err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}
	done.Wait()

	if got := ran.Load(); got != 5 {
		t.Errorf("ran = %d, want 5", got)
	}
	if d.ErrorCount() != 0 {
		t.Errorf("ErrorCount = %d, want 0", d.ErrorCount())
	}
}

func TestDispatcherQueueFull(t *testing.T) {
	d := NewDispatcher(Options{QueueSize: 1, Workers: 1})
	defer d.Close()

	block := make(chan struct{})

	// Occupy the single worker, then fill the single queue slot.
	started := make(chan struct{})
	_ = d.Enqueue(context.Background(), "a", "", func() error {
		close(started)
		<-block
		return nil
	})
	<-started
	_ = d.Enqueue(context.Background(), "b", "", func() error { return nil })

	err := d.Enqueue(context.Background(), "c", "", func() error { return nil })
	if !errors.Is(err, ErrQueueFull) {
		t.Errorf("err = %v, want ErrQueueFull", err)
	}
	close(block)
}

func TestDispatcherCloseDrainsAndRejects(t *testing.T) {
	d := NewDispatcher(Options{QueueSize: 8, Workers: 2})

	var ran atomic.Int32
	for i := 0; i < 4; i++ {
		_ = d.Enqueue(context.Background(), "send.text", "", func() error {
			ran.Add(1)
			return nil
		})
	}
	d.Close()

	if got := ran.Load(); got != 4 {
		t.Errorf("ran = %d, want all queued jobs drained before Close returns", got)
	}
	if err := d.Enqueue(context.Background(), "late", "", func() error { return nil }); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("err = %v, want ErrQueueClosed", err)
	}
}

func TestDispatcherCountsNonRetryableFailure(t *testing.T) {
	d := NewDispatcher(Options{QueueSize: 4, Workers: 1, MaxRetries: 2, RetryBackoff: time.Millisecond})

	boom := errors.New("bad request (400)")
	done := make(chan struct{})
	_ = d.Enqueue(context.Background(), "send.text", "", func() error {
		defer close(done)
		return boom
	})
	<-done
	d.Close()

	if d.ErrorCount() != 1 {
		t.Errorf("ErrorCount = %d, want 1", d.ErrorCount())
	}
}

func TestClassifyError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"deadline", context.DeadlineExceeded, "timeout"},
		{"http_5xx", errors.New("telegram: internal (500)"), "http_5xx"},
		{"http_4xx", errors.New("telegram: bad request (400)"), "http_4xx"},
		{"unknown", errors.New("something odd"), "unknown"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := classifyError(tc.err); got != tc.want {
				t.Errorf("classifyError = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestSanitizeErrorMessage(t *testing.T) {
	err := errors.New("Post \"https://api.telegram.org/bot123456:AAHdqTcvCH1vGWJxfSeofSAs0K5PALDsaw/sendMessage\": timeout")
	got := sanitizeErrorMessage(err)
	if got == err.Error() {
		t.Error("token not redacted")
	}
	if want := "bot<redacted>"; !strings.Contains(got, want) {
		t.Errorf("sanitized message %q lacks %q", got, want)
	}
}
