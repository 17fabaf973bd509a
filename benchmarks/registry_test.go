package benchmarks

import (
	"context"
	"fmt"
	"testing"

	"github.com/randalmurphal/namereg/pkg/namereg"
)

// BenchmarkPut measures fire-and-forget registration throughput.
func BenchmarkPut(b *testing.B) {
	reg := namereg.New[string, int]()
	defer reg.Close()
	owner := namereg.NewOwner("bench")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		reg.Put("key", i, owner)
	}
}

// BenchmarkPutDistinctKeys measures puts across many keys.
func BenchmarkPutDistinctKeys(b *testing.B) {
	reg := namereg.New[string, int]()
	defer reg.Close()
	owner := namereg.NewOwner("bench")

	keys := make([]string, 1024)
	for i := range keys {
		keys[i] = fmt.Sprintf("key-%d", i)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		reg.Put(keys[i%len(keys)], i, owner)
	}
}

// BenchmarkLookup measures snapshot reads against a populated key.
func BenchmarkLookup(b *testing.B) {
	reg := namereg.New[string, int]()
	defer reg.Close()

	for i := 0; i < 8; i++ {
		reg.Put("key", i, namereg.NewOwner("bench"))
	}
	if _, _, err := reg.WaitPut(context.Background(), "key", -1); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if regs := reg.Lookup("key"); len(regs) == 0 {
			b.Fatal("empty lookup")
		}
	}
}

// BenchmarkLookupParallel measures concurrent snapshot reads.
func BenchmarkLookupParallel(b *testing.B) {
	reg := namereg.New[string, int]()
	defer reg.Close()

	reg.Put("key", 1, namereg.NewOwner("bench"))
	if _, _, err := reg.WaitPut(context.Background(), "key", -1); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			reg.Lookup("key")
		}
	})
}

// BenchmarkRegisterExclusiveUncontended measures acquire/release of a
// free key.
func BenchmarkRegisterExclusiveUncontended(b *testing.B) {
	reg := namereg.New[string, int]()
	defer reg.Close()
	owner := namereg.NewOwner("bench")
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := reg.RegisterExclusive(ctx, "key", i, owner, 0); err != nil {
			b.Fatal(err)
		}
		reg.Del("key", owner)
	}
}

// BenchmarkHandover measures acquire/release with one queued contender
// per round, exercising the promotion path.
func BenchmarkHandover(b *testing.B) {
	reg := namereg.New[string, int]()
	defer reg.Close()
	ctx := context.Background()

	a := namereg.NewOwner("a")
	c := namereg.NewOwner("c")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := reg.RegisterExclusive(ctx, "key", i, a, 0); err != nil {
			b.Fatal(err)
		}
		done := make(chan error, 1)
		go func() {
			done <- reg.RegisterExclusive(ctx, "key", i, c, -1)
		}()
		reg.Del("key", a)
		if err := <-done; err != nil {
			b.Fatal(err)
		}
		reg.Del("key", c)
	}
}

// BenchmarkWaitPutWakeup measures the park/wake round trip.
func BenchmarkWaitPutWakeup(b *testing.B) {
	reg := namereg.New[string, int]()
	defer reg.Close()
	owner := namereg.NewOwner("bench")
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		done := make(chan error, 1)
		go func() {
			_, _, err := reg.WaitPut(ctx, "key", -1)
			done <- err
		}()
		reg.Put("key", i, owner)
		if err := <-done; err != nil {
			b.Fatal(err)
		}
		reg.Del("key", owner)
	}
}

// BenchmarkOwnerPurge measures termination cleanup for owners holding
// several keys.
func BenchmarkOwnerPurge(b *testing.B) {
	reg := namereg.New[string, int]()
	defer reg.Close()
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		owner := namereg.NewOwner("bench")
		for j := 0; j < 8; j++ {
			reg.Put(fmt.Sprintf("key-%d", j), j, owner)
		}
		owner.Terminate()
		// Wait until the purge is applied before the next round.
		for j := 0; j < 8; j++ {
			if err := reg.WaitDel(ctx, fmt.Sprintf("key-%d", j), -1); err != nil {
				b.Fatal(err)
			}
		}
	}
}
