package fn

import (
	"context"
	"errors"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
)

func TestOkAndErr(t *testing.T) {
	r := Ok(42)
	if !r.IsOk() || r.IsErr() {
		t.Fatal("Ok should be ok")
	}
	v, err := r.Unwrap()
	if v != 42 || err != nil {
		t.Fatal("wrong unwrap")
	}

	e := Err[int](errors.New("fail"))
	if e.IsOk() || !e.IsErr() {
		t.Fatal("Err should be err")
	}
	if v, _ := e.Unwrap(); v != 0 {
		t.Fatal("Err value should be zero")
	}
}

func TestFromPair(t *testing.T) {
	if v, err := FromPair(strconv.Atoi("42")).Unwrap(); v != 42 || err != nil {
		t.Fatal("FromPair failed")
	}
	if FromPair(strconv.Atoi("nope")).IsOk() {
		t.Fatal("FromPair should fail")
	}
}

func TestPartition(t *testing.T) {
	vals, failed := Partition([]Result[string]{
		Ok("a"), Err[string](errors.New("x")), Ok("c"), Err[string](errors.New("y")),
	})
	if len(vals) != 2 || vals[0] != "a" || vals[1] != "c" {
		t.Fatalf("vals = %v", vals)
	}
	if len(failed) != 2 || failed[0] != 1 || failed[1] != 3 {
		t.Fatalf("failed = %v", failed)
	}
}

func TestParMapResultOrder(t *testing.T) {
	items := []int{5, 4, 3, 2, 1}
	out := ParMapResult(items, 3, func(i, v int) Result[string] {
		time.Sleep(time.Duration(v) * time.Millisecond)
		return Ok(strconv.Itoa(i) + ":" + strconv.Itoa(v))
	})
	for i, r := range out {
		v, _ := r.Unwrap()
		if v != strconv.Itoa(i)+":"+strconv.Itoa(items[i]) {
			t.Fatalf("out[%d] = %s", i, v)
		}
	}
}

func TestParMapResultBounded(t *testing.T) {
	var inFlight, peak atomic.Int32
	items := make([]int, 20)
	ParMapResult(items, 4, func(int, int) Result[int] {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(time.Millisecond)
		inFlight.Add(-1)
		return Ok(0)
	})
	if peak.Load() > 4 {
		t.Fatalf("peak concurrency %d exceeds 4", peak.Load())
	}
}

func TestParMapResultEmpty(t *testing.T) {
	if out := ParMapResult([]int{}, 2, func(int, int) Result[int] { return Ok(1) }); len(out) != 0 {
		t.Fatal("expected empty output")
	}
}

func TestTraced(t *testing.T) {
	v, err := Traced(context.Background(), "op", func(context.Context) (int, error) {
		return 3, nil
	}, attribute.String("k", "v"))
	if v != 3 || err != nil {
		t.Fatalf("Traced = %d, %v", v, err)
	}

	boom := errors.New("boom")
	_, err = Traced(context.Background(), "op", func(context.Context) (int, error) {
		return 0, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}
