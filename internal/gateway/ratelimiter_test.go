package gateway

import "testing"

func TestTokenBucketExhaustsBurst(t *testing.T) {
	b := newTokenBucket(1, 3)
	for i := 0; i < 3; i++ {
		if !b.Allow() {
			t.Fatalf("expected burst token %d to be allowed", i)
		}
	}
	if b.Allow() {
		t.Fatal("expected burst to be exhausted")
	}
}
