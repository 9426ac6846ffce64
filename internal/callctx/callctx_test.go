package callctx

import "testing"

func TestRegisterRestoreFree(t *testing.T) {
	base := Count()

	ctx := Register("payload")
	if ctx == 0 {
		t.Fatal("Register returned zero token")
	}
	if got := Count(); got != base+1 {
		t.Fatalf("Count = %d, want %d", got, base+1)
	}

	v, ok := Restore(ctx).(string)
	if !ok || v != "payload" {
		t.Fatalf("Restore = %v, want payload", Restore(ctx))
	}

	Free(ctx)
	if got := Count(); got != base {
		t.Fatalf("Count after Free = %d, want %d", got, base)
	}
	if Restore(ctx) != nil {
		t.Fatal("Restore after Free should return nil")
	}
}

func TestRestoreZeroToken(t *testing.T) {
	if Restore(0) != nil {
		t.Fatal("Restore(0) should return nil")
	}
}

func TestFreeZeroTokenIsNoOp(t *testing.T) {
	// The empty-slot path funnels zero through Free.
	Free(0)
}

func TestDoubleFreePanics(t *testing.T) {
	ctx := Register(42)
	Free(ctx)

	defer func() {
		if recover() == nil {
			t.Fatal("second Free did not panic")
		}
	}()
	Free(ctx)
}

func TestTokensAreUnique(t *testing.T) {
	seen := make(map[uintptr]bool)
	var tokens []uintptr
	for i := 0; i < 100; i++ {
		ctx := Register(i)
		if seen[ctx] {
			t.Fatalf("token %#x issued twice", ctx)
		}
		seen[ctx] = true
		tokens = append(tokens, ctx)
	}
	for _, ctx := range tokens {
		Free(ctx)
	}
}
