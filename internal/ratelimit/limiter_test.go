package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Rubr1c/discord-ai-sdk-sub000/pkg/models"
)

func testRequest(userID string) *models.Request {
	return &models.Request{ID: "req-1", UserID: userID, GuildID: "guild-1"}
}

func TestLimiter_AdmitsUpToLimit(t *testing.T) {
	limiter := NewLimiter(StaticPolicy(Policy{Limit: 3, Window: time.Minute}))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		limited, err := limiter.Limited(ctx, testRequest("user-a"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if limited {
			t.Errorf("request %d should be admitted", i)
		}
	}

	limited, err := limiter.Limited(ctx, testRequest("user-a"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !limited {
		t.Error("request past the limit should be denied")
	}
}

func TestLimiter_PrincipalsAreIndependent(t *testing.T) {
	limiter := NewLimiter(StaticPolicy(Policy{Limit: 1, Window: time.Minute}))
	ctx := context.Background()

	if limited, _ := limiter.Limited(ctx, testRequest("user-a")); limited {
		t.Fatal("first request for user-a should be admitted")
	}
	if limited, _ := limiter.Limited(ctx, testRequest("user-a")); !limited {
		t.Fatal("second request for user-a should be denied")
	}
	if limited, _ := limiter.Limited(ctx, testRequest("user-b")); limited {
		t.Error("user-b should not be affected by user-a's quota")
	}
}

func TestLimiter_WindowExpiry(t *testing.T) {
	limiter := NewLimiter(StaticPolicy(Policy{Limit: 2, Window: time.Minute}))
	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return current }
	ctx := context.Background()

	limiter.Limited(ctx, testRequest("user-a"))
	limiter.Limited(ctx, testRequest("user-a"))

	if limited, _ := limiter.Limited(ctx, testRequest("user-a")); !limited {
		t.Fatal("third request inside the window should be denied")
	}

	// Advance past the window; old admissions fall out.
	current = current.Add(61 * time.Second)
	if limited, _ := limiter.Limited(ctx, testRequest("user-a")); limited {
		t.Error("request after the window expired should be admitted")
	}
}

func TestLimiter_DeniedCallsDoNotExtendWindow(t *testing.T) {
	limiter := NewLimiter(StaticPolicy(Policy{Limit: 1, Window: time.Minute}))
	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return current }
	ctx := context.Background()

	limiter.Limited(ctx, testRequest("user-a"))

	// Hammering while limited must not push the reset time out.
	for i := 0; i < 10; i++ {
		current = current.Add(5 * time.Second)
		if limited, _ := limiter.Limited(ctx, testRequest("user-a")); !limited {
			t.Fatalf("call %d inside the window should be denied", i)
		}
	}

	current = current.Add(11 * time.Second)
	if limited, _ := limiter.Limited(ctx, testRequest("user-a")); limited {
		t.Error("admission should recover one window after the original request")
	}
}

func TestLimiter_ResolverOverride(t *testing.T) {
	fallback := Policy{Limit: 1, Window: time.Minute}
	source := PolicyResolver(func(ctx context.Context, userID, guildID string) (Policy, error) {
		if userID == "vip" {
			return Policy{Limit: 3, Window: time.Minute}, nil
		}
		return Policy{}, nil
	}, fallback)
	limiter := NewLimiter(source)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if limited, _ := limiter.Limited(ctx, testRequest("vip")); limited {
			t.Errorf("vip request %d should be admitted", i)
		}
	}
	if limited, _ := limiter.Limited(ctx, testRequest("vip")); !limited {
		t.Error("vip should be denied past the resolved limit")
	}

	// Zero policy from the resolver falls back to the static default.
	if limited, _ := limiter.Limited(ctx, testRequest("user-a")); limited {
		t.Fatal("first request under fallback should be admitted")
	}
	if limited, _ := limiter.Limited(ctx, testRequest("user-a")); !limited {
		t.Error("second request under fallback should be denied")
	}
}

func TestLimiter_ResolverErrorPropagates(t *testing.T) {
	boom := errors.New("policy store down")
	source := PolicyResolver(func(ctx context.Context, userID, guildID string) (Policy, error) {
		return Policy{}, boom
	}, Policy{Limit: 1, Window: time.Minute})
	limiter := NewLimiter(source)

	_, err := limiter.Limited(context.Background(), testRequest("user-a"))
	if !errors.Is(err, boom) {
		t.Errorf("expected resolver error, got %v", err)
	}
}

func TestLimiter_ResetFor(t *testing.T) {
	limiter := NewLimiter(StaticPolicy(Policy{Limit: 1, Window: time.Hour}))
	ctx := context.Background()

	limiter.Limited(ctx, testRequest("user-a"))
	limiter.Limited(ctx, testRequest("user-b"))

	limiter.ResetFor("user-a")

	if limited, _ := limiter.Limited(ctx, testRequest("user-a")); limited {
		t.Error("user-a should be admitted after reset")
	}
	if limited, _ := limiter.Limited(ctx, testRequest("user-b")); !limited {
		t.Error("user-b should still be over quota")
	}
}

func TestLimiter_ResetAll(t *testing.T) {
	limiter := NewLimiter(StaticPolicy(Policy{Limit: 1, Window: time.Hour}))
	ctx := context.Background()

	limiter.Limited(ctx, testRequest("user-a"))
	limiter.Limited(ctx, testRequest("user-b"))

	limiter.ResetAll()

	if limited, _ := limiter.Limited(ctx, testRequest("user-a")); limited {
		t.Error("user-a should be admitted after reset")
	}
	if limited, _ := limiter.Limited(ctx, testRequest("user-b")); limited {
		t.Error("user-b should be admitted after reset")
	}
}

func TestLimiter_SetPolicyKeepsHistory(t *testing.T) {
	limiter := NewLimiter(StaticPolicy(Policy{Limit: 1, Window: time.Hour}))
	ctx := context.Background()

	limiter.Limited(ctx, testRequest("user-a"))
	limiter.SetPolicy(StaticPolicy(Policy{Limit: 2, Window: time.Hour}))

	// The earlier admission still counts against the new limit.
	if limited, _ := limiter.Limited(ctx, testRequest("user-a")); limited {
		t.Fatal("second request under the raised limit should be admitted")
	}
	if limited, _ := limiter.Limited(ctx, testRequest("user-a")); !limited {
		t.Error("third request should be denied")
	}
}
