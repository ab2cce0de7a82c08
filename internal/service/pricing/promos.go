package pricing

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// PromoSource resolves a promo code to a discount fraction in [0,1).
// Lookups are case-insensitive; unknown codes resolve to 0.
type PromoSource interface {
	Fraction(ctx context.Context, code string) float64
}

// StaticPromos is an in-memory promo table keyed by upper-case code
type StaticPromos map[string]float64

// Fraction returns the discount fraction for a code, 0 when unknown
func (p StaticPromos) Fraction(_ context.Context, code string) float64 {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return 0
	}
	return p[code]
}

// RedisPromos resolves promo codes against Redis so campaigns can be updated
// without a release. Key layout: promo:<CODE> -> fraction.
type RedisPromos struct {
	client *redis.Client
}

// NewRedisPromos creates a Redis-backed promo source
func NewRedisPromos(client *redis.Client) *RedisPromos {
	return &RedisPromos{client: client}
}

// Fraction looks up the discount fraction for a code. Missing keys and
// lookup errors both resolve to 0 so pricing never fails on a promo.
func (p *RedisPromos) Fraction(ctx context.Context, code string) float64 {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return 0
	}

	key := fmt.Sprintf("promo:%s", code)
	val, err := p.client.Get(ctx, key).Float64()
	if err != nil {
		return 0
	}
	if val < 0 || val >= 1 {
		return 0
	}
	return val
}
