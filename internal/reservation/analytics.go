package reservation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/nekogravitycat/reservation-backend/internal/cache"
	"github.com/nekogravitycat/reservation-backend/internal/status"
)

const clientSearchLimit = 20

func (st *Stats) add(statusName string, count int, amount decimal.Decimal) {
	st.Total += count
	st.ByStatus[statusName] += count
	if statusName != status.Cancelled {
		st.Revenue = st.Revenue.Add(amount)
	}
}

// statsKey derives a cache key from the aggregate kind and its filter.
func statsKey(kind string, f StatsFilter) string {
	raw := f.OrganizationID + "|"
	if f.From != nil {
		raw += f.From.Format(dateLayout)
	}
	raw += "|"
	if f.To != nil {
		raw += f.To.Format(dateLayout)
	}
	sum := sha256.Sum256([]byte(raw))
	return cache.Key(cache.EntityStats, kind+":"+hex.EncodeToString(sum[:8]))
}

func checkStatsFilter(f StatsFilter) error {
	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		var errs violations
		errs.add("to must not be before from")
		return errs.err()
	}
	return nil
}

func (s *service) Stats(ctx context.Context, f StatsFilter) (*Stats, error) {
	if err := checkStatsFilter(f); err != nil {
		return nil, err
	}
	return cache.GetOrCreate(ctx, s.cache, statsKey("summary", f), s.shortTTL, func(ctx context.Context) (*Stats, error) {
		return s.repo.Stats(ctx, f)
	})
}

func (s *service) CountPerDay(ctx context.Context, f StatsFilter) ([]DayCount, error) {
	if err := checkStatsFilter(f); err != nil {
		return nil, err
	}
	return cache.GetOrCreate(ctx, s.cache, statsKey("per-day", f), s.shortTTL, func(ctx context.Context) ([]DayCount, error) {
		return s.repo.CountPerDay(ctx, f)
	})
}

func (s *service) CountBySource(ctx context.Context, f StatsFilter) ([]SourceCount, error) {
	if err := checkStatsFilter(f); err != nil {
		return nil, err
	}
	return cache.GetOrCreate(ctx, s.cache, statsKey("by-source", f), s.shortTTL, func(ctx context.Context) ([]SourceCount, error) {
		return s.repo.CountBySource(ctx, f)
	})
}

// SearchClients finds guests by name across reservation details, most recent stay first.
func (s *service) SearchClients(ctx context.Context, name string) ([]Client, error) {
	name = strings.TrimSpace(name)
	if len([]rune(name)) < clientMinQuery {
		var errs violations
		errs.add("name must be at least %d characters", clientMinQuery)
		return nil, errs.err()
	}
	key := cache.Key(cache.EntityStats, fmt.Sprintf("clients:%s", strings.ToLower(name)))
	return cache.GetOrCreate(ctx, s.cache, key, s.shortTTL, func(ctx context.Context) ([]Client, error) {
		return s.repo.SearchClients(ctx, name, clientSearchLimit)
	})
}
