package directory

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/juju/clock"

	"offboarding-workflow/internal/domain"
)

type Store interface {
	LeaderMappings(ctx context.Context) ([]domain.LeaderMapping, error)
	ReplaceLeaderMappings(ctx context.Context, mappings []domain.LeaderMapping) error
}

// Logger represents the methods used by the directory to log information.
type Logger interface {
	Infof(string, ...interface{})
	Warningf(string, ...interface{})
}

// Directory is an in-process view of the leader mapping table.
type Directory struct {
	store  Store
	logger Logger

	mu       sync.RWMutex
	byLeader map[string]domain.LeaderMapping
	byCRM    map[string]domain.LeaderMapping
}

func New(store Store, logger Logger) *Directory {
	return &Directory{
		store:    store,
		logger:   logger,
		byLeader: map[string]domain.LeaderMapping{},
		byCRM:    map[string]domain.LeaderMapping{},
	}
}

func key(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}

// Refresh reloads the in-process view from the store.
func (d *Directory) Refresh(ctx context.Context) error {
	mappings, err := d.store.LeaderMappings(ctx)
	if err != nil {
		return fmt.Errorf("load leader mappings: %w", err)
	}
	d.swap(mappings)
	return nil
}

// Replace persists mappings as the complete directory and swaps them in.
func (d *Directory) Replace(ctx context.Context, mappings []domain.LeaderMapping) error {
	if err := d.store.ReplaceLeaderMappings(ctx, mappings); err != nil {
		return fmt.Errorf("replace leader mappings: %w", err)
	}
	d.swap(mappings)
	return nil
}

// Import parses a mapping sheet and replaces the directory with it.
func (d *Directory) Import(ctx context.Context, r io.Reader) (int, error) {
	mappings, err := ParseCSV(r)
	if err != nil {
		return 0, err
	}
	if err := d.Replace(ctx, mappings); err != nil {
		return 0, err
	}
	return len(mappings), nil
}

func (d *Directory) swap(mappings []domain.LeaderMapping) {
	byLeader := make(map[string]domain.LeaderMapping, len(mappings))
	byCRM := make(map[string]domain.LeaderMapping)
	for _, m := range mappings {
		byLeader[key(m.TeamLeaderName)] = m
		if m.CRM != "" {
			byCRM[key(m.CRM)] = m
		}
	}
	d.mu.Lock()
	d.byLeader = byLeader
	d.byCRM = byCRM
	d.mu.Unlock()
	d.logger.Infof("leader directory loaded: %d leaders, %d crm codes", len(byLeader), len(byCRM))
}

func (d *Directory) Lookup(teamLeader string) (domain.LeaderMapping, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	m, ok := d.byLeader[key(teamLeader)]
	return m, ok
}

func (d *Directory) LookupCRM(crm string) (domain.LeaderMapping, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	m, ok := d.byCRM[key(crm)]
	return m, ok
}

// Search returns the mappings whose leader name contains query, sorted by name.
func (d *Directory) Search(query string) []domain.LeaderMapping {
	q := key(query)
	d.mu.RLock()
	out := make([]domain.LeaderMapping, 0)
	for k, m := range d.byLeader {
		if q == "" || strings.Contains(k, q) {
			out = append(out, m)
		}
	}
	d.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return key(out[i].TeamLeaderName) < key(out[j].TeamLeaderName) })
	return out
}

// Run refreshes the directory every interval until ctx is done.
func (d *Directory) Run(ctx context.Context, clk clock.Clock, interval time.Duration) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-clk.After(interval):
			if err := d.Refresh(ctx); err != nil {
				d.logger.Warningf("leader directory refresh failed: %v", err)
			}
		}
	}
}
