// Package dashboard assembles one monitoring snapshot per pass: discovery,
// then one aggregation per view (mail, convoys, crew) over the same source
// set. It is the fetch function the poller and every front end share.
package dashboard

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/townworks/towncrier/pkg/aggregate"
	"github.com/townworks/towncrier/pkg/alerts"
	"github.com/townworks/towncrier/pkg/beads"
	"github.com/townworks/towncrier/pkg/config"
	"github.com/townworks/towncrier/pkg/logger"
	"github.com/townworks/towncrier/pkg/town"
)

// Record types as the bd tool classifies them.
const (
	TypeMessage = "message"
	TypeConvoy  = "convoy"
	TypeAgent   = "agent"
)

// Snapshot is the complete dashboard state for one pass.
type Snapshot struct {
	Sources   []town.Source `json:"sources"`
	Mail      []beads.Bead  `json:"mail"`
	Convoys   []beads.Bead  `json:"convoys"`
	Crew      []beads.Bead  `json:"crew"`
	Partial   bool          `json:"partial"`
	BDVersion string        `json:"bd_version,omitempty"`
	FetchedAt time.Time     `json:"fetched_at"`
}

// Service wires the core components together.
type Service struct {
	cfg      *config.Config
	disc     *town.Discovery
	client   *beads.Client
	agg      *aggregate.Aggregator
	notifier *alerts.Notifier

	lastPassFailed bool
}

// NewService builds a Service from config. The town root must be set (or
// discoverable from the working directory).
func NewService(cfg *config.Config) (*Service, error) {
	root := cfg.TownRoot
	if root == "" {
		found, err := town.FindRoot(".")
		if err != nil {
			return nil, fmt.Errorf("no town root configured and %w", err)
		}
		root = found
	}

	disc := town.NewDiscovery(root)

	auditDir := cfg.AuditDir
	if auditDir == "" {
		auditDir = filepath.Dir(config.GetConfigPath())
	}
	clientOpts := beads.ClientOptions{AuditDir: auditDir}
	if cfg.BDBinary != "" {
		// An explicit binary beats PATH lookup.
		clientOpts.LookPathFn = func(string) (string, error) {
			return "", fmt.Errorf("bd binary pinned to %s", cfg.BDBinary)
		}
		clientOpts.BinaryCandidates = []string{cfg.BDBinary}
	}
	client := beads.NewClient(clientOpts)

	agg := aggregate.New(disc, client)
	if cfg.OverfetchFactor > 0 {
		agg.OverfetchFactor = cfg.OverfetchFactor
	}
	if cfg.OverfetchFloor > 0 {
		agg.OverfetchFloor = cfg.OverfetchFloor
	}
	if cfg.OverfetchCap > 0 {
		agg.OverfetchCap = cfg.OverfetchCap
	}

	return &Service{
		cfg:      cfg,
		disc:     disc,
		client:   client,
		agg:      agg,
		notifier: alerts.NewNotifier(cfg.Alerts),
	}, nil
}

// Discovery exposes the source discovery for status commands.
func (s *Service) Discovery() *town.Discovery { return s.disc }

// Client exposes the bd client for status commands.
func (s *Service) Client() *beads.Client { return s.client }

// Mail aggregates in-flight messages across all sources.
func (s *Service) Mail(ctx context.Context) (aggregate.Result, error) {
	return s.agg.Aggregate(ctx, aggregate.Request{
		Status:            aggregate.PresetActive(),
		Type:              TypeMessage,
		Limit:             s.cfg.Limit,
		ExcludeIDPrefixes: s.cfg.ExcludeIDPrefixes,
	})
}

// Convoys aggregates open convoys across all sources.
func (s *Service) Convoys(ctx context.Context) (aggregate.Result, error) {
	return s.agg.Aggregate(ctx, aggregate.Request{
		Status:            aggregate.StatusOf("open"),
		Type:              TypeConvoy,
		Limit:             s.cfg.Limit,
		ExcludeIDPrefixes: s.cfg.ExcludeIDPrefixes,
	})
}

// Crew aggregates open agent records across all sources.
func (s *Service) Crew(ctx context.Context) (aggregate.Result, error) {
	return s.agg.Aggregate(ctx, aggregate.Request{
		Status:            aggregate.StatusOf("open"),
		Type:              TypeAgent,
		Limit:             s.cfg.Limit,
		ExcludeIDPrefixes: s.cfg.ExcludeIDPrefixes,
	})
}

// Fetch runs one full pass. A pass-level failure alerts once per transition
// into the failed state rather than on every poll tick.
func (s *Service) Fetch(ctx context.Context) (Snapshot, error) {
	snap := Snapshot{FetchedAt: time.Now()}

	sources, err := s.disc.Sources()
	if err != nil {
		s.alertPassFailure(ctx, err)
		return snap, err
	}
	snap.Sources = sources

	mail, err := s.Mail(ctx)
	if err != nil {
		s.alertPassFailure(ctx, err)
		return snap, err
	}
	convoys, err := s.Convoys(ctx)
	if err != nil {
		s.alertPassFailure(ctx, err)
		return snap, err
	}
	crew, err := s.Crew(ctx)
	if err != nil {
		s.alertPassFailure(ctx, err)
		return snap, err
	}

	snap.Mail = mail.Beads
	snap.Convoys = convoys.Beads
	snap.Crew = crew.Beads
	snap.Partial = mail.Partial || convoys.Partial || crew.Partial
	snap.BDVersion = s.client.Version()

	s.lastPassFailed = false
	logger.DebugCF("dashboard", "pass complete", map[string]interface{}{
		"sources": len(sources),
		"mail":    len(snap.Mail),
		"convoys": len(snap.Convoys),
		"crew":    len(snap.Crew),
		"partial": snap.Partial,
	})
	return snap, nil
}

func (s *Service) alertPassFailure(ctx context.Context, err error) {
	logger.ErrorCF("dashboard", "aggregation pass failed", map[string]interface{}{
		"error": err.Error(),
	})
	if s.lastPassFailed || !s.notifier.Enabled() {
		s.lastPassFailed = true
		return
	}
	s.lastPassFailed = true
	s.notifier.Notify(ctx, alerts.Event{
		Title: "towncrier: aggregation pass failed",
		Body:  err.Error(),
	})
}
