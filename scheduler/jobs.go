package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/WIGMarkets/wigmarkets-sub001/services/history"
	"github.com/WIGMarkets/wigmarkets-sub001/services/refresh"
)

// archiveRetention bounds the sqlite snapshot archive.
const archiveRetention = 2 * 365 * 24 * time.Hour

// runTimeout caps one scheduled job invocation; a wedged upstream must not
// pin a job goroutine past the next trigger.
const runTimeout = 10 * time.Minute

// Scheduler manages scheduled jobs
type Scheduler struct {
	cron     *gocron.Scheduler
	orch     *refresh.Orchestrator
	archive  *history.Archive
	location *time.Location
}

// NewScheduler creates a new scheduler instance. Jobs run on Warsaw time
// so triggers track the exchange calendar, not the host's.
func NewScheduler(orch *refresh.Orchestrator, archive *history.Archive) *Scheduler {
	loc, err := time.LoadLocation("Europe/Warsaw")
	if err != nil {
		log.Printf("Europe/Warsaw tz unavailable, scheduling in UTC: %v", err)
		loc = time.UTC
	}
	return &Scheduler{
		cron:     gocron.NewScheduler(loc),
		orch:     orch,
		archive:  archive,
		location: loc,
	}
}

// Start starts all scheduled jobs
func (s *Scheduler) Start() {
	log.Println("Starting scheduler...")

	// Full refresh daily at 17:30, after the GPW closing auction.
	s.cron.Every(1).Day().At("17:30").Do(func() {
		s.runRefresh()
	})

	// Cheap change7d refill every 30 minutes during trading hours; the
	// full refresh leaves it absent on purpose.
	s.cron.Every(30).Minutes().Do(func() {
		if s.isMarketOpen() {
			s.runRefill()
		}
	})

	// Prune the snapshot archive weekly on Sunday at 01:00.
	s.cron.Every(1).Week().Sunday().At("01:00").Do(func() {
		s.pruneArchive()
	})

	s.cron.StartAsync()
	log.Println("Scheduler started successfully")
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.cron.Stop()
	log.Println("Scheduler stopped")
}

func (s *Scheduler) runRefresh() {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	summary, err := s.orch.Run(ctx)
	if err != nil {
		log.Printf("Scheduled refresh failed: %v", err)
		return
	}
	log.Printf("Scheduled refresh done: tier=%s records=%d", summary.Tier, summary.Records)
}

func (s *Scheduler) runRefill() {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	filled, err := s.orch.RefillWeeklyChanges(ctx)
	if err != nil {
		log.Printf("change7d refill failed: %v", err)
		return
	}
	if filled > 0 {
		log.Printf("change7d refill done: %d symbols", filled)
	}
}

func (s *Scheduler) pruneArchive() {
	if s.archive == nil {
		return
	}
	pruned, err := s.archive.Prune(time.Now().Add(-archiveRetention))
	if err != nil {
		log.Printf("Archive prune failed: %v", err)
		return
	}
	log.Printf("Archive prune done: %d rows removed", pruned)
}

// isMarketOpen reports whether the GPW main session is running.
func (s *Scheduler) isMarketOpen() bool {
	now := time.Now().In(s.location)

	// Check if weekend
	if now.Weekday() == time.Saturday || now.Weekday() == time.Sunday {
		return false
	}

	// GPW continuous trading: 9:00 - 17:00 (Warsaw time)
	hour := now.Hour()
	return hour >= 9 && hour < 17
}
