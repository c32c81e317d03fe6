package matchmaking

import (
	"github.com/go-co-op/gocron/v2"

	"github.com/rocketscienceinc/ultimate-tictactoe-backend/internal/entity"
)

// ensureSweep - (re)arms the periodic sweep after hibernation.
func (that *Matchmaker) ensureSweep() {
	if that.sweepJob != nil {
		return
	}

	job, err := that.scheduler.NewJob(
		gocron.DurationJob(that.cfg.SweepInterval),
		gocron.NewTask(func() {
			that.mailbox.Post(that.sweep)
		}),
		gocron.WithName("matchmaking-sweep"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		that.logger.Error("failed to schedule sweep", "error", err)
		return
	}

	that.sweepJob = job
}

// sweep - prunes stale queue entries, records and rate-limit windows, and
// hibernates once everything is empty and quiet. Never panics out of the mailbox.
func (that *Matchmaker) sweep() {
	log := that.logger.With("method", "sweep")

	defer func() {
		if r := recover(); r != nil {
			log.Error("sweep failed", "panic", r)
		}
	}()

	now := that.clock.Now()

	kept := make([]entity.QueueEntry, 0, len(that.queue))
	for _, entry := range that.queue {
		if now.Sub(entry.JoinedAt) < that.cfg.MaxQueueWait {
			kept = append(kept, entry)
		}
	}

	expiredEntries := len(that.queue) - len(kept)
	that.queue = kept

	expiredRecords := 0
	for playerID, record := range that.records {
		if now.Sub(record.MatchedAt) >= that.cfg.RecordTTL {
			delete(that.records, playerID)
			expiredRecords++
		}
	}

	prunedWindows := that.limiter.Prune(now)

	if expiredEntries > 0 || expiredRecords > 0 {
		log.Info("sweep pruned", "queueEntries", expiredEntries, "records", expiredRecords, "rateWindows", prunedWindows)
	}

	if len(that.queue) == 0 && len(that.records) == 0 && now.Sub(that.lastActivity) >= that.cfg.HibernateAfter {
		that.hibernate()
	}
}

// hibernate - drops all in-memory state and the sweep job. The next call re-arms it.
func (that *Matchmaker) hibernate() {
	that.queue = nil
	that.records = make(map[string]entity.MatchRecord)
	that.limiter.Reset()

	if that.sweepJob != nil {
		if err := that.scheduler.RemoveJob(that.sweepJob.ID()); err != nil {
			that.logger.Error("failed to remove sweep job", "error", err)
		}

		that.sweepJob = nil
	}

	that.logger.Info("matchmaking hibernated")
}
