package scheduler

import (
	"hash/fnv"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
)

// maxStartupSpread caps the extra delay before an interval job's first run.
const maxStartupSpread = 30 * time.Second

// spreadSchedule fires once at first, then follows base. cron.Every works in
// whole seconds, so first is kept on a second boundary too.
type spreadSchedule struct {
	base  cron.Schedule
	first time.Time
}

func (s *spreadSchedule) Next(t time.Time) time.Time {
	if t.Before(s.first) {
		return s.first
	}
	return s.base.Next(t)
}

var spreadSeq atomic.Uint64

// withStartupSpread returns an "@every" schedule whose first run is one
// interval plus a per-job jitter after now.
func withStartupSpread(every time.Duration, now time.Time, job string) (cron.Schedule, time.Duration) {
	base := cron.Every(every)
	limit := min(every, maxStartupSpread)
	if limit < time.Second {
		return base, 0
	}

	h := fnv.New64a()
	_, _ = h.Write([]byte(job))
	seed := now.UnixNano() ^ int64(h.Sum64()) ^ int64(spreadSeq.Add(1))
	jitter := time.Duration(rand.New(rand.NewSource(seed)).Int63n(int64(limit))).Truncate(time.Second)

	first := now.Add(every + jitter).Truncate(time.Second)
	return &spreadSchedule{base: base, first: first}, jitter
}
