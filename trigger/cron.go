package trigger

import (
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/justapithecus/arkive/bus"
)

func init() {
	Register("cron", newCronTrigger)
}

// cronParser parses the standard 6-field form (seconds minutes hours
// day-of-month month day-of-week) spec.md §4.2.2 calls for, rather than
// robfig/cron's 5-field ParseStandard helper.
var cronParser = cron.NewParser(
	cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow,
)

// cronTrigger fires notify immediately on construction and then at every
// subsequent match of a standard six-field cron schedule.
type cronTrigger struct {
	stopCh chan struct{}
	wg     sync.WaitGroup
}

func newCronTrigger(args map[string]any, _ bus.Subscriber, notify func()) (Handle, error) {
	patternRaw, ok := args["pattern"]
	if !ok {
		return nil, errors.New("cron: missing pattern")
	}
	pattern, ok := patternRaw.(string)
	if !ok {
		return nil, errors.New("cron: pattern must be a string")
	}
	schedule, err := cronParser.Parse(pattern)
	if err != nil {
		return nil, err
	}

	t := &cronTrigger{stopCh: make(chan struct{})}
	t.wg.Add(1)
	go t.loop(schedule, notify)
	return t, nil
}

func (t *cronTrigger) loop(schedule cron.Schedule, notify func()) {
	defer t.wg.Done()
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-timer.C:
			notify()
			timer.Reset(time.Until(schedule.Next(time.Now())))
		case <-t.stopCh:
			return
		}
	}
}

func (t *cronTrigger) Close() error {
	close(t.stopCh)
	t.wg.Wait()
	return nil
}
