package trigger

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/justapithecus/arkive/bus"
)

func init() {
	Register("rate", newRateTrigger)
}

// rateTrigger fires notify at a fixed period, immediately on construction
// and then once per period until closed.
type rateTrigger struct {
	stopCh chan struct{}
	wg     sync.WaitGroup
}

func newRateTrigger(args map[string]any, _ bus.Subscriber, notify func()) (Handle, error) {
	period, err := ratePeriod(args)
	if err != nil {
		return nil, err
	}

	t := &rateTrigger{stopCh: make(chan struct{})}
	t.wg.Add(1)
	go t.loop(period, notify)
	return t, nil
}

func ratePeriod(args map[string]any) (time.Duration, error) {
	hzRaw, hasHz := args["hz"]
	periodRaw, hasPeriod := args["period"]
	if hasHz == hasPeriod {
		return 0, errors.New("rate: exactly one of hz or period must be set")
	}
	if hasPeriod {
		v, ok := periodRaw.(float64)
		if !ok {
			return 0, fmt.Errorf("rate: period must be a number, got %T", periodRaw)
		}
		if v <= 0 || v > 3600 {
			return 0, fmt.Errorf("rate: period %v out of range (0, 3600] seconds", v)
		}
		return time.Duration(v * float64(time.Second)), nil
	}
	v, ok := hzRaw.(float64)
	if !ok {
		return 0, fmt.Errorf("rate: hz must be a number, got %T", hzRaw)
	}
	if v < 1.0/3600 || v > 200 {
		return 0, fmt.Errorf("rate: hz %v out of range [1/3600, 200]", v)
	}
	return time.Duration(float64(time.Second) / v), nil
}

func (t *rateTrigger) loop(period time.Duration, notify func()) {
	defer t.wg.Done()
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-timer.C:
			notify()
			timer.Reset(period)
		case <-t.stopCh:
			return
		}
	}
}

func (t *rateTrigger) Close() error {
	close(t.stopCh)
	t.wg.Wait()
	return nil
}
