package relay

import (
	"fmt"
	"sync"
	"time"

	"github.com/hakutakaid/SaveRestrict/internal/logger"
)

const (
	mib = int64(1 << 20)
)

// progressStep returns the percent granularity for a transfer of the
// given size. Large transfers report finer-grained progress because
// each step takes longer to reach.
func progressStep(total int64) int {
	switch {
	case total >= 100*mib:
		return 10
	case total >= 50*mib:
		return 20
	case total >= 10*mib:
		return 30
	default:
		return 50
	}
}

type progressKey struct {
	chat int64
	msg  int32
}

type progressState struct {
	lastStep int
	started  time.Time
	dead     bool // editing failed, stop touching this message
}

// Reporter throttles status-message edits during long transfers. One
// Reporter serves all concurrent jobs; state is keyed by the status
// message being edited.
type Reporter struct {
	mu    sync.Mutex
	state map[progressKey]*progressState
	sleep func(time.Duration)
}

// NewReporter creates a Reporter.
func NewReporter() *Reporter {
	return &Reporter{
		state: make(map[progressKey]*progressState),
		sleep: time.Sleep,
	}
}

// Callback returns an edit function suitable for a gogram progress
// manager. Edits land on the given status message, prefixed with the
// stage label ("Downloading", "Uploading").
func (r *Reporter) Callback(client Client, stage string, chatID int64, msgID int32) func(total, current int64) {
	return func(total, current int64) {
		if total <= 0 {
			return
		}
		pct := int(current * 100 / total)
		if pct > 100 {
			pct = 100
		}

		key := progressKey{chat: chatID, msg: msgID}
		step := pct / progressStep(total) * progressStep(total)

		r.mu.Lock()
		st, ok := r.state[key]
		if !ok {
			// step 0 is implicit: the caller already posted the
			// initial status message
			st = &progressState{lastStep: 0, started: time.Now()}
			r.state[key] = st
		}
		if st.dead || (step == st.lastStep && pct < 100) {
			r.mu.Unlock()
			return
		}
		st.lastStep = step
		started := st.started
		if pct >= 100 {
			// transfer finished, forget the message
			delete(r.state, key)
		}
		r.mu.Unlock()

		text := renderProgress(stage, pct, current, total, started)
		if err := client.EditText(chatID, msgID, text); err != nil {
			if wait, ok := FloodWait(err); ok {
				logger.L().Debugf("Progress edit rate limited, sleeping %v", wait)
				r.sleep(wait)
				return
			}
			logger.L().Debugf("Progress edit failed, muting message %d/%d: %v", chatID, msgID, err)
			r.mu.Lock()
			if st, ok := r.state[key]; ok {
				st.dead = true
			}
			r.mu.Unlock()
		}
	}
}

// Forget drops any state held for a status message.
func (r *Reporter) Forget(chatID int64, msgID int32) {
	r.mu.Lock()
	delete(r.state, progressKey{chat: chatID, msg: msgID})
	r.mu.Unlock()
}

func renderProgress(stage string, pct int, current, total int64, started time.Time) string {
	elapsed := time.Since(started).Seconds()
	var speed float64
	if elapsed > 0 {
		speed = float64(current) / elapsed
	}
	var eta time.Duration
	if speed > 0 {
		eta = time.Duration(float64(total-current)/speed) * time.Second
	}

	return fmt.Sprintf("%s... %d%%\n%.2f MB / %.2f MB\n%.2f MB/s, ETA %s",
		stage, pct,
		float64(current)/float64(mib), float64(total)/float64(mib),
		speed/float64(mib), eta.Round(time.Second))
}
