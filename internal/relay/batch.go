package relay

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/hakutakaid/SaveRestrict/internal/logger"
	"github.com/hakutakaid/SaveRestrict/internal/telegram/models"
)

// BatchStore persists crash-evidence snapshots of running jobs. The
// in-memory registry stays authoritative; snapshots are purged at
// startup and never resumed.
type BatchStore interface {
	Save(ctx context.Context, snapshot *models.BatchSnapshot) error
	Delete(ctx context.Context, userID int64) error
}

// StatusEditor edits the batch progress card in the control chat.
type StatusEditor interface {
	EditStatus(ctx context.Context, chatID int64, messageID int, text string)
}

// ClientSource provides the clients a batch run needs. *Pool satisfies
// it.
type ClientSource interface {
	UserBot(ctx context.Context, userID int64) (Client, error)
	UserClient(ctx context.Context, userID int64) (Client, error)
	Aux() Client
	Main() Client
}

// Job is one batch run: Count sequential messages starting at the
// linked one, relayed for a single user.
type Job struct {
	TaskID     string
	UserID     int64
	Link       *Link
	SourceLink string // raw text the user sent, kept for the snapshot
	Count      int

	// progress card in the control chat
	ProgressChatID int64
	ProgressMsgID  int

	processed atomic.Int64
	succeeded atomic.Int64
	cancelled atomic.Bool
}

// Cancel flags the job; the run loop halts after the current item.
func (j *Job) Cancel() {
	j.cancelled.Store(true)
}

// Cancelled reports whether Cancel was called.
func (j *Job) Cancelled() bool {
	return j.cancelled.Load()
}

// Processed returns the number of items handled so far.
func (j *Job) Processed() int {
	return int(j.processed.Load())
}

// Succeeded returns the number of items delivered so far.
func (j *Job) Succeeded() int {
	return int(j.succeeded.Load())
}

func (j *Job) snapshot() *models.BatchSnapshot {
	return &models.BatchSnapshot{
		TaskID:    j.TaskID,
		UserID:    j.UserID,
		Link:      j.SourceLink,
		StartID:   j.Link.MessageID,
		Count:     j.Count,
		Processed: j.Processed(),
		Succeeded: j.Succeeded(),
		UpdatedAt: time.Now().UTC(),
	}
}

// Registry enforces one running job per user and owns the snapshot
// lifecycle.
type Registry struct {
	store BatchStore

	mu   sync.Mutex
	jobs map[int64]*Job
}

// NewRegistry creates a Registry over the given snapshot store.
func NewRegistry(store BatchStore) *Registry {
	return &Registry{store: store, jobs: make(map[int64]*Job)}
}

// Begin registers the job, assigning a task ID when the caller left it
// empty. ErrBatchActive when the user already has a running job.
func (r *Registry) Begin(job *Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, running := r.jobs[job.UserID]; running {
		return ErrBatchActive
	}
	if job.TaskID == "" {
		job.TaskID = uuid.New().String()
	}
	r.jobs[job.UserID] = job
	return nil
}

// Get returns the user's running job, or nil.
func (r *Registry) Get(userID int64) *Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.jobs[userID]
}

// Cancel flags the user's running job and reports whether one existed.
func (r *Registry) Cancel(userID int64) bool {
	r.mu.Lock()
	job := r.jobs[userID]
	r.mu.Unlock()
	if job == nil {
		return false
	}
	job.Cancel()
	return true
}

// Active returns the number of running jobs.
func (r *Registry) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}

// Release removes the user's job and deletes its snapshot. Deferred by
// the run loop so a panicking item cannot leave the user locked out.
func (r *Registry) Release(ctx context.Context, userID int64) {
	r.mu.Lock()
	delete(r.jobs, userID)
	r.mu.Unlock()
	if err := r.store.Delete(ctx, userID); err != nil {
		logger.L().Errorf("Failed to delete batch snapshot for user %d: %v", userID, err)
	}
}

// PurgeStale drops every snapshot left over from a previous process.
// Called once at startup; interrupted jobs are not resumed.
func PurgeStale(ctx context.Context, store interface {
	PurgeAll(ctx context.Context) (int64, error)
}) {
	purged, err := store.PurgeAll(ctx)
	if err != nil {
		logger.L().Errorf("Failed to purge stale batch snapshots: %v", err)
		return
	}
	if purged > 0 {
		logger.L().Infof("Purged %d stale batch snapshot(s)", purged)
	}
}

// Summary is the outcome of a finished batch run.
type Summary struct {
	Processed int
	Succeeded int
	Cancelled bool
}

// Orchestrator walks a message range and relays each item. Item
// failures never abort the run; the loop stops only on exhaustion or
// cancellation.
type Orchestrator struct {
	clients   ClientSource
	fetcher   *Fetcher
	executor  *Executor
	registry  *Registry
	status    StatusEditor
	itemDelay time.Duration
	sleep     func(time.Duration)
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(clients ClientSource, fetcher *Fetcher, executor *Executor, registry *Registry, status StatusEditor) *Orchestrator {
	return &Orchestrator{
		clients:   clients,
		fetcher:   fetcher,
		executor:  executor,
		registry:  registry,
		status:    status,
		itemDelay: 2 * time.Second,
		sleep:     time.Sleep,
	}
}

// Run executes a registered job to completion. The caller must have
// registered the job with Registry.Begin; Run releases it on return.
func (o *Orchestrator) Run(ctx context.Context, job *Job) Summary {
	defer o.registry.Release(context.WithoutCancel(ctx), job.UserID)

	main := o.clients.Main()
	aux := o.clients.Aux()

	for i := 0; i < job.Count; i++ {
		if job.Cancelled() || ctx.Err() != nil {
			break
		}

		// snapshot before the item so a crash mid-transfer is visible
		if err := o.registry.store.Save(ctx, job.snapshot()); err != nil {
			logger.L().Errorf("Failed to save batch snapshot for user %d: %v", job.UserID, err)
		}

		link := job.Link.WithMessageID(job.Link.MessageID + int32(i))
		status := o.runItem(ctx, job, main, aux, link)

		o.editCard(ctx, job, o.cardText(job, link, status))

		if i < job.Count-1 && !job.Cancelled() {
			o.sleep(o.itemDelay)
		}
	}

	summary := Summary{
		Processed: job.Processed(),
		Succeeded: job.Succeeded(),
		Cancelled: job.Cancelled(),
	}
	o.editCard(ctx, job, finalCardText(summary))
	return summary
}

// runItem fetches and relays one message, returning a short status for
// the progress card ("" on success). A flood wait surfacing from the
// transfer sleeps out the stated duration and moves on without
// retrying the item. A panicking item is contained: it counts as
// processed and the run goes on.
func (o *Orchestrator) runItem(ctx context.Context, job *Job, main, aux Client, link *Link) (status string) {
	defer job.processed.Add(1)
	defer func() {
		if r := recover(); r != nil {
			logger.L().Errorf("Panic relaying %s/%d: %v", link.ChatRef, link.MessageID, r)
			status = "internal error"
		}
	}()

	bot, user := o.resolveClients(ctx, job.UserID)
	if bot == nil {
		bot = main
	}

	msg := o.fetcher.Fetch(bot, user, link)
	if msg == nil {
		return "not found or not accessible"
	}

	env := Env{Status: main, User: user, Aux: aux}
	res := o.executor.Process(ctx, env, msg, Describe(msg), job.UserID, link)
	if res.Success() {
		job.succeeded.Add(1)
		return ""
	}
	if res.Kind == ResultFailed {
		logger.L().Warnf("Batch item %s/%d failed: %s", link.ChatRef, link.MessageID, res.Reason)
		if wait, ok := FloodWait(res.Err); ok {
			o.sleep(wait + time.Second)
		}
	}
	return truncate(res.Reason, 120)
}

// resolveClients looks up the user's own clients. Missing credentials
// are expected; anything else is logged.
func (o *Orchestrator) resolveClients(ctx context.Context, userID int64) (bot, user Client) {
	bot, err := o.clients.UserBot(ctx, userID)
	if err != nil && err != ErrNoBotToken {
		logger.L().Debugf("Bot client unavailable for user %d: %v", userID, err)
	}
	user, err = o.clients.UserClient(ctx, userID)
	if err != nil && err != ErrNoSession {
		logger.L().Debugf("Session client unavailable for user %d: %v", userID, err)
	}
	return bot, user
}

// CanAccess reports whether the linked message is reachable with the
// clients available to the user. Used to reject a batch before it is
// registered.
func (o *Orchestrator) CanAccess(ctx context.Context, userID int64, link *Link) bool {
	bot, user := o.resolveClients(ctx, userID)
	if bot == nil {
		bot = o.clients.Main()
	}
	return o.fetcher.Fetch(bot, user, link) != nil
}

func (o *Orchestrator) editCard(ctx context.Context, job *Job, text string) {
	if o.status == nil || job.ProgressMsgID == 0 {
		return
	}
	o.status.EditStatus(ctx, job.ProgressChatID, job.ProgressMsgID, text)
}

func (o *Orchestrator) cardText(job *Job, link *Link, status string) string {
	processed, succeeded := job.Processed(), job.Succeeded()
	text := fmt.Sprintf("Batch %d/%d\n✅ %d delivered, %d skipped or failed",
		processed, job.Count, succeeded, processed-succeeded)
	if status != "" {
		text += fmt.Sprintf("\nLast message %d: %s", link.MessageID, status)
	}
	return text
}

func finalCardText(s Summary) string {
	head := "Batch completed ✅"
	if s.Cancelled {
		head = "Batch cancelled 🚫"
	}
	return fmt.Sprintf("%s\nProcessed %d, delivered %d, skipped or failed %d",
		head, s.Processed, s.Succeeded, s.Processed-s.Succeeded)
}
