// Package ingest runs the mailbox-to-bake-plan loop: fetch unseen mail, pick
// the newest authorised message with an image, OCR it, reconcile against
// the menu, and commit the plan.
package ingest

import (
	"context"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/villageroaster/bakeboard/internal/inbound"
	"github.com/villageroaster/bakeboard/internal/mailbox"
	"github.com/villageroaster/bakeboard/internal/menu"
	"github.com/villageroaster/bakeboard/internal/metrics"
	"github.com/villageroaster/bakeboard/internal/model"
	"github.com/villageroaster/bakeboard/internal/ocr"
	"github.com/villageroaster/bakeboard/internal/plan"
	"github.com/villageroaster/bakeboard/internal/resilience"
)

// Breaker names.
const (
	BreakerMailbox = "mailbox"
	BreakerOCR     = "ocr"
)

const (
	defaultInterval   = 60 * time.Second
	defaultStartDelay = 3 * time.Second
	recordTimeout     = 5 * time.Second
)

// Board is the part of the state store the loop drives.
type Board interface {
	Snapshot(ctx context.Context) model.Snapshot
	ApplyBakePlan(ctx context.Context, items []string)
}

// Normalizer prepares an attachment for OCR.
type Normalizer interface {
	Normalize(data []byte, filename string) []byte
}

// RunRecorder stores the audit record of each tick.
type RunRecorder interface {
	SaveRun(ctx context.Context, run model.Run) error
}

// Options wires a Loop. Mailbox, Filter, OCR and Board are required.
type Options struct {
	Mailbox    mailbox.Mailbox
	Filter     *inbound.Filter
	Normalizer Normalizer
	OCR        ocr.Extractor
	Menu       menu.Source
	Matcher    *plan.Matcher
	Board      Board
	Runs       RunRecorder
	Metrics    *metrics.Metrics
	Breakers   *resilience.Breakers
	Interval   time.Duration
	StartDelay time.Duration
}

// Loop is the ingestion supervisor.
type Loop struct {
	opts        Options
	mailBreaker *resilience.CircuitBreaker
	ocrBreaker  *resilience.CircuitBreaker
	nowFunc     func() time.Time
}

// New returns a Loop, filling unset options with defaults.
func New(opts Options) *Loop {
	if opts.Filter == nil {
		opts.Filter = inbound.NewFilter(nil, "", "")
	}
	if opts.Menu == nil {
		opts.Menu = menu.Chain(nil)
	}
	if opts.Matcher == nil {
		opts.Matcher = plan.NewMatcher(plan.DefaultThreshold)
	}
	if opts.Interval <= 0 {
		opts.Interval = defaultInterval
	}
	if opts.StartDelay < 0 {
		opts.StartDelay = defaultStartDelay
	}
	if opts.Breakers == nil {
		opts.Breakers = resilience.NewBreakers(resilience.FromConfig(0, 0), BreakerMailbox, BreakerOCR)
	}
	l := &Loop{
		opts:        opts,
		mailBreaker: opts.Breakers.Get(BreakerMailbox),
		ocrBreaker:  opts.Breakers.Get(BreakerOCR),
		nowFunc:     time.Now,
	}
	if l.mailBreaker == nil {
		l.mailBreaker = resilience.NewCircuitBreaker(BreakerMailbox, resilience.FromConfig(0, 0))
	}
	if l.ocrBreaker == nil {
		l.ocrBreaker = resilience.NewCircuitBreaker(BreakerOCR, resilience.FromConfig(0, 0))
	}
	return l
}

// Run waits the start delay, then ticks until ctx is cancelled, sleeping a
// full interval after each tick. A failed tick never stops the loop.
func (l *Loop) Run(ctx context.Context) {
	log := zap.L().With(zap.String("component", "ingest"))
	log.Info("ingest: loop starting",
		zap.Duration("interval", l.opts.Interval),
		zap.Duration("start_delay", l.opts.StartDelay),
	)

	delay := time.NewTimer(l.opts.StartDelay)
	defer delay.Stop()
	select {
	case <-ctx.Done():
		log.Info("ingest: loop stopped before first tick")
		return
	case <-delay.C:
	}

	// The interval runs from the end of each tick.
	wait := time.NewTimer(l.opts.Interval)
	defer wait.Stop()
	for {
		l.Tick(ctx) //nolint:errcheck // logged and recorded by Tick

		wait.Reset(l.opts.Interval)
		select {
		case <-ctx.Done():
			log.Info("ingest: loop stopped")
			return
		case <-wait.C:
		}
	}
}

// Tick runs one pass of the pipeline and returns its audit record. Errors
// and panics are contained: the run is marked failed, nothing is
// acknowledged, and the state is left untouched.
func (l *Loop) Tick(ctx context.Context) (run model.Run, err error) {
	run = model.Run{
		ID:        uuid.NewString(),
		StartedAt: l.nowFunc(),
		Status:    model.RunStatusIdle,
	}
	log := zap.L().With(zap.String("component", "ingest"), zap.String("run_id", run.ID))

	defer func() {
		if r := recover(); r != nil {
			err = eris.Errorf("ingest: panic in tick: %v", r)
			log.Error("ingest: tick panicked", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
		}
		if err != nil {
			run.Status = model.RunStatusFailed
			run.Error = err.Error()
			run.ErrorClass = string(resilience.ClassifyError(err))
			log.Error("ingest: tick failed", zap.String("error_class", run.ErrorClass), zap.Error(err))
		}
		run.FinishedAt = l.nowFunc()
		l.record(ctx, log, run)
	}()

	err = l.tick(ctx, log, &run)
	return run, err
}

func (l *Loop) tick(ctx context.Context, log *zap.Logger, run *model.Run) error {
	// Roll the day over even when there is no mail.
	l.opts.Board.Snapshot(ctx)

	msgs, err := resilience.ExecuteVal(ctx, l.mailBreaker, l.opts.Mailbox.FetchUnseen)
	if err != nil {
		return eris.Wrap(err, "ingest: fetch unseen")
	}
	if len(msgs) == 0 {
		log.Debug("ingest: no unseen mail")
		return nil
	}

	msg, att, status := l.selectMessage(log, msgs, run)
	if msg == nil {
		run.Status = status
		log.Info("ingest: no usable message", zap.String("status", string(status)), zap.Int("scanned", run.Scanned))
		return nil
	}
	run.MessageUID = msg.UID
	run.Attachment = att.Filename
	run.ContentType = att.ContentType
	run.AttachmentSize = len(att.Data)

	image := att.Data
	if l.opts.Normalizer != nil {
		image = l.opts.Normalizer.Normalize(att.Data, att.Filename)
	}

	start := time.Now()
	text, err := resilience.ExecuteVal(ctx, l.ocrBreaker, func(ctx context.Context) (string, error) {
		return l.opts.OCR.ExtractText(ctx, image)
	})
	if l.opts.Metrics != nil {
		l.opts.Metrics.ObserveOCR(time.Since(start))
	}
	if err != nil {
		return eris.Wrapf(err, "ingest: ocr message %d", msg.UID)
	}
	if strings.TrimSpace(text) == "" {
		log.Warn("ingest: ocr returned no text", zap.Uint32("uid", msg.UID))
	}

	candidates := plan.ExtractCandidates(text)
	run.Candidates = len(candidates)

	menuItems, err := l.opts.Menu.Load(ctx)
	if err != nil {
		log.Warn("ingest: menu unavailable, keeping raw candidates", zap.Error(err))
		menuItems = nil
	}
	items := l.opts.Matcher.Match(candidates, menuItems)

	if err := l.mailBreaker.Execute(ctx, func(ctx context.Context) error {
		return l.opts.Mailbox.MarkSeen(ctx, msg.UID)
	}); err != nil {
		return eris.Wrapf(err, "ingest: mark message %d seen", msg.UID)
	}
	l.opts.Board.ApplyBakePlan(ctx, items)

	run.Plan = items
	run.Status = model.RunStatusCommitted
	if l.opts.Metrics != nil {
		l.opts.Metrics.SetPlanItems(len(items))
	}
	log.Info("ingest: bake plan committed",
		zap.Uint32("uid", msg.UID),
		zap.String("subject", run.Subject),
		zap.Int("candidates", len(candidates)),
		zap.Int("menu_items", len(menuItems)),
		zap.Int("plan_items", len(items)),
	)
	return nil
}

// selectMessage scans msgs (newest first) for the first message that passes
// the filter and carries an image. When none qualifies it reports rejected,
// or no_attachment if at least one message passed the filter.
func (l *Loop) selectMessage(log *zap.Logger, msgs []mailbox.Message, run *model.Run) (*mailbox.Message, *inbound.Attachment, model.RunStatus) {
	status := model.RunStatusRejected
	for i := range msgs {
		m := &msgs[i]
		run.Scanned++

		hdr, err := inbound.ParseHeaders(m.Raw)
		if err != nil {
			log.Warn("ingest: unreadable headers", zap.Uint32("uid", m.UID), zap.Error(err))
			continue
		}
		v := l.opts.Filter.Check(hdr.From, hdr.Subject)
		if !v.Accepted {
			log.Debug("ingest: message rejected",
				zap.Uint32("uid", m.UID),
				zap.String("from", v.From),
				zap.String("reason", string(v.Reason)),
			)
			continue
		}
		status = model.RunStatusNoAttachment
		run.From, run.Subject = v.From, v.Subject

		att, err := inbound.FirstImage(m.Raw)
		if err != nil {
			log.Warn("ingest: unparseable message", zap.Uint32("uid", m.UID), zap.Error(err))
			continue
		}
		if att == nil {
			log.Debug("ingest: message has no image", zap.Uint32("uid", m.UID))
			continue
		}
		return m, att, model.RunStatusCommitted
	}
	return nil, nil, status
}

func (l *Loop) record(ctx context.Context, log *zap.Logger, run model.Run) {
	if l.opts.Metrics != nil {
		l.opts.Metrics.ObserveTick(run.Status, run.Duration())
	}
	if l.opts.Runs == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()
	if err := l.opts.Runs.SaveRun(ctx, run); err != nil {
		log.Warn("ingest: failed to save run record", zap.Error(err))
	}
}
