// Package distribute renders a body for each recipient group and hands it to
// a sender, one group at a time, in declared order.
package distribute

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/eddiefleurent/portfolio_digest/internal/metrics"
	"github.com/eddiefleurent/portfolio_digest/internal/models"
	"github.com/eddiefleurent/portfolio_digest/internal/notify"
	"github.com/eddiefleurent/portfolio_digest/internal/report"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ErrNoRecipients is returned for a group whose to-list is empty.
var ErrNoRecipients = errors.New("group has no recipients")

// Outcome is the delivery result for one group.
type Outcome struct {
	RunID   string
	Group   string
	To      []string
	Subject string
	Err     error
}

// Sent reports whether the group's message went out.
func (o Outcome) Sent() bool { return o.Err == nil }

// Options carries the addresses copied on every message.
type Options struct {
	Cc  []string
	Bcc []string
}

// Driver runs one distribution pass over the configured groups.
type Driver struct {
	sender   notify.Sender
	renderer *report.Renderer
	opts     Options
	logger   logrus.FieldLogger
	metrics  *metrics.Recorder
	newRunID func() string
	now      func() time.Time
}

// NewDriver creates a Driver. A nil renderer gets a default one; nil logger
// and recorder are allowed.
func NewDriver(sender notify.Sender, renderer *report.Renderer, opts Options, logger logrus.FieldLogger, rec *metrics.Recorder) *Driver {
	// Guard against nil logger
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}
	if renderer == nil {
		renderer = report.NewRenderer(logger)
	}
	return &Driver{
		sender:   sender,
		renderer: renderer,
		opts:     opts,
		logger:   logger,
		metrics:  rec,
		newRunID: uuid.NewString,
		now:      time.Now,
	}
}

// Distribute renders and sends each group's report. A failure for one group
// is recorded in its outcome and does not stop the groups after it. Outcomes
// come back in group order, one per group.
func (d *Driver) Distribute(ctx context.Context, groups []models.RecipientGroup, in report.Input) []Outcome {
	runID := d.newRunID()
	log := d.logger.WithField("run_id", runID)
	log.WithField("groups", len(groups)).Info("starting distribution run")

	outcomes := make([]Outcome, 0, len(groups))
	for _, g := range groups {
		name := g.DisplayName()
		out := Outcome{RunID: runID, Group: name, To: g.To, Subject: g.Subject}

		if len(g.To) == 0 {
			out.Err = fmt.Errorf("%s: %w", name, ErrNoRecipients)
		} else {
			start := d.now()
			body := d.renderer.Render(ctx, g, in)
			d.metrics.ObserveRender(name, d.now().Sub(start))

			msg := notify.Message{
				Subject:     g.Subject,
				Body:        body,
				To:          g.To,
				Cc:          d.opts.Cc,
				Bcc:         d.opts.Bcc,
				Attachments: g.Attachments,
			}
			if err := d.sender.Send(ctx, msg); err != nil {
				out.Err = fmt.Errorf("%s: %w", name, err)
			}
		}

		d.metrics.Delivery(name, out.Sent())
		if out.Err != nil {
			log.WithFields(logrus.Fields{"group": name}).WithError(out.Err).Error("delivery failed")
		} else {
			log.WithField("group", name).Infof("Sent: %s -> %s", name, strings.Join(g.To, ", "))
		}
		outcomes = append(outcomes, out)
	}

	d.metrics.RunFinished(d.now())
	return outcomes
}

// Failed returns the outcomes that did not send.
func Failed(outcomes []Outcome) []Outcome {
	var out []Outcome
	for _, o := range outcomes {
		if !o.Sent() {
			out = append(out, o)
		}
	}
	return out
}
