package distribute

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/eddiefleurent/portfolio_digest/internal/metrics"
	"github.com/eddiefleurent/portfolio_digest/internal/models"
	"github.com/eddiefleurent/portfolio_digest/internal/notify"
	"github.com/eddiefleurent/portfolio_digest/internal/report"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockSender struct {
	mock.Mock
}

func (m *MockSender) Send(ctx context.Context, msg notify.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func toGroup(name string) func(notify.Message) bool {
	return func(msg notify.Message) bool {
		return len(msg.To) > 0 && msg.To[0] == name+"@example.test"
	}
}

func testGroups() []models.RecipientGroup {
	return []models.RecipientGroup{
		{Name: "alpha", To: []string{"alpha@example.test"}, Subject: "A", Include: []string{"summary"}},
		{Name: "beta", To: []string{"beta@example.test"}, Subject: "B", Include: []string{"summary"}},
		{Name: "", To: nil, Subject: "C", Include: []string{"summary"}},
		{Name: "gamma", To: []string{"gamma@example.test"}, Subject: "G", Include: []string{"summary"}, Attachments: []string{"x.csv"}},
	}
}

func TestDistribute_IsolatesFailures(t *testing.T) {
	sender := &MockSender{}
	sender.On("Send", mock.Anything, mock.MatchedBy(toGroup("alpha"))).Return(nil).Once()
	sender.On("Send", mock.Anything, mock.MatchedBy(toGroup("beta"))).Return(errors.New("connection refused")).Once()
	sender.On("Send", mock.Anything, mock.MatchedBy(toGroup("gamma"))).Return(nil).Once()

	rec := metrics.New()
	d := NewDriver(sender, nil, Options{}, nil, rec)
	outcomes := d.Distribute(context.Background(), testGroups(), report.Input{Summary: "All quiet."})

	require.Len(t, outcomes, 4)
	assert.Equal(t, []string{"alpha", "beta", "(unnamed group)", "gamma"},
		[]string{outcomes[0].Group, outcomes[1].Group, outcomes[2].Group, outcomes[3].Group})

	assert.True(t, outcomes[0].Sent())
	assert.False(t, outcomes[1].Sent())
	assert.Contains(t, outcomes[1].Err.Error(), "connection refused")
	assert.ErrorIs(t, outcomes[2].Err, ErrNoRecipients)
	assert.True(t, outcomes[3].Sent(), "groups after a failure are still attempted")

	runID := outcomes[0].RunID
	assert.NotEmpty(t, runID)
	for _, o := range outcomes {
		assert.Equal(t, runID, o.RunID)
	}

	assert.Len(t, Failed(outcomes), 2)
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.Deliveries.WithLabelValues("beta", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.Deliveries.WithLabelValues("gamma", "sent")))
	sender.AssertExpectations(t)
}

func TestDistribute_MessageContents(t *testing.T) {
	sender := &MockSender{}
	var got notify.Message
	sender.On("Send", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		got = args.Get(1).(notify.Message)
	}).Return(nil)

	d := NewDriver(sender, report.NewRenderer(nil), Options{Cc: []string{"cc@example.test"}, Bcc: []string{"bcc@example.test"}}, nil, nil)
	groups := []models.RecipientGroup{testGroups()[3]}
	d.Distribute(context.Background(), groups, report.Input{Summary: "  All quiet.  "})

	assert.Equal(t, "G", got.Subject)
	assert.Equal(t, []string{"gamma@example.test"}, got.To)
	assert.Equal(t, []string{"cc@example.test"}, got.Cc)
	assert.Equal(t, []string{"bcc@example.test"}, got.Bcc)
	assert.Equal(t, []string{"x.csv"}, got.Attachments)
	assert.Equal(t, "=== Daily Summary ===\nAll quiet.\n", got.Body)
}

func TestDistribute_LogsSentLine(t *testing.T) {
	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})

	sender := &MockSender{}
	sender.On("Send", mock.Anything, mock.Anything).Return(nil)

	NewDriver(sender, nil, Options{}, logger, nil).Distribute(context.Background(), testGroups()[:1], report.Input{})

	assert.Contains(t, buf.String(), "Sent: alpha -> alpha@example.test")
	assert.Contains(t, buf.String(), "run_id=")
}

func TestDistribute_FixedRunID(t *testing.T) {
	sender := &MockSender{}
	sender.On("Send", mock.Anything, mock.Anything).Return(nil)
	d := NewDriver(sender, nil, Options{}, nil, nil)
	d.newRunID = func() string { return "run-1" }

	outcomes := d.Distribute(context.Background(), testGroups()[:2], report.Input{})
	assert.Equal(t, "run-1", outcomes[1].RunID)
}

func TestDistribute_NoGroups(t *testing.T) {
	sender := &MockSender{}
	outcomes := NewDriver(sender, nil, Options{}, nil, nil).Distribute(context.Background(), nil, report.Input{})
	assert.Empty(t, outcomes)
	sender.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}
