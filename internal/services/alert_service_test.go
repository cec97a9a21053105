package services

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"owner_ledger/internal/ledger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type sentMessage struct {
	phone, text string
}

type chanSender struct {
	sent chan sentMessage
	err  error
}

func (s *chanSender) SendTextMessage(_ context.Context, phone, message string) error {
	s.sent <- sentMessage{phone: phone, text: message}
	return s.err
}

func TestAlertService_SendsOnFailedSave(t *testing.T) {
	sender := &chanSender{sent: make(chan sentMessage, 1)}
	svc := NewAlertService(sender, "966500000000", time.Second, zap.NewNop())

	svc.NotifyPersisted(ledger.PersistResult{Row: 2, ID: 7, Err: errors.New("database is locked")})

	select {
	case msg := <-sender.sent:
		assert.Equal(t, "966500000000", msg.phone)
		assert.Contains(t, msg.text, "row 3")
		assert.Contains(t, msg.text, "database is locked")
		assert.Contains(t, msg.text, "order #7")
	case <-time.After(2 * time.Second):
		t.Fatal("alert was not sent")
	}
}

func TestAlertService_IgnoresSuccessAndRemovedRows(t *testing.T) {
	sender := &chanSender{sent: make(chan sentMessage, 2)}
	svc := NewAlertService(sender, "966500000000", time.Second, nil)

	svc.NotifyPersisted(ledger.PersistResult{Row: 0, Outcome: ledger.OutcomeCreated, ID: 1})
	svc.NotifyPersisted(ledger.PersistResult{Row: -1, ID: ledger.UnassignedID, Err: ledger.ErrRowRemoved})

	select {
	case msg := <-sender.sent:
		t.Fatalf("unexpected alert %q", msg.text)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestAlertMessage(t *testing.T) {
	msg := alertMessage(ledger.PersistResult{Row: 0, ID: ledger.UnassignedID, Err: fmt.Errorf("create order for row 0: %w", errors.New("boom"))})
	require.Contains(t, msg, "row 1")
	assert.NotContains(t, msg, "order #")
}

type slowSender struct {
	delay time.Duration
	sent  atomic.Int32
}

func (s *slowSender) SendTextMessage(context.Context, string, string) error {
	time.Sleep(s.delay)
	s.sent.Add(1)
	return nil
}

func TestAlertService_WaitDrainsPendingAlerts(t *testing.T) {
	sender := &slowSender{delay: 50 * time.Millisecond}
	svc := NewAlertService(sender, "966500000000", time.Second, zap.NewNop())

	for i := 0; i < 3; i++ {
		svc.NotifyPersisted(ledger.PersistResult{Row: i, ID: ledger.UnassignedID, Err: errors.New("timeout")})
	}
	svc.Wait()

	assert.Equal(t, int32(3), sender.sent.Load())
}
