package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"owner_ledger/internal/ledger"

	"go.uber.org/zap"
)

// MessageSender delivers a text message. *whatsapp.Client satisfies it.
type MessageSender interface {
	SendTextMessage(ctx context.Context, phone, message string) error
}

// AlertService tells the owner over WhatsApp when a ledger row could not
// be saved.
type AlertService interface {
	NotifyPersisted(pr ledger.PersistResult)
	// Wait blocks until every alert already started has been sent or failed.
	Wait()
}

type alertService struct {
	wg      sync.WaitGroup
	sender  MessageSender
	phone   string
	timeout time.Duration
	log     *zap.Logger
}

func NewAlertService(sender MessageSender, phone string, timeout time.Duration, log *zap.Logger) AlertService {
	if log == nil {
		log = zap.NewNop()
	}
	return &alertService{sender: sender, phone: phone, timeout: timeout, log: log}
}

// NotifyPersisted sends an alert for a failed save. It returns at once and
// sends on its own goroutine, so it is safe to use as OnPersisted.
func (s *alertService) NotifyPersisted(pr ledger.PersistResult) {
	if pr.Err == nil || errors.Is(pr.Err, ledger.ErrRowRemoved) {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.send(pr)
	}()
}

func (s *alertService) Wait() {
	s.wg.Wait()
}

func (s *alertService) send(pr ledger.PersistResult) {
	ctx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	if err := s.sender.SendTextMessage(ctx, s.phone, alertMessage(pr)); err != nil {
		s.log.Error("failed to send unsaved row alert", zap.Int("row", pr.Row), zap.Error(err))
	}
}

func alertMessage(pr ledger.PersistResult) string {
	msg := fmt.Sprintf("⚠️ Ledger row %d was not saved: %v", pr.Row+1, pr.Err)
	if pr.ID != ledger.UnassignedID {
		msg += fmt.Sprintf(" (order #%d)", pr.ID)
	}
	return msg
}
