package push

import (
	"context"
	"errors"
	"testing"
	"time"

	"firebase.google.com/go/v4/messaging"

	notifdom "assetmarket/internal/domain/notification"
)

type fakeSender struct {
	got *messaging.Message
	err error
}

func (f *fakeSender) Send(_ context.Context, m *messaging.Message) (string, error) {
	f.got = m
	if f.err != nil {
		return "", f.err
	}
	return "projects/p/messages/1", nil
}

func TestFCMClient_Deliver(t *testing.T) {
	t.Parallel()

	n := notifdom.New(notifdom.KindBidReceived, "0xowner", map[string]string{
		"assetId":   "asset-1",
		"amountEth": "0.5",
	}, time.Now())

	t.Run("sends to device token", func(t *testing.T) {
		t.Parallel()
		s := &fakeSender{}
		c := NewFCMClient(s)
		if err := c.Deliver(context.Background(), notifdom.Recipient{WalletAddress: "0xowner", DeviceToken: "tok"}, n); err != nil {
			t.Fatalf("Deliver: %v", err)
		}
		if s.got == nil || s.got.Token != "tok" {
			t.Fatalf("message = %+v", s.got)
		}
		if s.got.Data["kind"] != "bid_received" || s.got.Data["assetId"] != "asset-1" {
			t.Fatalf("data = %v", s.got.Data)
		}
		if s.got.Notification.Title != "New bid on asset asset-1" {
			t.Fatalf("title = %q", s.got.Notification.Title)
		}
	})

	t.Run("no device token", func(t *testing.T) {
		t.Parallel()
		s := &fakeSender{}
		err := NewFCMClient(s).Deliver(context.Background(), notifdom.Recipient{WalletAddress: "0xowner"}, n)
		if !errors.Is(err, notifdom.ErrChannelUnavailable) {
			t.Fatalf("err = %v, want ErrChannelUnavailable", err)
		}
		if s.got != nil {
			t.Fatal("sender should not be called")
		}
	})

	t.Run("send failure", func(t *testing.T) {
		t.Parallel()
		boom := errors.New("unavailable")
		err := NewFCMClient(&fakeSender{err: boom}).Deliver(context.Background(), notifdom.Recipient{DeviceToken: "tok"}, n)
		if !errors.Is(err, boom) {
			t.Fatalf("err = %v, want %v", err, boom)
		}
	})
}
