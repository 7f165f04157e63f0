package ws

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bytedance/sonic"

	"github.com/GriffinCanCode/SessionOS/backend/internal/logging"
	"github.com/GriffinCanCode/SessionOS/backend/internal/types"
)

// attachFakeClient registers a client backed only by its send channel, which
// is all the dialog paths touch.
func attachFakeClient(h *Hub) *client {
	cl := &client{send: make(chan []byte, 16)}
	h.mu.Lock()
	h.clients[cl] = true
	h.mu.Unlock()
	return cl
}

func receiveOutbound(t *testing.T, cl *client) outbound {
	t.Helper()
	select {
	case data := <-cl.send:
		var msg outbound
		if err := sonic.Unmarshal(data, &msg); err != nil {
			t.Fatalf("decode outbound: %v", err)
		}
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("no outbound message")
		return outbound{}
	}
}

func TestSelectKernelNoClient(t *testing.T) {
	h := NewHub(logging.NewNop(), nil)

	_, err := h.SelectKernel(context.Background(), types.SelectionList{}, true)
	if !errors.Is(err, ErrNoClient) {
		t.Errorf("expected ErrNoClient, got %v", err)
	}
	if _, err := h.ConfirmRestart(context.Background(), "python3"); !errors.Is(err, ErrNoClient) {
		t.Errorf("expected ErrNoClient, got %v", err)
	}
}

func TestSelectKernelRoundTrip(t *testing.T) {
	h := NewHub(logging.NewNop(), nil)
	cl := attachFakeClient(h)

	type outcome struct {
		result types.SelectionResult
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := h.SelectKernel(context.Background(), types.SelectionList{}, true)
		done <- outcome{result, err}
	}()

	msg := receiveOutbound(t, cl)
	if msg.Type != "select_kernel" || msg.DialogID == "" || !msg.Cancelable {
		t.Fatalf("unexpected dialog message: %+v", msg)
	}

	h.resolveDialog(inbound{
		Type:     "dialog_reply",
		DialogID: msg.DialogID,
		Accepted: true,
		Identity: &types.KernelIdentity{Name: "ir"},
	})

	select {
	case o := <-done:
		if o.err != nil {
			t.Fatalf("select kernel: %v", o.err)
		}
		if !o.result.Accepted || o.result.Identity == nil || o.result.Identity.Name != "ir" {
			t.Errorf("unexpected result: %+v", o.result)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("dialog did not resolve")
	}
}

func TestConfirmRestartRoundTrip(t *testing.T) {
	h := NewHub(logging.NewNop(), nil)
	cl := attachFakeClient(h)

	done := make(chan bool, 1)
	go func() {
		accepted, err := h.ConfirmRestart(context.Background(), "Python 3")
		if err != nil {
			t.Errorf("confirm restart: %v", err)
		}
		done <- accepted
	}()

	msg := receiveOutbound(t, cl)
	if msg.Type != "confirm_restart" || msg.Kernel != "Python 3" {
		t.Fatalf("unexpected dialog message: %+v", msg)
	}
	h.resolveDialog(inbound{Type: "dialog_reply", DialogID: msg.DialogID, Accepted: true})

	select {
	case accepted := <-done:
		if !accepted {
			t.Error("expected accepted restart")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("dialog did not resolve")
	}
}

func TestDialogCanceledByContext(t *testing.T) {
	h := NewHub(logging.NewNop(), nil)
	attachFakeClient(h)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := h.SelectKernel(ctx, types.SelectionList{}, false)
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context cancellation, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("dialog did not cancel")
	}
}

func TestStaleDialogReplyIgnored(t *testing.T) {
	h := NewHub(logging.NewNop(), nil)

	// Must not panic or block on an unknown dialog id.
	h.resolveDialog(inbound{Type: "dialog_reply", DialogID: "gone", Accepted: true})
}

func TestReportErrorBroadcasts(t *testing.T) {
	h := NewHub(logging.NewNop(), nil)
	cl := attachFakeClient(h)

	h.ReportError("Failed to start kernel", errors.New("gateway down"))

	msg := receiveOutbound(t, cl)
	if msg.Type != "error" || msg.Title != "Failed to start kernel" || msg.Message != "gateway down" {
		t.Errorf("unexpected error broadcast: %+v", msg)
	}
}
