package fixsession

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/finalex-io/fixgo/pkg/fixcodec"
	"github.com/finalex-io/fixgo/pkg/fixerrors"
	"github.com/finalex-io/fixgo/testutil"
)

// signalingTransport wraps testutil.PipeTransport and republishes every
// Write onto a channel, so tests can wait for an outbound frame instead
// of polling or sleeping. failNextWrite lets a test force exactly one
// write failure to exercise the session's failed-send recovery path.
type signalingTransport struct {
	*testutil.PipeTransport
	writes        chan []byte
	failNextWrite atomic.Bool
}

var errForcedWrite = errors.New("signalingTransport: forced write failure")

func newSignalingTransport() *signalingTransport {
	return &signalingTransport{
		PipeTransport: testutil.NewPipeTransport(),
		writes:        make(chan []byte, 32),
	}
}

func (t *signalingTransport) Write(p []byte) (int, error) {
	if t.failNextWrite.CompareAndSwap(true, false) {
		return 0, errForcedWrite
	}
	n, err := t.PipeTransport.Write(p)
	if err == nil {
		cp := make([]byte, len(p))
		copy(cp, p)
		t.writes <- cp
	}
	return n, err
}

func awaitWrite(t *testing.T, tr *signalingTransport) []byte {
	t.Helper()
	select {
	case b := <-tr.writes:
		return b
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for outbound frame")
		return nil
	}
}

type event struct {
	kind   string
	msg    *fixcodec.InboundMessage
	reason LogoutReason
}

type recordingHandler struct {
	NopHandler
	events chan event
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{events: make(chan event, 32)}
}

func (h *recordingHandler) OnLogon(sessionKey string, cfg Config) {
	h.events <- event{kind: "logon"}
}

func (h *recordingHandler) OnAppMessage(sessionKey string, msg *fixcodec.InboundMessage, cfg Config) {
	h.events <- event{kind: "app", msg: msg}
}

func (h *recordingHandler) OnSessionMessage(sessionKey string, msg *fixcodec.InboundMessage, cfg Config) {
	h.events <- event{kind: "session", msg: msg}
}

func (h *recordingHandler) OnLogout(sessionKey string, reason LogoutReason, cfg Config) {
	h.events <- event{kind: "logout", reason: reason}
}

func (h *recordingHandler) await(t *testing.T, kind string) event {
	t.Helper()
	select {
	case ev := <-h.events:
		require.Equal(t, kind, ev.kind)
		return ev
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s event", kind)
		return event{}
	}
}

func testConfig(key string) Config {
	cfg := Config{
		SessionKey:               key,
		Host:                     "127.0.0.1",
		Port:                     1,
		SenderCompID:             "SND",
		TargetCompID:             "TGT",
		HeartbeatIntervalSeconds: 30,
	}
	cfg.ApplyDefaults()
	return cfg
}

func startTestSession(t *testing.T, tr *signalingTransport, handler Handler) *Session {
	t.Helper()
	reg := NewRegistry()
	dialer := func(ctx context.Context, host string, port int, opts TransportOpts) (Transport, error) {
		return tr, nil
	}
	s, err := Start(context.Background(), testConfig(t.Name()), handler, Options{
		Registry: reg,
		Dialer:   dialer,
		Logger:   zap.NewNop(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Stop() })
	return s
}

func buildFrame(t *testing.T, fields []fixcodec.Field) []byte {
	t.Helper()
	frame, err := fixcodec.Build("FIX.4.4", fields)
	require.NoError(t, err)
	return frame
}

func TestConnectSendsLogon(t *testing.T) {
	tr := newSignalingTransport()
	h := newRecordingHandler()
	startTestSession(t, tr, h)

	logon := awaitWrite(t, tr)
	s := string(logon)
	assert.Contains(t, s, "35=A\x01")
	assert.Contains(t, s, "49=SND\x01")
	assert.Contains(t, s, "56=TGT\x01")
	assert.Contains(t, s, "34=1\x01")
	assert.Contains(t, s, "98=0\x01")
	assert.Contains(t, s, "141=Y\x01")
}

func TestLogonReplyTransitionsToLoggedOn(t *testing.T) {
	tr := newSignalingTransport()
	h := newRecordingHandler()
	sess := startTestSession(t, tr, h)
	awaitWrite(t, tr) // our outbound Logon

	reply := buildFrame(t, []fixcodec.Field{
		{Tag: 35, Value: "A"}, {Tag: 49, Value: "TGT"}, {Tag: 56, Value: "SND"},
		{Tag: 34, Value: "1"}, {Tag: 52, Value: "20260101-00:00:00"},
		{Tag: 98, Value: "0"}, {Tag: 108, Value: "30"},
	})
	tr.Feed(reply)

	h.await(t, "logon")
	assert.Eventually(t, func() bool { return sess.Phase() == LoggedOn }, time.Second, 10*time.Millisecond)
	assert.Equal(t, 2, sess.state.RecvSeqNum())
}

func TestSendMessageBeforeLogonFails(t *testing.T) {
	tr := newSignalingTransport()
	h := newRecordingHandler()
	sess := startTestSession(t, tr, h)
	awaitWrite(t, tr)

	msg := fixcodec.NewBuilder("D").SetField(11, "ORD1")
	_, err := sess.SendMessage(msg)
	assert.ErrorIs(t, err, fixerrors.ErrNotLoggedOn)
}

func logonSession(t *testing.T) (*Session, *signalingTransport, *recordingHandler) {
	t.Helper()
	tr := newSignalingTransport()
	h := newRecordingHandler()
	sess := startTestSession(t, tr, h)
	awaitWrite(t, tr)

	reply := buildFrame(t, []fixcodec.Field{
		{Tag: 35, Value: "A"}, {Tag: 49, Value: "TGT"}, {Tag: 56, Value: "SND"},
		{Tag: 34, Value: "1"}, {Tag: 52, Value: "20260101-00:00:00"},
		{Tag: 98, Value: "0"}, {Tag: 108, Value: "30"},
	})
	tr.Feed(reply)
	h.await(t, "logon")
	assert.Eventually(t, func() bool { return sess.Phase() == LoggedOn }, time.Second, 10*time.Millisecond)
	return sess, tr, h
}

// TestSendMessageAfterLogon covers spec.md §6: SendMessage returns the
// exact bytes written with SOH rendered as '|'.
func TestSendMessageAfterLogon(t *testing.T) {
	sess, tr, _ := logonSession(t)

	msg := fixcodec.NewBuilder("D").SetField(11, "ORD1").SetField(55, "AAPL")
	raw, err := sess.SendMessage(msg)
	require.NoError(t, err)
	assert.False(t, strings.Contains(string(raw), "\x01"))
	assert.Contains(t, string(raw), "35=D|")
	assert.Contains(t, string(raw), "11=ORD1|")

	written := awaitWrite(t, tr)
	assert.Contains(t, string(written), "11=ORD1\x01")
}

// TestFailedWriteDoesNotBurnSendSeqNum covers spec.md Testable Property
// 3: send_seq_num only advances for a message that actually reached the
// wire. A write failure must leave the counter untouched so the retry
// reuses the same tag 34 the failed attempt would have used.
func TestFailedWriteDoesNotBurnSendSeqNum(t *testing.T) {
	sess, tr, h := logonSession(t)

	before := sess.state.SendSeqNum()

	tr.failNextWrite.Store(true)
	msg := fixcodec.NewBuilder("D").SetField(11, "ORD1")
	_, err := sess.SendMessage(msg)
	require.Error(t, err)
	assert.ErrorIs(t, err, errForcedWrite)
	assert.Equal(t, before, sess.state.SendSeqNum(), "a failed write must not consume a sequence number")

	// the failure closed the transport; wait for the session to notice
	// and re-synchronize on the test's view of the forced error.
	h.await(t, "logout")

	retry := fixcodec.NewBuilder("D").SetField(11, "ORD2")
	_, err = sess.SendMessage(retry)
	assert.ErrorIs(t, err, fixerrors.ErrNotLoggedOn)
}

// TestTestRequestEchoesHeartbeat covers S3: tag 112 is copied verbatim
// from TestRequest into the reply Heartbeat.
func TestTestRequestEchoesHeartbeat(t *testing.T) {
	_, tr, _ := logonSession(t)

	testReq := buildFrame(t, []fixcodec.Field{
		{Tag: 35, Value: "1"}, {Tag: 49, Value: "TGT"}, {Tag: 56, Value: "SND"},
		{Tag: 34, Value: "2"}, {Tag: 52, Value: "20260101-00:00:01"},
		{Tag: 112, Value: "PING-1"},
	})
	tr.Feed(testReq)

	hb := awaitWrite(t, tr)
	assert.Contains(t, string(hb), "35=0\x01")
	assert.Contains(t, string(hb), "112=PING-1\x01")
}

// TestSequenceGapRoutesToSessionMessage covers S5: a frame arriving
// ahead of the expected sequence number is handed to OnSessionMessage
// without advancing recv_seq_num.
func TestSequenceGapRoutesToSessionMessage(t *testing.T) {
	sess, tr, h := logonSession(t)
	before := sess.state.RecvSeqNum()

	gapped := buildFrame(t, []fixcodec.Field{
		{Tag: 35, Value: "D"}, {Tag: 49, Value: "TGT"}, {Tag: 56, Value: "SND"},
		{Tag: 34, Value: strconv.Itoa(before + 5)}, {Tag: 52, Value: "20260101-00:00:02"},
	})
	tr.Feed(gapped)

	ev := h.await(t, "session")
	assert.Equal(t, "D", ev.msg.MsgType)
	assert.Equal(t, before, sess.state.RecvSeqNum())
}

// TestSequenceResetGapFill covers S4: SequenceReset sets recv_seq_num
// to NewSeqNo directly.
func TestSequenceResetGapFill(t *testing.T) {
	sess, tr, _ := logonSession(t)

	reset := buildFrame(t, []fixcodec.Field{
		{Tag: 35, Value: "4"}, {Tag: 49, Value: "TGT"}, {Tag: 56, Value: "SND"},
		{Tag: 34, Value: strconv.Itoa(sess.state.RecvSeqNum())},
		{Tag: 52, Value: "20260101-00:00:03"},
		{Tag: 123, Value: "Y"}, {Tag: 36, Value: "50"},
	})
	tr.Feed(reset)

	assert.Eventually(t, func() bool { return sess.state.RecvSeqNum() == 50 }, time.Second, 10*time.Millisecond)
}

// TestLogonResetFlagAppliesBeforeValidation covers S6: 141=Y on an
// inbound Logon resets recv_seq_num to 1 before the gap/duplicate
// check runs, so a reply whose seq num is already back at 1 is an
// exact match, not a duplicate.
func TestLogonResetFlagAppliesBeforeValidation(t *testing.T) {
	tr := newSignalingTransport()
	h := newRecordingHandler()
	sess := startTestSession(t, tr, h)
	awaitWrite(t, tr)
	sess.state.setRecvSeq(42)

	reply := buildFrame(t, []fixcodec.Field{
		{Tag: 35, Value: "A"}, {Tag: 49, Value: "TGT"}, {Tag: 56, Value: "SND"},
		{Tag: 34, Value: "1"}, {Tag: 52, Value: "20260101-00:00:00"},
		{Tag: 98, Value: "0"}, {Tag: 108, Value: "30"}, {Tag: 141, Value: "Y"},
	})
	tr.Feed(reply)

	h.await(t, "logon")
	assert.Equal(t, 2, sess.state.RecvSeqNum())
}

// TestLogoutReceivedClosesSession covers the peer-initiated Logout path.
func TestLogoutReceivedClosesSession(t *testing.T) {
	sess, tr, h := logonSession(t)

	logout := buildFrame(t, []fixcodec.Field{
		{Tag: 35, Value: "5"}, {Tag: 49, Value: "TGT"}, {Tag: 56, Value: "SND"},
		{Tag: 34, Value: strconv.Itoa(sess.state.RecvSeqNum())},
		{Tag: 52, Value: "20260101-00:00:04"}, {Tag: 58, Value: "bye"},
	})
	tr.Feed(logout)

	ev := h.await(t, "logout")
	assert.Equal(t, LogoutReceived, ev.reason.Kind)
	assert.Equal(t, "bye", ev.reason.Text)
	assert.Equal(t, Disconnected, sess.Phase())
}

// TestTransportReadErrorTriggersReconnectNotification covers the
// connection-lost disposition.
func TestTransportReadErrorTriggersReconnectNotification(t *testing.T) {
	sess, tr, h := logonSession(t)
	_ = tr.Close()

	ev := h.await(t, "logout")
	assert.Equal(t, ConnectionLost, ev.reason.Kind)
	assert.Eventually(t, func() bool { return sess.Phase() == Disconnected }, time.Second, 10*time.Millisecond)
}

// TestMalformedFrameDoesNotAdvanceSequence covers the drop-and-log
// disposition for a frame that fails to parse.
func TestMalformedFrameDoesNotAdvanceSequence(t *testing.T) {
	sess, tr, _ := logonSession(t)
	before := sess.state.RecvSeqNum()

	garbage := []byte("8=FIX.4.4\x019=5\x01garbage\x0110=000\x01")
	tr.Feed(garbage)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, before, sess.state.RecvSeqNum())
}

// TestHandlerPanicDoesNotKillSession covers the failure barrier: a
// panicking OnAppMessage must not stop the session from processing the
// next message.
func TestHandlerPanicDoesNotKillSession(t *testing.T) {
	tr := newSignalingTransport()
	calls := make(chan string, 4)
	h := &panickyHandler{calls: calls}
	sess := startTestSession(t, tr, h)
	awaitWrite(t, tr)

	reply := buildFrame(t, []fixcodec.Field{
		{Tag: 35, Value: "A"}, {Tag: 49, Value: "TGT"}, {Tag: 56, Value: "SND"},
		{Tag: 34, Value: "1"}, {Tag: 52, Value: "20260101-00:00:00"},
		{Tag: 98, Value: "0"}, {Tag: 108, Value: "30"},
	})
	tr.Feed(reply)
	<-calls // logon

	app1 := buildFrame(t, []fixcodec.Field{
		{Tag: 35, Value: "D"}, {Tag: 49, Value: "TGT"}, {Tag: 56, Value: "SND"},
		{Tag: 34, Value: "2"}, {Tag: 52, Value: "20260101-00:00:01"},
	})
	tr.Feed(app1)
	<-calls // app message, panics internally but recovered

	app2 := buildFrame(t, []fixcodec.Field{
		{Tag: 35, Value: "D"}, {Tag: 49, Value: "TGT"}, {Tag: 56, Value: "SND"},
		{Tag: 34, Value: "3"}, {Tag: 52, Value: "20260101-00:00:02"},
	})
	tr.Feed(app2)
	received := <-calls
	assert.Equal(t, "app", received)
	assert.Equal(t, 4, sess.state.RecvSeqNum())
}

type panickyHandler struct {
	NopHandler
	calls chan string
}

func (h *panickyHandler) OnLogon(sessionKey string, cfg Config) {
	h.calls <- "logon"
}

func (h *panickyHandler) OnAppMessage(sessionKey string, msg *fixcodec.InboundMessage, cfg Config) {
	h.calls <- "app"
	panic("boom")
}

