package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpcparty/core/internal/logger"
	"github.com/mpcparty/core/pkg/wire"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

// echoServer upgrades every incoming connection and hands the server side
// of it to the test through the returned channel. It echoes nothing itself:
// each test reads from or writes to that socket to play the relay's part.
func echoServer(t *testing.T) (*httptest.Server, chan *websocket.Conn) {
	t.Helper()
	conns := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		conns <- conn
	}))
	return srv, conns
}

func wsURL(httpURL string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http")
}

func TestConnectIsNoOpWhenAlreadyOpen(t *testing.T) {
	srv, conns := echoServer(t)
	defer srv.Close()

	tr := New(wsURL(srv.URL), logger.NewDefaultLogger())
	ctx := context.Background()

	require.NoError(t, tr.Connect(ctx, "group", "keygen", "tok"))
	<-conns
	require.NoError(t, tr.Connect(ctx, "group", "keygen", "tok"))

	assert.True(t, tr.IsConnected())
	_ = tr.Disconnect()
}

func TestConnectRedialsAfterServerDrop(t *testing.T) {
	srv, conns := echoServer(t)
	defer srv.Close()

	tr := New(wsURL(srv.URL), logger.NewDefaultLogger())
	ctx := context.Background()

	require.NoError(t, tr.Connect(ctx, "group", "keygen", "tok"))
	firstConn := <-conns

	require.NoError(t, firstConn.Close())

	require.Eventually(t, func() bool {
		return !tr.IsConnected()
	}, time.Second, 10*time.Millisecond, "transport should observe the dropped socket")

	require.NoError(t, tr.Connect(ctx, "group", "keygen", "tok"), "Connect must re-dial once the prior conn died")
	secondConn := <-conns
	defer secondConn.Close()

	assert.True(t, tr.IsConnected())

	var mu sync.Mutex
	var received wire.ProtocolMessage
	tr.SetHandler(func(m wire.ProtocolMessage) {
		mu.Lock()
		received = m
		mu.Unlock()
	})

	require.NoError(t, secondConn.WriteJSON(wire.ProtocolMessage{
		GroupId: "group", FromId: "03bb", ToId: "0", Round: 1,
	}))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return received.FromId == "03bb"
	}, time.Second, 10*time.Millisecond, "reconnected socket must feed the readLoop")

	_ = tr.Disconnect()
}

func TestSendQueuesWhenDisconnected(t *testing.T) {
	tr := New("ws://unused.invalid", logger.NewDefaultLogger())

	for i := 0; i < QueueCapacity+5; i++ {
		err := tr.Send(context.Background(), wire.ProtocolMessage{Content: "x"})
		require.NoError(t, err)
	}

	tr.queueMu.Lock()
	defer tr.queueMu.Unlock()
	assert.Len(t, tr.queue, QueueCapacity, "queue must be bounded to capacity")
}

func TestShouldEncryptPolicy(t *testing.T) {
	cases := []struct {
		name string
		msg  wire.ProtocolMessage
		key  bool
		want bool
	}{
		{"no key installed", wire.ProtocolMessage{FromId: "02aa"}, false, false},
		{"from server", wire.ProtocolMessage{FromId: wire.ServerId}, true, false},
		{"done frame to server", wire.ProtocolMessage{FromId: "02aa", ToId: string(wire.ServerId), Content: wire.ContentDone, Round: wire.RoundEnd}, true, false},
		{"ordinary peer frame", wire.ProtocolMessage{FromId: "02aa", ToId: "0"}, true, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, shouldEncrypt(c.msg, c.key))
		})
	}
}

func TestLoopSuppressionDropsSelfFrames(t *testing.T) {
	srv, conns := echoServer(t)
	defer srv.Close()

	tr := New(wsURL(srv.URL), logger.NewDefaultLogger())
	tr.SetOwnPartyId("02aa")

	var mu sync.Mutex
	var received []wire.ProtocolMessage
	tr.SetHandler(func(m wire.ProtocolMessage) {
		mu.Lock()
		received = append(received, m)
		mu.Unlock()
	})

	require.NoError(t, tr.Connect(context.Background(), "group", "keygen", "tok"))
	serverConn := <-conns
	defer serverConn.Close()

	require.NoError(t, serverConn.WriteJSON(wire.ProtocolMessage{
		GroupId: "group", FromId: "02aa", ToId: "0", Round: 1,
	}))
	require.NoError(t, serverConn.WriteJSON(wire.ProtocolMessage{
		GroupId: "group", FromId: "03bb", ToId: "0", Round: 1,
	}))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 1
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, wire.PartyId("03bb"), received[0].FromId)

	_ = tr.Disconnect()
}

func TestEncryptDecryptRoundTripOverSocket(t *testing.T) {
	srv, conns := echoServer(t)
	defer srv.Close()

	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}

	sender := New(wsURL(srv.URL), logger.NewDefaultLogger())
	require.NoError(t, sender.SetEncryptionKey(key))
	require.NoError(t, sender.Connect(context.Background(), "group", "sign", "tok"))
	serverConn := <-conns
	defer serverConn.Close()

	var mu sync.Mutex
	var gotPlaintext string
	receiver := New(wsURL(srv.URL), logger.NewDefaultLogger())
	require.NoError(t, receiver.SetEncryptionKey(key))
	receiver.SetOwnPartyId("03bb") // receiver is not the sender
	receiver.SetHandler(func(m wire.ProtocolMessage) {
		mu.Lock()
		gotPlaintext = m.Content
		mu.Unlock()
	})

	// Drive the send path directly against the already-open server socket by
	// relaying what sender writes: simulate the relay forwarding the frame.
	require.NoError(t, sender.Send(context.Background(), wire.ProtocolMessage{
		GroupId: "group", FromId: "02aa", ToId: "0", Round: 2, Content: "secret payload",
	}))

	var onWire wire.ProtocolMessage
	require.NoError(t, serverConn.ReadJSON(&onWire))
	assert.NotEqual(t, "secret payload", onWire.Content, "content must be encrypted on the wire")

	require.NoError(t, receiver.Connect(context.Background(), "group", "sign", "tok"))
	relayConn := <-conns
	require.NoError(t, relayConn.WriteJSON(onWire))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return gotPlaintext != ""
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "secret payload", gotPlaintext)

	_ = sender.Disconnect()
	_ = receiver.Disconnect()
}
