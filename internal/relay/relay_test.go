package relay

import (
	"context"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestRelay_PublishFanOut(t *testing.T) {
	r := New(zerolog.Nop())
	addr, err := r.Start()
	require.NoError(t, err)
	defer r.Stop(context.Background())

	conn, _, err := websocket.DefaultDialer.Dial(addr, nil)
	require.NoError(t, err)
	defer conn.Close()

	// give the server goroutine a moment to register the client
	time.Sleep(50 * time.Millisecond)
	r.Publish([]byte(`{"hello":"world"}`))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, `{"hello":"world"}`, string(data))
}

func TestRelay_StopRejectsNewConnections(t *testing.T) {
	r := New(zerolog.Nop())
	addr, err := r.Start()
	require.NoError(t, err)

	require.NoError(t, r.Stop(context.Background()))

	_, _, err = websocket.DefaultDialer.Dial(addr, nil)
	require.Error(t, err, "a new connection after Stop must be refused")
}
