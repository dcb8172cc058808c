package server

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/perigee/spacelink/ccsds"
)

//
// Constants
//

const serverPort int = 8321
const serverWebsocketURL string = "ws://localhost:8321/realtime/"
const serverStatusURL string = "http://localhost:8321/status"
const serverCLCWURL string = "http://localhost:8321/clcw"

//
// TestBitArray
//

func TestBitArray(t *testing.T) {
	b := NewBitArray(100)

	for i := 0; i < 100; i++ {
		b.SetBit(i)

		if !b.GetBit(i) || b.GetBit(i+1) {
			t.Errorf("Unexpected value while filling bit array at iteration %d", i)
		}
		if i+1 != b.BitCount() {
			t.Errorf("At iteration %d the BitCount was %d", i, b.BitCount())
		}
	}

	for i := 99; i >= 0; i-- {
		if !b.GetBit(i) {
			t.Errorf("expected bit %d set, but it wasn't", i)
		}
		b.ClearBit(i)
		if (i > 0 && !b.GetBit(i-1)) || b.GetBit(i) || b.GetBit(i+1) {
			t.Errorf("expected value while emptying bit array at iteration %d.  i-1=%v i=%v i+1=%v", i, b.GetBit(i-1), b.GetBit(i), b.GetBit(i+1))
		}
		if i != b.BitCount() {
			t.Errorf("At iteration %d the BitCount was %d", i, b.BitCount())
		}
	}
}

//
// TestLoadConfig
//

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "relay.yaml")
	contents := "host: localhost\nport: 9000\nspacecraft_id: 185\nframe_length: 1115\n"
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatalf("writing config fixture: %v", err)
	}

	config, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if config.Host != "localhost" || config.Port != 9000 {
		t.Errorf("address fields: %s:%d", config.Host, config.Port)
	}
	if config.SpacecraftID != 185 {
		t.Errorf("spacecraft id:%d:expected 185", config.SpacecraftID)
	}
	if config.WebsocketPrefix != "/realtime/" {
		t.Errorf("websocket prefix not defaulted: %s", config.WebsocketPrefix)
	}

	bad := filepath.Join(dir, "bad.yaml")
	os.WriteFile(bad, []byte("spacecraft_id: 2000\n"), 0644)
	if _, err := LoadConfig(bad); err == nil {
		t.Error("out-of-range spacecraft_id accepted")
	}
}

//
// TestNoop (starts and stops a server instance)
//

func TestNoop(t *testing.T) {
	withRunningServer(t, func(server *Server) {})
}

//
// TestSingleServer
// Starts a server then runs a sequence of tests
//

func TestSingleServer(t *testing.T) {
	withRunningServer(t, func(server *Server) {
		testPing(t, server)
		testStatusEndpoint(t, server)
		testSubscribeAndReceive(t, server)
		testCLCWEndpoint(t, server)
	})
}

func testPing(t *testing.T, server *Server) {
	u, _ := url.Parse(serverWebsocketURL)
	c, ok := getWebsocketConnection(t, *u)
	if !ok {
		return
	}
	defer c.Close()
	if !localSendJSON(t, c, GenericRequest{Request: "ping", Token: "t1"}) {
		t.Errorf("Error sending ping\n")
		return
	}
	_, bytes, err := c.ReadMessage()
	if err != nil {
		t.Errorf("Error receiving ping reply: %v", err)
		return
	}
	var msg GenericResponse
	if err = json.Unmarshal(bytes, &msg); err != nil {
		t.Errorf("Error unmarshalling ping reply: %v", err)
	}
	if msg.Response != "ping" {
		t.Errorf("ping response verb:%s", msg.Response)
	}
}

func testStatusEndpoint(t *testing.T, server *Server) {
	// Feed one valid and one corrupt frame, then read back counters
	frame := buildTelemetryFrame(t, nil, ccsds.CLCW{ReportValue: 1})
	server.FrameChan <- frame

	corrupt := buildTelemetryFrame(t, nil, ccsds.CLCW{})
	corrupt[50] ^= 0xFF
	server.FrameChan <- corrupt

	waitFor(t, func() bool {
		var status StatusResponse
		if !getRESTResponse(t, serverStatusURL, &status) {
			return false
		}
		return status.FramesIngested >= 2 && status.FramesRejected >= 1
	}, "status counters to reflect both frames")
}

func testSubscribeAndReceive(t *testing.T, server *Server) {
	u, _ := url.Parse(serverWebsocketURL)
	c, ok := getWebsocketConnection(t, *u)
	if !ok {
		return
	}
	defer c.Close()

	// Subscribing to an out-of-range apid reports it back
	if !localSendJSON(t, c, SubscribeRequest{Request: "subscribe", Token: 1, APIDs: []int{100, 4096}}) {
		return
	}
	var subResponse SubscribeResponse
	if !readJSON(t, c, &subResponse) {
		return
	}
	if subResponse.Status != "error" || len(subResponse.BadAPIDs) != 1 || subResponse.BadAPIDs[0] != 4096 {
		t.Errorf("subscribe response: %+v", subResponse)
	}

	// A clean subscribe succeeds
	if !localSendJSON(t, c, SubscribeRequest{Request: "subscribe", Token: 2, APIDs: []int{100}}) {
		return
	}
	if !readJSON(t, c, &subResponse) {
		return
	}
	if subResponse.Status != "success" {
		t.Errorf("subscribe response: %+v", subResponse)
	}

	// Report reflects the subscription
	if !localSendJSON(t, c, GenericRequest{Request: "report-subscriptions", Token: 3}) {
		return
	}
	var report ReportSubscriptionsResponse
	if !readJSON(t, c, &report) {
		return
	}
	if len(report.APIDs) != 1 || report.APIDs[0] != 100 {
		t.Errorf("reported subscriptions: %v", report.APIDs)
	}

	// Give the dispatch table rebuild a moment to land
	time.Sleep(100 * time.Millisecond)

	// Send a frame carrying a packet for apid 100 and expect delivery
	payload := []byte("EPS_VOLTAGES")
	packet, err := ccsds.BuildSpacePacket(100, 42, payload)
	if err != nil {
		t.Fatalf("building packet: %v", err)
	}
	frame := buildTelemetryFrame(t, packet, ccsds.CLCW{ReportValue: 9})
	server.FrameChan <- frame

	c.SetReadDeadline(time.Now().Add(5 * time.Second))
	var telemetry TelemetryMessage
	if !readJSON(t, c, &telemetry) {
		return
	}
	if telemetry.APID != 100 || telemetry.SequenceCount != 42 {
		t.Errorf("telemetry message: %+v", telemetry)
	}
	decoded, err := hex.DecodeString(telemetry.Data)
	if err != nil || !bytes.Equal(decoded, payload) {
		t.Errorf("telemetry data:%s", telemetry.Data)
	}
}

func testCLCWEndpoint(t *testing.T, server *Server) {
	frame := buildTelemetryFrame(t, nil, ccsds.CLCW{VirtualChannelID: 0, ReportValue: 5})
	server.FrameChan <- frame

	waitFor(t, func() bool {
		var clcw CLCWResponse
		if !getRESTResponse(t, serverCLCWURL, &clcw) {
			return false
		}
		return clcw.ReportValue == 5 && clcw.Nominal
	}, "clcw endpoint to report the last word")
}

//
// Helpers
//

// buildTelemetryFrame wraps a single space packet (or an empty data field)
// in a telemetry frame the way the downlink does
func buildTelemetryFrame(t *testing.T, packet ccsds.Packet, clcw ccsds.CLCW) ccsds.Frame {
	builder := ccsds.TelemetryFrameBuilder{SpacecraftID: 185}
	frame, err := builder.Build(0, packet, clcw)
	if err != nil {
		t.Fatalf("building telemetry frame: %v", err)
	}
	return frame
}

func waitFor(t *testing.T, condition func() bool, what string) {
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Errorf("timed out waiting for %s", what)
}

func withRunningServer(t *testing.T, f func(server *Server)) error {
	server := Server{
		Config:    Config{Port: serverPort, SpacecraftID: 185},
		FrameChan: make(chan ccsds.Frame, 300),
	}

	wg := sync.WaitGroup{}
	wg.Add(1)

	// Start the server
	go func() {
		server.Run()
		wg.Done()
	}()

	// Wait for the listener to come up
	waitFor(t, func() bool {
		r, err := http.Get(serverStatusURL)
		if err != nil {
			return false
		}
		r.Body.Close()
		return true
	}, "server to start listening")

	// Run the test in this goroutine
	f(&server)

	// Now, we're done
	server.handleShutdown(nil, nil)
	wg.Wait()
	return nil
}

func getWebsocketConnection(t *testing.T, u url.URL) (*websocket.Conn, bool) {
	c, resp, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err == websocket.ErrBadHandshake {
		buf := new(bytes.Buffer)
		buf.ReadFrom(resp.Body)
		t.Errorf("handshake failed with status %d, body: %v", resp.StatusCode, buf.String())
		return nil, false
	}
	if err != nil {
		t.Errorf("websocket creation failed: %s", err.Error())
		return nil, false
	}
	return c, true
}

func localSendJSON(t *testing.T, conn *websocket.Conn, msg interface{}) bool {
	if bytes, err := json.Marshal(msg); err == nil {
		return localSend(t, conn, bytes)
	}
	t.Errorf("Error preparing json for a message: %s", msg)
	return false
}

func localSend(t *testing.T, conn *websocket.Conn, msg []byte) bool {
	if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		t.Errorf("Error writing websocket message: %v", err)
		if err1 := conn.Close(); err1 != nil {
			t.Errorf("Error closing websocket connection: %v", err1)
		}
		return false
	}
	return true
}

func readJSON(t *testing.T, conn *websocket.Conn, from interface{}) bool {
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Errorf("Error receiving websocket response: %v", err)
		return false
	}
	if err := json.Unmarshal(raw, from); err != nil {
		t.Errorf("Error unmarshalling websocket reply: %v.  The reply was %s", err, string(raw))
		return false
	}
	return true
}

func getRESTResponse(t *testing.T, to string, from interface{}) bool {
	r, err := http.Get(to)
	if err != nil {
		t.Errorf("An error occurred when sending the REST request: %v", err)
		return false
	}
	defer r.Body.Close()
	contents, err := io.ReadAll(r.Body)
	if err != nil {
		t.Errorf("An error occurred when reading the response stream: %v", err)
		return false
	}
	if err = json.Unmarshal(contents, from); err != nil {
		t.Errorf("An error occurred unmarshalling a REST response: %v.  The response was %v", err, string(contents))
		return false
	}
	return true
}
