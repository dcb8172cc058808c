// Copyright © 2018 NAME HERE <EMAIL ADDRESS>
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package server

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/perigee/spacelink/ccsds"
)

//
// Server
//

// Server ingests telemetry transfer frames, verifies and unpacks them, and
// relays the contained space packets to websocket clients subscribed by apid
type Server struct {
	// Configuration
	Config Config

	// Incoming telemetry frames
	FrameChan chan ccsds.Frame

	// Internal state
	clients             *map[*websocket.Conn]*Client // immutable, updated by handleSubscriptions()
	packetDispatchTable [ccsds.MaxAPID + 1]*apidDispatch

	link linkStatus

	// Channels
	addClientChan                 chan *Client
	removeClientChan              chan *Client
	updateClientSubscriptionsChan chan *updateClientSubscriptionsMsg
	rebuildApidDispatch           chan map[int]bool

	StopRequest chan os.Signal
}

// linkStatus is the downlink bookkeeping exposed at /status and /clcw.
// The frame pump writes it, REST handlers read it.
type linkStatus struct {
	mu sync.Mutex

	FramesIngested int
	FramesRejected int
	Packets        int
	LastFrameCount int
	HaveCLCW       bool
	LastCLCW       ccsds.CLCW
}

// Run runs the relay until StopRequest fires
func (server *Server) Run() {
	server.Config.applyDefaults()

	// Initialize internal state
	server.clients = &map[*websocket.Conn]*Client{}
	if server.FrameChan == nil {
		server.FrameChan = make(chan ccsds.Frame, 300)
	}
	server.addClientChan = make(chan *Client, 20)
	server.removeClientChan = make(chan *Client, 20)
	server.updateClientSubscriptionsChan = make(chan *updateClientSubscriptionsMsg, 20)
	server.rebuildApidDispatch = make(chan map[int]bool, 20)

	router := mux.NewRouter()

	// REST (order matters)
	router.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		server.handleStatus(w, r)
	}).Methods("GET")

	router.HandleFunc("/clcw", func(w http.ResponseWriter, r *http.Request) {
		server.handleCLCW(w, r)
	}).Methods("GET")

	router.HandleFunc("/report", func(w http.ResponseWriter, r *http.Request) {
		server.handleReport(w, r)
	}).Methods("GET")

	router.HandleFunc("/shutdown", func(w http.ResponseWriter, r *http.Request) {
		server.handleShutdown(w, r)
	}).Methods("GET")

	// Prometheus
	router.Handle("/metrics", promhttp.Handler())

	// WebSocket
	router.HandleFunc(server.Config.WebsocketPrefix, func(w http.ResponseWriter, req *http.Request) {
		server.serveWS(w, req)
	})

	// add/remove clients, update subscriptions
	go server.handleSubscriptions()

	// verify, unpack and dispatch frames
	go server.framePump()

	addr := fmt.Sprintf("%s:%d", server.Config.Host, server.Config.Port)
	h := &http.Server{Addr: addr, Handler: router}

	// Receive interrupts and shut down gracefully
	server.StopRequest = make(chan os.Signal, 2)
	signal.Notify(server.StopRequest, os.Interrupt)

	// Run the server
	go func() {
		log.Printf("Listening on %s\n", addr)
		err := h.ListenAndServe()
		if err != http.ErrServerClosed {
			log.Fatal(err)
		}
	}()

	<-server.StopRequest
	log.Printf("Shutting down the server ...\n")
	h.Shutdown(context.Background())
	log.Printf("Server gracefully stopped.\n")
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 16384,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func (server *Server) serveWS(w http.ResponseWriter, req *http.Request) {
	conn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		log.Println(err)
		return
	}
	client := newClient(server, conn)
	server.addClientChan <- client
}

//
// Frame Pump
//

// framePump drains the ingest channel.  Each frame is FECF-checked, its CLCW
// (when an ocf is present) feeds the link status, and the space packets in
// its data field are dispatched by apid.
func (server *Server) framePump() {
	for frame := range server.FrameChan {
		framesIngested.Inc()
		if !server.acceptFrame(frame) {
			framesRejected.Inc()
			server.link.mu.Lock()
			server.link.FramesIngested++
			server.link.FramesRejected++
			server.link.mu.Unlock()
			continue
		}

		hdr, err := ccsds.ParseFrameHeader(frame)
		if err != nil {
			continue
		}

		server.link.mu.Lock()
		server.link.FramesIngested++
		server.link.LastFrameCount = hdr.FrameCount()
		if ocf := frame.OCF(); ocf != nil {
			if clcw, err := ccsds.ParseCLCW(ocf); err == nil {
				server.link.HaveCLCW = true
				server.link.LastCLCW = clcw
				clcwsExtracted.Inc()
			}
		}
		server.link.mu.Unlock()

		server.dispatchPackets(frame.DataField())
	}
}

// acceptFrame applies the cheap shape, crc and spacecraft-id filters
func (server *Server) acceptFrame(frame ccsds.Frame) bool {
	if !ccsds.IsValidFrame(frame) || !frame.VerifyFECF() {
		return false
	}
	if server.Config.SpacecraftID != 0 && frame.SpacecraftID() != server.Config.SpacecraftID {
		return false
	}
	return true
}

// dispatchPackets walks the concatenated space packets in a frame data field
// and sends each to the clients subscribed to its apid.  An all-zero header
// is the zero padding after the last packet and ends the walk.
func (server *Server) dispatchPackets(zone []byte) {
	for len(zone) >= ccsds.PacketHeaderLength {
		if isPaddingHeader(zone) || !ccsds.IsValidPacket(zone) {
			return
		}
		packet := ccsds.Packet(zone)
		total := packet.TotalLength()
		server.dispatchOne(packet[:total])
		zone = zone[total:]
	}
}

func isPaddingHeader(zone []byte) bool {
	for _, b := range zone[:ccsds.PacketHeaderLength] {
		if b != 0 {
			return false
		}
	}
	return true
}

func (server *Server) dispatchOne(packet ccsds.Packet) {
	dispatch := server.packetDispatchTable[packet.APID()]

	server.link.mu.Lock()
	server.link.Packets++
	server.link.mu.Unlock()
	packetsDispatched.Inc()

	if dispatch == nil {
		return
	}
	sendJSON(TelemetryMessage{
		Response:      "telemetry",
		APID:          packet.APID(),
		SequenceCount: packet.SequenceCount(),
		Length:        packet.DataLength(),
		Data:          hex.EncodeToString(packet.Data()),
	}, dispatch.clients...)
}

//
// Handle Subscriptions
//

// All management of subscriptions is centralized here.  The datastructures
// are contained on the server and client objects and don't allow concurrent
// access.
//
// The implementation goals are:
// 1. The code path that unpacks and distributes telemetry can't be
//    blocked while dispatch tables are updated
// 2. Reasonably efficient (don't rebuild everything every time any
//    subscription changes)
// 3. Simplicity reduces bugs

func (server *Server) handleSubscriptions() {
	for {
		select {

		case client := <-server.addClientChan:
			// add a client
			oldClientMap := *server.clients
			newClientMap := make(map[*websocket.Conn]*Client)
			for oldconn, oldclient := range oldClientMap {
				newClientMap[oldconn] = oldclient
			}
			newClientMap[client.conn] = client
			server.clients = &newClientMap
			clientsConnected.Set(float64(len(newClientMap)))
			// No need to touch the dispatch table

			go client.writePump()
			go client.readPump()

		case client := <-server.removeClientChan:
			oldConn := client.conn
			client.conn = nil
			// attempt to close the connection
			if oldConn != nil {
				err := oldConn.Close()
				if err != nil {
					log.Printf("removing client: error closing connection: %v", err.Error())
				}
			}

			// remove a client; rebuild dispatch table
			oldClientMap := *server.clients
			newClientMap := make(map[*websocket.Conn]*Client)
			for oldconn, oldclient := range oldClientMap {
				if oldclient != client {
					newClientMap[oldconn] = oldclient
				}
			}
			server.clients = &newClientMap
			clientsConnected.Set(float64(len(newClientMap)))

			// Update all apid subscriptions this client had
			apids := make(map[int]bool)
			for apid := 0; apid <= ccsds.MaxAPID; apid++ {
				if client.subscriptions.GetBit(apid) {
					apids[apid] = true
				}
			}
			server.rebuildApidDispatch <- apids

		case msg := <-server.updateClientSubscriptionsChan:
			// Process a subscription request from a client
			apids, badApids := validateApids(msg.apids)

			if len(apids) > 0 {
				newSubscriptions := msg.client.subscriptions.Copy()
				touched := make(map[int]bool)
				for _, apid := range apids {
					touched[apid] = true
					if msg.isAdd {
						newSubscriptions.SetBit(apid)
					} else {
						newSubscriptions.ClearBit(apid)
					}
				}
				msg.client.subscriptions = newSubscriptions
				server.rebuildApidDispatch <- touched
			}

			// Generate a response to the client
			verb := "unsubscribe"
			if msg.isAdd {
				verb = "subscribe"
			}
			if len(badApids) > 0 {
				sendJSON(SubscribeResponse{Response: verb, Token: msg.token, Status: "error", BadAPIDs: badApids}, msg.client)
			} else {
				sendJSON(SubscribeResponse{Response: verb, Token: msg.token, Status: "success"}, msg.client)
			}

		case apids := <-server.rebuildApidDispatch:
			for apid := range apids {
				var subscribed []*Client
				for _, client := range *server.clients {
					if client.subscriptions.GetBit(apid) {
						subscribed = append(subscribed, client)
					}
				}
				if len(subscribed) == 0 {
					// No subscriptions for this apid
					server.packetDispatchTable[apid] = nil
				} else {
					// Atomic update
					server.packetDispatchTable[apid] = &apidDispatch{clients: subscribed}
				}
			}
		}
	}
}

func validateApids(apids []int) ([]int, []int) {
	good := make([]int, 0, len(apids))
	bad := make([]int, 0, 4)
	for _, apid := range apids {
		if apid < 0 || apid > ccsds.MaxAPID {
			bad = append(bad, apid)
		} else {
			good = append(good, apid)
		}
	}
	return good, bad
}

// One of these will be stored in each element of the dispatch table.  Entries
// are never modified, only rebuilt, so replacing one is an atomic operation.
type apidDispatch struct {
	clients []*Client
}

//
// HandleStatus
//

func (server *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	server.link.mu.Lock()
	snapshot := StatusResponse{
		FramesIngested: server.link.FramesIngested,
		FramesRejected: server.link.FramesRejected,
		Packets:        server.link.Packets,
		LastFrameCount: server.link.LastFrameCount,
	}
	server.link.mu.Unlock()
	snapshot.Clients = len(*server.clients)

	prepareHeader(w, r)
	json.NewEncoder(w).Encode(snapshot)
}

//
// HandleCLCW
//

func (server *Server) handleCLCW(w http.ResponseWriter, r *http.Request) {
	server.link.mu.Lock()
	have := server.link.HaveCLCW
	clcw := server.link.LastCLCW
	server.link.mu.Unlock()

	prepareHeader(w, r)
	if !have {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(RestErrorResponse{Error: "NoCLCW", Message: "No CLCW received yet"})
		return
	}
	json.NewEncoder(w).Encode(CLCWResponse{
		VirtualChannelID: clcw.VirtualChannelID,
		ReportValue:      clcw.ReportValue,
		Nominal:          clcw.IsNominal(),
		Lockout:          clcw.Lockout,
		Wait:             clcw.Wait,
		Retransmit:       clcw.Retransmit,
		NoRFAvailable:    clcw.NoRFAvailable,
		NoBitLock:        clcw.NoBitLock,
	})
}

//
// HandleReport
//

func (server *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	clients := *server.clients
	connections := make([]ReportWebsocketConnection, 0, len(clients))
	for conn, client := range clients {
		apids := client.subscribedApids()
		connections = append(connections, ReportWebsocketConnection{Address: conn.RemoteAddr().String(), SubscriptionCount: len(apids), APIDs: apids})
	}

	response := ReportTemplate{Version: "0.1", Connections: connections, ConnectionCount: len(connections)}
	prepareHeader(w, r)
	json.NewEncoder(w).Encode(response)
}

//
// HandleShutdown
//

func (server *Server) handleShutdown(w http.ResponseWriter, r *http.Request) {
	server.StopRequest <- &FakeInterrupt{}
}

// FakeInterrupt is for mocking the server shutdown message
type FakeInterrupt struct{}

// String is needed to match an interrupt's interface
func (f *FakeInterrupt) String() string { return "fake interrupt" }

// Signal is needed to match an interrupt's interface
func (f FakeInterrupt) Signal() {}

func prepareHeader(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Allow-Origin", "*")
	w.Header().Add("Content-Type", "application/json")
}

////////////////////////////////////////////////////////////////////////
// Client
////////////////////////////////////////////////////////////////////////

// Client is the middleman between the websocket connection and the server
type Client struct {
	server        *Server
	conn          *websocket.Conn
	msgChan       chan []byte // Client receives msgs from channel and sends to the websocket connection
	subscriptions *BitArray   // apids this client receives; immutable, replaced on update
}

func newClient(server *Server, conn *websocket.Conn) *Client {
	return &Client{
		server:        server,
		conn:          conn,
		msgChan:       make(chan []byte, 32),
		subscriptions: NewBitArray(ccsds.MaxAPID + 1),
	}
}

func (client *Client) subscribedApids() []int {
	apids := make([]int, 0, 16)
	for apid := 0; apid <= ccsds.MaxAPID; apid++ {
		if client.subscriptions.GetBit(apid) {
			apids = append(apids, apid)
		}
	}
	return apids
}

//
// Read Pump
//

func (client *Client) readPump() {
	for {
		messageType, p, err := client.conn.ReadMessage()
		if messageType == websocket.CloseMessage {
			requestRemoveClient(client)
			log.Printf("websocket: %s closed", client.conn.RemoteAddr().String())
			return
		} else if err != nil {
			oldConn := client.conn
			requestRemoveClient(client)
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived, websocket.CloseAbnormalClosure) {
				log.Printf("websocket closed unexpectedly: %v", err.Error())
			} else if oldConn != nil {
				log.Printf("websocket: %s closed", oldConn.RemoteAddr().String())
			}
			return
		} else if messageType != websocket.TextMessage {
			oldConn := client.conn
			requestRemoveClient(client)
			log.Printf("websocket(%s) received a non-text message of type %d", oldConn.RemoteAddr().String(), messageType)
			return
		}

		var msg interface{}
		err = json.Unmarshal(p, &msg)
		if err != nil {
			log.Printf("websocket(%s) received a non-json message: %s", client.conn.RemoteAddr().String(), string(p))
			continue
		}

		msgObject, ok := msg.(map[string]interface{})
		if !ok {
			log.Printf("websocket(%s) received a json message that was not an object: %s", client.conn.RemoteAddr().String(), string(p))
			continue
		}

		msgVerb, ok := msgObject["request"].(string)
		if !ok {
			log.Printf("websocket(%s) received a json message object with no request verb: %s", client.conn.RemoteAddr().String(), string(p))
			continue
		}
		msgToken := msgObject["token"]

		var err1 error
		switch msgVerb {
		case "ping":
			var msg GenericRequest
			err1 = json.Unmarshal(p, &msg)
			if err1 == nil {
				client.handlePing(&msg)
			}
		case "subscribe":
			var msg SubscribeRequest
			err1 = json.Unmarshal(p, &msg)
			if err1 == nil {
				client.server.updateClientSubscriptionsChan <- &updateClientSubscriptionsMsg{isAdd: true, apids: msg.APIDs, client: client, token: msg.Token}
			}
		case "unsubscribe":
			var msg UnsubscribeRequest
			err1 = json.Unmarshal(p, &msg)
			if err1 == nil {
				client.server.updateClientSubscriptionsChan <- &updateClientSubscriptionsMsg{isAdd: false, apids: msg.APIDs, client: client, token: msg.Token}
			}
		case "report-subscriptions":
			sendJSON(ReportSubscriptionsResponse{Response: "report-subscriptions", APIDs: client.subscribedApids()}, client)
		default:
			err1 = fmt.Errorf("request(%s) has no handler", msgVerb)
		}

		if err1 != nil {
			log.Printf("websocket(%s) error processing %s request: %v", client.conn.RemoteAddr().String(), msgVerb, err1)
			sendJSON(ErrorResponse{Response: msgVerb, Token: msgToken, Error: err1.Error()}, client)
		}
	}
}

//
// Write Pump
//

func (client *Client) writePump() {
	for msg := range client.msgChan {
		c := client.conn
		if c == nil {
			continue
		}
		err := c.WriteMessage(websocket.TextMessage, msg)
		if err == websocket.ErrCloseSent {
			requestRemoveClient(client)
			return
		}
		if err != nil {
			log.Printf("websocket error on write: %v", err)
			requestRemoveClient(client)
			return
		}
	}
}

func requestRemoveClient(client *Client) {
	client.conn = nil
	client.server.removeClientChan <- client
}

//
// Message Handlers
//

func (client *Client) handlePing(r *GenericRequest) {
	sendJSON(GenericResponse{Response: "ping", Token: r.Token}, client)
}

//
// Message Helper Functions
//

// send a message to one or more clients
func send(msg []byte, clients ...*Client) {
	for i := 0; i < len(clients); i++ {
		clients[i].msgChan <- msg
	}
}

// sendJSON to one or more clients
func sendJSON(msg interface{}, clients ...*Client) {
	if len(clients) < 1 {
		return
	}
	if bytes, err := json.Marshal(msg); err == nil {
		send(bytes, clients...)
	} else {
		log.Printf("Error preparing json for a message: %s", msg)
	}
}

//
// Public Websocket Message Templates
//

// GenericRequest is a message template.  Also used as a minimal request
type GenericRequest struct {
	Request string      `json:"request"`
	Token   interface{} `json:"token"`
}

// GenericResponse is a message template
type GenericResponse struct {
	Response string      `json:"response"`
	Token    interface{} `json:"token"`
}

// SubscribeRequest is a message template
type SubscribeRequest struct {
	Request string      `json:"request"`
	Token   interface{} `json:"token"`
	APIDs   []int       `json:"apids"`
}

// SubscribeResponse is a message template
type SubscribeResponse struct {
	Response string      `json:"response"`
	Token    interface{} `json:"token"`
	Status   string      `json:"status"`
	BadAPIDs []int       `json:"bad_apids,omitempty"`
}

// UnsubscribeRequest is a message template
type UnsubscribeRequest struct {
	Request string      `json:"request"`
	Token   interface{} `json:"token"`
	APIDs   []int       `json:"apids"`
}

// ErrorResponse is a generic message template
type ErrorResponse struct {
	Response string      `json:"response"`
	Token    interface{} `json:"token"`
	Error    string      `json:"error"`
}

// ReportSubscriptionsResponse is a message template
type ReportSubscriptionsResponse struct {
	Response string `json:"response"`
	APIDs    []int  `json:"apids"`
}

// TelemetryMessage delivers one space packet to a subscriber
type TelemetryMessage struct {
	Response      string `json:"response"`
	APID          int    `json:"apid"`
	SequenceCount int    `json:"sequence_count"`
	Length        int    `json:"length"`
	Data          string `json:"data"`
}

//
// Public REST Message Templates
//

// RestErrorResponse is a message template
type RestErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// StatusResponse is a message template
type StatusResponse struct {
	FramesIngested int `json:"frames_ingested"`
	FramesRejected int `json:"frames_rejected"`
	Packets        int `json:"packets_dispatched"`
	LastFrameCount int `json:"last_frame_count"`
	Clients        int `json:"clients"`
}

// CLCWResponse is a message template
type CLCWResponse struct {
	VirtualChannelID int  `json:"virtual_channel_id"`
	ReportValue      int  `json:"report_value"`
	Nominal          bool `json:"nominal"`
	Lockout          bool `json:"lockout"`
	Wait             bool `json:"wait"`
	Retransmit       bool `json:"retransmit"`
	NoRFAvailable    bool `json:"no_rf_available"`
	NoBitLock        bool `json:"no_bit_lock"`
}

// ReportTemplate is part of a message template
type ReportTemplate struct {
	Version         string                      `json:"version"`
	Connections     []ReportWebsocketConnection `json:"connections"`
	ConnectionCount int                         `json:"connection_count"`
}

// ReportWebsocketConnection is part of a message template
type ReportWebsocketConnection struct {
	Address           string `json:"address"`
	SubscriptionCount int    `json:"subscription_count"`
	APIDs             []int  `json:"apids"`
}

//
// Internal Message Templates
//

type updateClientSubscriptionsMsg struct {
	client *Client
	isAdd  bool
	token  interface{}
	apids  []int
}
