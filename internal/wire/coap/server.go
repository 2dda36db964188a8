package coap

import (
	"context"
	"fmt"
	"net"

	"github.com/fxamacker/cbor/v2"

	"github.com/edgeless-project/edgeless/internal/dataplane"
	"github.com/edgeless-project/edgeless/internal/ids"
	"github.com/edgeless-project/edgeless/internal/model"
	"github.com/edgeless-project/edgeless/internal/obs/logger"
)

// wireEvent is the CBOR envelope for InvocationAPI.handle(Event) carried
// over CoAP/UDP: the fixed InstanceId encoding of §6 for source/target plus
// the token used for duplicate suppression (§4.1).
type wireEvent struct {
	Token    uint8  `cbor:"token"`
	Source   []byte `cbor:"source"`
	Target   []byte `cbor:"target"`
	StreamId uint64 `cbor:"stream_id"`
	Kind     int    `cbor:"kind"`
	Data     []byte `cbor:"data"`
}

// EncodeEvent serializes an Event plus its duplicate-suppression token for
// the CoAP transport.
func EncodeEvent(ev model.Event, token uint8) ([]byte, error) {
	w := wireEvent{
		Token:    token,
		Source:   ev.Source.Bytes(),
		Target:   ev.Target.Bytes(),
		StreamId: ev.StreamId,
		Kind:     int(ev.Kind),
		Data:     ev.Data,
	}
	return cbor.Marshal(w)
}

// DecodeEvent parses a CoAP-transport event, returning the event and its
// duplicate-suppression token.
func DecodeEvent(b []byte) (model.Event, uint8, error) {
	var w wireEvent
	if err := cbor.Unmarshal(b, &w); err != nil {
		return model.Event{}, 0, fmt.Errorf("coap: decode Event: %w", err)
	}
	source, err := ids.InstanceIdFromBytes(w.Source)
	if err != nil {
		return model.Event{}, 0, err
	}
	target, err := ids.InstanceIdFromBytes(w.Target)
	if err != nil {
		return model.Event{}, 0, err
	}
	ev := model.Event{
		Source:   source,
		Target:   target,
		StreamId: w.StreamId,
		Kind:     model.EventKind(w.Kind),
		Data:     w.Data,
	}
	return ev, w.Token, nil
}

// Server is the CoAP/UDP listener for constrained nodes: it decodes each
// datagram as a wireEvent, applies the §4.1 duplicate suppression rule
// keyed by the peer's IP, and offers admitted events to the node's
// dataplane chain (the InvocationAPI.handle(Event) entry point).
// httpapi.RegisterAgentRoutes has no matching HTTP/JSON invocation route.
type Server struct {
	conn  *net.UDPConn
	chain *dataplane.Chain
	dedup *dataplane.DuplicateSuppressor
	log   *logger.Logger
}

// NewServer binds a UDP socket at addr for the constrained-node transport.
func NewServer(addr string, chain *dataplane.Chain, log *logger.Logger) (*Server, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("coap: resolve %s: %w", addr, err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("coap: listen %s: %w", addr, err)
	}
	return &Server{conn: conn, chain: chain, dedup: dataplane.NewDuplicateSuppressor(), log: log}, nil
}

// Serve reads datagrams until ctx is cancelled or the socket closes.
func (s *Server) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.conn.Close()
	}()

	buf := make([]byte, 65536)
	for {
		n, peer, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return fmt.Errorf("coap: read: %w", err)
			}
		}
		msg := make([]byte, n)
		copy(msg, buf[:n])
		go s.handle(ctx, peer.IP.String(), msg)
	}
}

func (s *Server) handle(ctx context.Context, peerIP string, msg []byte) {
	ev, token, err := DecodeEvent(msg)
	if err != nil {
		s.log.Warn("coap: malformed datagram", "peer", peerIP, "error", err)
		return
	}
	if !s.dedup.Admit(peerIP, token) {
		s.log.Debug("coap: dropping duplicate", "peer", peerIP, "token", token)
		return
	}
	if result := s.chain.Offer(ctx, ev); result == model.LinkError {
		s.log.Warn("coap: dataplane rejected event", "peer", peerIP, "source", ev.Source.String(), "target", ev.Target.String())
	}
}

// Close releases the underlying socket.
func (s *Server) Close() error {
	return s.conn.Close()
}
