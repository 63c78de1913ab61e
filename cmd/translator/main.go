// Command translator runs the V1↔V2 bridge: it accepts plain Stratum V1
// JSON-RPC connections from legacy miners, speaks Sv2 Mining protocol
// upstream to a single pool over a Noise-encrypted connection, and
// translates between the two using internal/bridge.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	bin "github.com/ironseam/sv2bridge/internal/binary"
	"github.com/ironseam/sv2bridge/internal/bridge"
	"github.com/ironseam/sv2bridge/internal/config"
	"github.com/ironseam/sv2bridge/internal/frame"
	"github.com/ironseam/sv2bridge/internal/keepalive"
	"github.com/ironseam/sv2bridge/internal/metrics"
	"github.com/ironseam/sv2bridge/internal/noise"
	"github.com/ironseam/sv2bridge/internal/protocol/common"
	"github.com/ironseam/sv2bridge/internal/protocol/mining"
	"github.com/ironseam/sv2bridge/internal/roleserver"
	v1 "github.com/ironseam/sv2bridge/internal/v1"
	"github.com/ironseam/sv2bridge/internal/vardiff"
)

const extranonce2Size = 4

func main() {
	configPath := flag.String("config", "", "path to role TOML config")
	flag.Parse()

	cfg, err := config.LoadRoleConfig(*configPath)
	if err != nil {
		log.Fatalf("translator: load config: %v", err)
	}
	if len(cfg.Upstreams) == 0 {
		log.Fatalf("translator: config must name at least one upstream pool")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	m := metrics.New()
	if cfg.MetricsEnabled {
		go func() {
			srv := &http.Server{Addr: cfg.MetricsListenAddress, Handler: m.Handler()}
			log.Printf("translator: metrics listening on %s", cfg.MetricsListenAddress)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("translator: metrics server: %v", err)
			}
		}()
	}

	vdCfg := vardiff.Config{
		TargetShareTime:   cfg.VarDiff.TargetShareTime(),
		RetargetInterval:  30 * time.Second,
		VariancePercent:   cfg.VarDiff.VariancePercent,
		MinDifficulty:     cfg.VarDiff.MinDifficulty,
		MaxDifficulty:     cfg.VarDiff.MaxDifficulty,
		InitialDifficulty: cfg.VarDiff.InitialDifficulty,
		ShareWindow:       20,
	}
	if err := vdCfg.Validate(); err != nil {
		log.Fatalf("translator: invalid vardiff config: %v", err)
	}
	vd := vardiff.NewManager(vdCfg)

	br := bridge.New(extranonce2Size, cfg.VarDiff.InitialDifficulty)

	t := &translator{
		bridge:  br,
		vardiff: vd,
		metrics: m,
		miners:  make(map[string]*minerConn),
	}

	upstream := cfg.Upstreams[0]
	go t.runUpstream(ctx, upstream)

	kaCfg := keepalive.DefaultConfig()
	kaCfg.Interval = cfg.KeepaliveInterval
	srv := roleserver.New("translator", nil, kaCfg, m)
	t.server = srv

	ln, err := net.Listen("tcp", fmt.Sprintf("%s:%d", cfg.ListenAddress, cfg.ListenPort))
	if err != nil {
		log.Fatalf("translator: listen: %v", err)
	}
	log.Printf("translator: V1 listener on %s", ln.Addr())

	if err := srv.Serve(ctx, ln, t.handleV1Conn); err != nil {
		log.Printf("translator: serve: %v", err)
	}
}

// minerConn is the per-downstream-connection state the translator tracks
// so an upstream-driven mining.notify can be broadcast back out without the
// V1 read loop's involvement.
type minerConn struct {
	conn      net.Conn
	writeMu   sync.Mutex
	channelID uint32

	// lastShare is read/written only from this connection's own read loop
	// goroutine (handleV1Conn/handleSubmit run serially per connection), so
	// it needs no lock of its own.
	lastShare time.Time
}

func (m *minerConn) send(payload []byte) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	_, err := m.conn.Write(payload)
	return err
}

// translator holds the process-wide state a single translator instance
// needs: the Bridge, the vardiff manager, metrics, the upstream connection
// (guarded separately since it's written from the single upstream goroutine
// and read from the V1 connection goroutines), and the set of connected V1
// miners eligible for broadcast.
type translator struct {
	bridge  *bridge.Bridge
	vardiff *vardiff.Manager
	metrics *metrics.Collectors
	server  *roleserver.Server

	upMu      sync.Mutex
	upConn    net.Conn
	upStream  *frame.Stream
	upChannel uint32

	minersMu sync.Mutex
	miners   map[string]*minerConn
}

// runUpstream owns the single connection to the upstream pool: it dials,
// performs the Noise handshake, sends SetupConnection, and then loops
// decoding Mining-protocol frames until the connection drops, at which
// point it retries with a backoff. A lost upstream connection is retried
// rather than treated as fatal.
func (t *translator) runUpstream(ctx context.Context, up config.Upstream) {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return
		}
		if err := t.dialUpstreamOnce(ctx, up); err != nil {
			log.Printf("translator: upstream connection: %v", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

func (t *translator) dialUpstreamOnce(ctx context.Context, up config.Upstream) error {
	addr := fmt.Sprintf("%s:%d", up.Address, up.Port)
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()

	start := time.Now()
	codec, err := performInitiatorHandshake(conn)
	if err != nil {
		return fmt.Errorf("noise handshake: %w", err)
	}
	t.metrics.HandshakeDuration.Observe(time.Since(start).Seconds())

	stream := frame.NewPlainStream()
	stream.CompleteHandshake(codec)

	if err := sendSetupConnection(conn, stream, up); err != nil {
		return fmt.Errorf("setup connection: %w", err)
	}
	if err := readSetupConnectionSuccess(conn, stream); err != nil {
		return fmt.Errorf("setup connection reply: %w", err)
	}
	log.Printf("translator: upstream %s ready", addr)

	t.upMu.Lock()
	t.upConn = conn
	t.upStream = stream
	t.upMu.Unlock()
	defer func() {
		t.upMu.Lock()
		t.upConn = nil
		t.upStream = nil
		t.upMu.Unlock()
	}()

	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			stream.Push(buf[:n])
			for {
				f, derr := stream.Decode()
				if derr != nil {
					if _, isNeed := derr.(*frame.Need); isNeed {
						break
					}
					return fmt.Errorf("decode: %w", derr)
				}
				t.handleUpstreamFrame(f)
			}
		}
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func (t *translator) handleUpstreamFrame(f frame.Sv2Frame) {
	t.metrics.FramesDecoded.WithLabelValues("mining").Inc()
	switch f.Header.MsgType {
	case mining.MsgTypeNewExtendedMiningJob:
		job, _, err := mining.DecodeNewExtendedMiningJob(f.Payload)
		if err != nil {
			t.metrics.FramesDecodeErrors.WithLabelValues("new_extended_mining_job").Inc()
			return
		}
		t.upMu.Lock()
		upChan := t.upChannel
		t.upMu.Unlock()
		notify, err := t.bridge.OnNewExtendedMiningJob(upChan, job)
		t.broadcastNotify(notify, err)
	case mining.MsgTypeSetNewPrevHash:
		snph, _, err := mining.DecodeSetNewPrevHash(f.Payload)
		if err != nil {
			t.metrics.FramesDecodeErrors.WithLabelValues("set_new_prev_hash").Inc()
			return
		}
		t.upMu.Lock()
		upChan := t.upChannel
		t.upMu.Unlock()
		notify, err := t.bridge.OnSetNewPrevHash(upChan, snph)
		t.broadcastNotify(notify, err)
	}
}

func (t *translator) broadcastNotify(notify *v1.Notification, err error) {
	if err != nil || notify == nil {
		return
	}
	payload, err := notify.ToJSON()
	if err != nil {
		return
	}
	t.metrics.NotifiesEmitted.Inc()
	t.minersMu.Lock()
	defer t.minersMu.Unlock()
	for _, mc := range t.miners {
		_ = mc.send(payload)
	}
}

// handleV1Conn is the roleserver.ConnHandler for downstream V1 miners: it
// reads newline-delimited JSON-RPC and dispatches subscribe/authorize/
// submit through the Bridge, writing responses back on the same
// connection and registering the connection for notify broadcast.
func (t *translator) handleV1Conn(ctx context.Context, connID string, conn net.Conn) {
	mc := &minerConn{conn: conn}
	t.minersMu.Lock()
	t.miners[connID] = mc
	t.minersMu.Unlock()
	defer func() {
		t.minersMu.Lock()
		delete(t.miners, connID)
		t.minersMu.Unlock()
	}()

	t.vardiff.SetDifficulty(connID, t.bridge.Difficulty())

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 4096), 64*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		req, err := v1.ParseRequest(line)
		if err != nil {
			continue
		}
		t.server.RecordActivity(connID)
		t.dispatchV1(connID, mc, req)
	}
}

func (t *translator) dispatchV1(connID string, mc *minerConn, req *v1.Request) {
	switch req.Method {
	case "mining.subscribe":
		resp, diffNotify := t.bridge.Subscribe(req.ID)
		t.writeResponse(mc, resp)
		if payload, err := diffNotify.ToJSON(); err == nil {
			_ = mc.send(payload)
		}
	case "mining.authorize":
		resp := v1.NewAuthorizeResponse(req.ID, true)
		t.writeResponse(mc, resp)
	case "mining.submit":
		t.handleSubmit(connID, mc, req)
	default:
		resp := v1.NewErrorResponse(req.ID, 20, "unrecognized method "+req.Method)
		t.writeResponse(mc, resp)
	}
}

func (t *translator) handleSubmit(connID string, mc *minerConn, req *v1.Request) {
	params, err := bridge.ParseSubmitParams(req.Params)
	if err != nil {
		t.writeResponse(mc, v1.NewErrorResponse(req.ID, 20, err.Error()))
		return
	}

	t.upMu.Lock()
	upConn := t.upConn
	upStream := t.upStream
	channelID := mc.channelID
	t.upMu.Unlock()
	if upConn == nil || upStream == nil {
		t.writeResponse(mc, v1.NewErrorResponse(req.ID, 20, "upstream not connected"))
		return
	}

	now := time.Now()
	var interval time.Duration
	if !mc.lastShare.IsZero() {
		interval = now.Sub(mc.lastShare)
	} else {
		interval = t.vardiff.GetTargetShareTime()
	}
	mc.lastShare = now
	t.vardiff.RecordShare(connID, interval)

	upstreamID, share, err := t.bridge.TranslateSubmit(channelID, nextSequenceNum(), params)
	if err != nil {
		t.writeResponse(mc, v1.NewErrorResponse(req.ID, 23, err.Error()))
		return
	}
	_ = upstreamID

	dst, err := bin.ToBytes(share)
	if err != nil {
		t.writeResponse(mc, v1.NewErrorResponse(req.ID, 20, err.Error()))
		return
	}
	f := frame.NewSv2Frame(0, true, mining.MsgTypeSubmitSharesStandard, dst)
	wire, err := upStream.Encode(f)
	if err != nil {
		t.writeResponse(mc, v1.NewErrorResponse(req.ID, 20, err.Error()))
		return
	}
	if _, err := upConn.Write(wire); err != nil {
		t.writeResponse(mc, v1.NewErrorResponse(req.ID, 20, err.Error()))
		return
	}
	t.writeResponse(mc, v1.NewSubmitResponse(req.ID, true))
}

func (t *translator) writeResponse(mc *minerConn, resp *v1.Response) {
	payload, err := resp.ToJSON()
	if err != nil {
		return
	}
	_ = mc.send(payload)
}

var sequenceCounter atomic.Uint32

func nextSequenceNum() uint32 {
	return sequenceCounter.Add(1)
}

// performInitiatorHandshake drives the five-step Sv2 handshake as the
// initiator against the dialed connection, reading each fixed-length step
// reply synchronously. The pool's certificate arrives inside the step-1
// payload and is validity-checked against the local clock.
func performInitiatorHandshake(conn net.Conn) (*noise.NoiseCodec, error) {
	hs, err := noise.NewInitiatorSv2Handshake()
	if err != nil {
		return nil, err
	}

	msg0, err := hs.Step0()
	if err != nil {
		return nil, err
	}
	if _, err := conn.Write(msg0); err != nil {
		return nil, err
	}

	step1Len, _ := frame.HandshakeStepLen(1)
	responderMsg := make([]byte, step1Len)
	if _, err := readFull(conn, responderMsg); err != nil {
		return nil, fmt.Errorf("read step1 reply: %w", err)
	}

	cipherList, err := hs.Step2(responderMsg, time.Now())
	if err != nil {
		return nil, err
	}
	if _, err := conn.Write(cipherList); err != nil {
		return nil, err
	}

	chosenCipher := make([]byte, len(cipherList))
	if _, err := readFull(conn, chosenCipher); err != nil {
		return nil, fmt.Errorf("read step3 reply: %w", err)
	}

	return hs.Step4(chosenCipher)
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func sendSetupConnection(conn net.Conn, stream *frame.Stream, up config.Upstream) error {
	host, err := bin.NewStr0255(up.Address)
	if err != nil {
		return err
	}
	empty, err := bin.NewStr0255("")
	if err != nil {
		return err
	}
	msg := common.SetupConnection{
		Protocol:     common.ProtocolMining,
		MinVersion:   2,
		MaxVersion:   2,
		Flags:        0,
		EndpointHost: host,
		EndpointPort: uint16(up.Port),
		Vendor:       empty,
		HardwareVersion: empty,
		Firmware:        empty,
		DeviceID:        empty,
	}
	dst, err := bin.ToBytes(msg)
	if err != nil {
		return err
	}
	f := frame.NewSv2Frame(0, false, common.MsgTypeSetupConnection, dst)
	wire, err := stream.Encode(f)
	if err != nil {
		return err
	}
	_, err = conn.Write(wire)
	return err
}

func readSetupConnectionSuccess(conn net.Conn, stream *frame.Stream) error {
	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			stream.Push(buf[:n])
			f, derr := stream.Decode()
			if derr == nil {
				if f.Header.MsgType != common.MsgTypeSetupConnectionSuccess {
					return fmt.Errorf("unexpected msg_type %d waiting for setup connection success", f.Header.MsgType)
				}
				_, _, err := common.DecodeSetupConnectionSuccess(f.Payload)
				return err
			}
			if _, isNeed := derr.(*frame.Need); !isNeed {
				return derr
			}
		}
		if err != nil {
			return err
		}
	}
}
