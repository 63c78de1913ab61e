// Package roleserver implements the generic per-role TCP front end shared
// by every Sv2 role binary (pool, translator, job-declarator-server,
// template-receiver): it accepts connections, owns the two process-wide
// mutex-guarded values (RoutingLogic and the job_id→upstream_id map),
// drives per-connection Keepalive, and reaps dead
// connections on a ticker. Role-specific frame decoding and message
// dispatch is supplied by the caller; this package only owns connection
// lifecycle and the shared routing state.
package roleserver

import (
	"context"
	"log"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ironseam/sv2bridge/internal/keepalive"
	"github.com/ironseam/sv2bridge/internal/metrics"
)

// RoutingLogic is the shared, mutex-guarded registry of upstream nodes and
// the downstream-to-upstream routing table every accepted connection
// consults. A single mutex guards it rather than an owning task with a
// request/reply channel: critical sections here are a map lookup or
// insert, never a blocking operation.
type RoutingLogic struct {
	mu sync.Mutex

	nextDownstreamID     uint32
	upstreams            []UpstreamInfo
	downstreamToUpstream map[uint32]uint32
}

// UpstreamInfo is the minimal identity RoutingLogic needs for an upstream
// node: an opaque id plus the address it was configured with. The node
// itself is never referenced directly: callers look the id back up
// through RoutingLogic, so no reference cycles form between bridge,
// downstream, and upstream.
type UpstreamInfo struct {
	ID      uint32
	Address string
}

// NewRoutingLogic builds a RoutingLogic seeded with the given upstreams.
func NewRoutingLogic(upstreams []UpstreamInfo) *RoutingLogic {
	return &RoutingLogic{
		upstreams:            upstreams,
		downstreamToUpstream: make(map[uint32]uint32),
	}
}

// NextDownstreamID mints a fresh downstream connection id.
func (r *RoutingLogic) NextDownstreamID() uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextDownstreamID++
	return r.nextDownstreamID
}

// RouteDownstream assigns downstreamID to upstreamID, e.g. once a
// translator has picked which upstream node a newly-connected V1 miner's
// shares should be submitted to.
func (r *RoutingLogic) RouteDownstream(downstreamID, upstreamID uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.downstreamToUpstream[downstreamID] = upstreamID
}

// UpstreamFor looks up the upstream a downstream connection currently
// routes to.
func (r *RoutingLogic) UpstreamFor(downstreamID uint32) (uint32, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.downstreamToUpstream[downstreamID]
	return id, ok
}

// RemoveDownstream drops a downstream's routing entry, e.g. on disconnect.
func (r *RoutingLogic) RemoveDownstream(downstreamID uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.downstreamToUpstream, downstreamID)
}

// Upstreams returns a snapshot copy of the configured upstream list.
func (r *RoutingLogic) Upstreams() []UpstreamInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]UpstreamInfo, len(r.upstreams))
	copy(out, r.upstreams)
	return out
}

// JobRoutes is the second shared value: a job_id→upstream_id
// map, guarded by its own mutex since it is written at a different (much
// lower) rate than RoutingLogic and serves a different read path.
type JobRoutes struct {
	mu     sync.Mutex
	routes map[uint32]uint32
}

// NewJobRoutes builds an empty JobRoutes table.
func NewJobRoutes() *JobRoutes {
	return &JobRoutes{routes: make(map[uint32]uint32)}
}

// Set records (or replaces) the upstream that owns jobID. A replacing job
// removes the stale entry before the new one is inserted — here that is
// simply an overwrite of the
// same map key, which has the same observable effect.
func (j *JobRoutes) Set(jobID, upstreamID uint32) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.routes[jobID] = upstreamID
}

// Lookup returns the upstream owning jobID, if any.
func (j *JobRoutes) Lookup(jobID uint32) (uint32, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	id, ok := j.routes[jobID]
	return id, ok
}

// Delete removes jobID's route, e.g. once a job is retired.
func (j *JobRoutes) Delete(jobID uint32) {
	j.mu.Lock()
	defer j.mu.Unlock()
	delete(j.routes, jobID)
}

// ConnHandler is supplied by the role and driven once per accepted
// connection. It owns that connection's FrameStream, Noise handshake (if
// any), and message dispatch; it returns when the connection should close.
type ConnHandler func(ctx context.Context, connID string, conn net.Conn)

// Server is the generic accept loop + shared-state owner every role binds
// its own ConnHandler into.
type Server struct {
	Routing *RoutingLogic
	Jobs    *JobRoutes
	Metrics *metrics.Collectors

	keepalive *keepalive.Manager
	role      string

	mu       sync.Mutex
	active   map[string]net.Conn
	listener net.Listener
}

// New builds a Server for the given role name (used only in log lines and
// the "role" metrics label), wired to a fresh RoutingLogic/JobRoutes pair
// and a Keepalive manager that closes connections which go quiet.
func New(role string, upstreams []UpstreamInfo, keepaliveConfig keepalive.Config, m *metrics.Collectors) *Server {
	s := &Server{
		Routing: NewRoutingLogic(upstreams),
		Jobs:    NewJobRoutes(),
		Metrics: m,
		role:    role,
		active:  make(map[string]net.Conn),
	}
	s.keepalive = keepalive.NewManager(keepaliveConfig, s.onTimeout)
	return s
}

// Serve accepts connections on ln until ctx is cancelled, dispatching each
// to handler in its own goroutine. Serve blocks until the listener closes.
func (s *Server) Serve(ctx context.Context, ln net.Listener, handler ConnHandler) error {
	s.listener = ln
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				log.Printf("roleserver[%s]: accept error: %v", s.role, err)
				return err
			}
		}
		connID := uuid.New().String()
		s.track(connID, conn)
		if s.Metrics != nil {
			s.Metrics.ConnectionsActive.WithLabelValues(s.role).Inc()
		}
		s.keepalive.Start(connID)

		go func() {
			defer s.untrack(connID)
			handler(ctx, connID, conn)
		}()
	}
}

// RecordActivity resets a connection's keepalive timer; role handlers call
// this on every frame they successfully decode.
func (s *Server) RecordActivity(connID string) { s.keepalive.RecordActivity(connID) }

func (s *Server) track(connID string, conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active[connID] = conn
}

func (s *Server) untrack(connID string) {
	s.mu.Lock()
	conn, ok := s.active[connID]
	delete(s.active, connID)
	s.mu.Unlock()
	if ok {
		conn.Close()
	}
	s.keepalive.Stop(connID)
	if s.Metrics != nil {
		s.Metrics.ConnectionsActive.WithLabelValues(s.role).Dec()
	}
}

// onTimeout is the keepalive.TimeoutCallback: it force-closes a connection
// that has gone quiet past the configured MaxMissed threshold; closing the
// TCP stream drops the per-connection tasks.
func (s *Server) onTimeout(connID string) {
	s.mu.Lock()
	conn, ok := s.active[connID]
	s.mu.Unlock()
	if ok {
		log.Printf("roleserver[%s]: closing connection %s on keepalive timeout", s.role, connID)
		conn.Close()
	}
}

// ActiveCount reports the number of connections currently tracked.
func (s *Server) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

// ReapStale runs reap periodically until ctx is cancelled. Roles that
// assign their own numeric downstream ids (distinct from the connID this
// Server tracks) pass a reap closure that drops RoutingLogic/JobRoutes
// entries for ids with no corresponding live connection; a dead
// connection's entries survive only until the next scan.
func (s *Server) ReapStale(ctx context.Context, interval time.Duration, reap func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			reap()
		}
	}
}
