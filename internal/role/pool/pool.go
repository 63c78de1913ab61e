// Package pool implements the server side of the Sv2 Mining protocol: it
// negotiates SetupConnection, opens standard channels with distinct
// extranonce prefixes, distributes the current job, and accepts or rejects
// share submissions against it. Payout accounting and block assembly live
// outside this package; it owns only the per-connection protocol state.
package pool

import (
	"encoding/binary"
	"errors"
	"sync"

	bin "github.com/ironseam/sv2bridge/internal/binary"
	"github.com/ironseam/sv2bridge/internal/protocol/common"
	"github.com/ironseam/sv2bridge/internal/protocol/mining"
)

// ErrUnknownChannel is returned when a message names a channel id this
// pool never opened (or already closed).
var ErrUnknownChannel = errors.New("pool: unknown channel id")

// Config holds the pool role's tunables.
type Config struct {
	MinVersion uint16
	MaxVersion uint16
	// ExtranoncePrefixLen is the byte width of the per-channel extranonce
	// prefix handed out at channel open.
	ExtranoncePrefixLen int
	// ShareBatchSize is how many accepted shares accumulate before a
	// SubmitSharesSuccess acknowledgement is emitted.
	ShareBatchSize uint32
	// Target is the share target every standard channel starts with.
	Target bin.U256
}

// DefaultConfig returns the bounds a pool boots with absent an override.
func DefaultConfig() Config {
	var target bin.U256
	for i := 4; i < 32; i++ {
		target[i] = 0xff
	}
	return Config{
		MinVersion:          2,
		MaxVersion:          2,
		ExtranoncePrefixLen: 4,
		ShareBatchSize:      10,
		Target:              target,
	}
}

type channelState struct {
	userIdentity     string
	extranoncePrefix []byte
	nominalHashrate  float32
	lastSequenceNum  uint32
	acceptedSinceAck uint32
}

// Pool is the per-upstream-process Mining protocol state: open channels,
// the job currently being worked, and the counters that keep channel ids
// and extranonce prefixes distinct.
type Pool struct {
	config Config

	mu                sync.Mutex
	channels          map[uint32]*channelState
	nextChannelID     uint32
	extranonceCounter uint32

	currentJob      *mining.NewExtendedMiningJob
	currentPrevHash *mining.SetNewPrevHash
}

// New builds a Pool from config.
func New(config Config) *Pool {
	return &Pool{
		config:   config,
		channels: make(map[uint32]*channelState),
	}
}

// HandleSetupConnection negotiates the protocol version for a new
// connection. A non-Mining protocol or a version range with no overlap is
// rejected with a SetupConnectionError; the caller decides whether to keep
// the connection open afterwards.
func (p *Pool) HandleSetupConnection(msg common.SetupConnection) (common.SetupConnectionSuccess, *common.SetupConnectionError) {
	if msg.Protocol != common.ProtocolMining {
		return common.SetupConnectionSuccess{}, setupError("unsupported-protocol")
	}

	used := msg.MaxVersion
	if p.config.MaxVersion < used {
		used = p.config.MaxVersion
	}
	if used < msg.MinVersion || used < p.config.MinVersion {
		return common.SetupConnectionSuccess{}, setupError("protocol-version-mismatch")
	}

	return common.SetupConnectionSuccess{UsedVersion: used, Flags: 0}, nil
}

func setupError(code string) *common.SetupConnectionError {
	c, _ := bin.NewStr0255(code)
	return &common.SetupConnectionError{ErrorCode: c}
}

// OpenStandardChannel mints a fresh channel with its own extranonce prefix
// so no two channels search overlapping nonce spaces.
func (p *Pool) OpenStandardChannel(msg mining.OpenStandardMiningChannel) (mining.OpenStandardMiningChannelSuccess, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.nextChannelID++
	id := p.nextChannelID

	p.extranonceCounter++
	prefix := make([]byte, p.config.ExtranoncePrefixLen)
	binary.BigEndian.PutUint32(prefix[len(prefix)-4:], p.extranonceCounter)

	p.channels[id] = &channelState{
		userIdentity:     msg.UserIdentity.String(),
		extranoncePrefix: prefix,
		nominalHashrate:  msg.NominalHashrate,
	}

	prefixB032, err := bin.NewB032(prefix)
	if err != nil {
		return mining.OpenStandardMiningChannelSuccess{}, err
	}
	return mining.OpenStandardMiningChannelSuccess{
		RequestID:        msg.RequestID,
		ChannelID:        id,
		Target:           p.config.Target,
		ExtranoncePrefix: prefixB032,
		GroupChannelID:   0,
	}, nil
}

// CloseChannel drops a channel's state.
func (p *Pool) CloseChannel(msg mining.CloseChannel) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.channels[msg.ChannelID]; !ok {
		return ErrUnknownChannel
	}
	delete(p.channels, msg.ChannelID)
	return nil
}

// DistributeJob installs the job every open channel works next. The caller
// broadcasts the returned per-channel copies (each stamped with its channel
// id) to the corresponding downstream connections.
func (p *Pool) DistributeJob(job mining.NewExtendedMiningJob) []mining.NewExtendedMiningJob {
	p.mu.Lock()
	defer p.mu.Unlock()

	jobCopy := job
	p.currentJob = &jobCopy

	out := make([]mining.NewExtendedMiningJob, 0, len(p.channels))
	for id := range p.channels {
		perChannel := job
		perChannel.ChannelID = id
		out = append(out, perChannel)
	}
	return out
}

// DistributePrevHash installs the prev_hash activating the current job and
// returns the per-channel copies to broadcast.
func (p *Pool) DistributePrevHash(msg mining.SetNewPrevHash) []mining.SetNewPrevHash {
	p.mu.Lock()
	defer p.mu.Unlock()

	msgCopy := msg
	p.currentPrevHash = &msgCopy

	out := make([]mining.SetNewPrevHash, 0, len(p.channels))
	for id := range p.channels {
		perChannel := msg
		perChannel.ChannelID = id
		out = append(out, perChannel)
	}
	return out
}

// CurrentJob returns channel-stamped copies of the job and prev_hash a
// late-joining channel should start on, or nils for whichever half hasn't
// been distributed yet.
func (p *Pool) CurrentJob(channelID uint32) (*mining.NewExtendedMiningJob, *mining.SetNewPrevHash) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var job *mining.NewExtendedMiningJob
	if p.currentJob != nil {
		j := *p.currentJob
		j.ChannelID = channelID
		job = &j
	}
	var prevHash *mining.SetNewPrevHash
	if p.currentPrevHash != nil {
		h := *p.currentPrevHash
		h.ChannelID = channelID
		prevHash = &h
	}
	return job, prevHash
}

// HandleSubmit accepts or rejects a share. Accepted shares are batch-
// acknowledged: every ShareBatchSize accepted shares produce one
// SubmitSharesSuccess; in between, both returns are nil. A rejection is
// always immediate.
func (p *Pool) HandleSubmit(msg mining.SubmitSharesStandard) (*mining.SubmitSharesSuccess, *mining.SubmitSharesError) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ch, ok := p.channels[msg.ChannelID]
	if !ok {
		return nil, submitError(msg, "invalid-channel-id")
	}
	if p.currentJob == nil {
		return nil, submitError(msg, "no-active-job")
	}
	if msg.JobID != p.currentJob.JobID {
		return nil, submitError(msg, "stale-job-id")
	}

	ch.lastSequenceNum = msg.SequenceNum
	ch.acceptedSinceAck++
	if ch.acceptedSinceAck < p.config.ShareBatchSize {
		return nil, nil
	}

	ack := &mining.SubmitSharesSuccess{
		ChannelID:       msg.ChannelID,
		LastSequenceNum: ch.lastSequenceNum,
		NewSubmits:      ch.acceptedSinceAck,
	}
	ch.acceptedSinceAck = 0
	return ack, nil
}

func submitError(msg mining.SubmitSharesStandard, code string) *mining.SubmitSharesError {
	c, _ := bin.NewStr0255(code)
	return &mining.SubmitSharesError{ChannelID: msg.ChannelID, SequenceNum: msg.SequenceNum, ErrorCode: c}
}

// ChannelCount reports how many channels are currently open.
func (p *Pool) ChannelCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.channels)
}
