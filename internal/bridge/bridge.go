// Package bridge implements the V1↔V2 translator: it joins the upstream
// Sv2 Mining-protocol pair SetNewPrevHash+NewExtendedMiningJob into a
// downstream Stratum V1 mining.notify, mints extranonce/subscription
// identifiers for newly-subscribing V1 miners, and translates a V1
// mining.submit back into the appropriate V2 share submission for the
// upstream node that owns the referenced job_id.
package bridge

import (
	"encoding/hex"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ironseam/sv2bridge/internal/protocol/mining"
	v1 "github.com/ironseam/sv2bridge/internal/v1"
)

// ErrUnknownJob is returned when a V1 mining.submit names a job_id this
// Bridge has no upstream mapping for (already retired, or never seen).
var ErrUnknownJob = fmt.Errorf("bridge: unknown job_id")

// ErrNotReady is returned by Notify-producing calls when only one half of
// the SetNewPrevHash/NewExtendedMiningJob pair has arrived so far.
var ErrNotReady = fmt.Errorf("bridge: next mining.notify not ready")

// NextMiningNotify holds the most recent upstream job pair the Bridge has
// seen. A V1 mining.notify is only ever built once both halves are
// present.
type NextMiningNotify struct {
	SetNewPrevHash       *mining.SetNewPrevHash
	NewExtendedMiningJob *mining.NewExtendedMiningJob
}

// Bridge owns the translator's mutable state: the pending job pair, the
// job_id→upstream_id map that routes a V1 submit back upstream, the
// downstream-facing extranonce counter, the fixed extranonce2 size, the
// current difficulty, and a per-connection subscription id generator.
type Bridge struct {
	mu sync.Mutex

	next NextMiningNotify

	// jobUpstream maps a V2 job_id to the upstream node that announced it.
	// A later job overwriting the same job_id removes the stale entry
	// before inserting the new one.
	jobUpstream map[uint32]uint32

	extranonce2Size int
	difficulty      float64

	extranonceCounter   uint32
	subscriptionCounter uint32
}

// New builds a Bridge with a fixed extranonce2 byte width and starting
// difficulty (the translator seeds each connection's vardiff state from it).
func New(extranonce2Size int, initialDifficulty float64) *Bridge {
	return &Bridge{
		jobUpstream:     make(map[uint32]uint32),
		extranonce2Size: extranonce2Size,
		difficulty:      initialDifficulty,
	}
}

// OnNewExtendedMiningJob records a new upstream job, replacing any
// previous job that shared the same job_id, and attempts to build the
// resulting V1 mining.notify.
func (b *Bridge) OnNewExtendedMiningJob(upstreamID uint32, job mining.NewExtendedMiningJob) (*v1.Notification, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.registerJob(job.JobID, upstreamID)
	jobCopy := job
	b.next.NewExtendedMiningJob = &jobCopy
	return b.buildNotifyLocked()
}

// OnSetNewPrevHash records the prev_hash that activates a previously
// future job and attempts to build the resulting V1 mining.notify.
func (b *Bridge) OnSetNewPrevHash(upstreamID uint32, msg mining.SetNewPrevHash) (*v1.Notification, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.registerJob(msg.JobID, upstreamID)
	msgCopy := msg
	b.next.SetNewPrevHash = &msgCopy
	return b.buildNotifyLocked()
}

// registerJob removes any stale mapping for jobID before installing the
// new upstream owner, so a replaced job never leaves two entries pointing
// at the same downstream-visible job_id.
func (b *Bridge) registerJob(jobID, upstreamID uint32) {
	delete(b.jobUpstream, jobID)
	b.jobUpstream[jobID] = upstreamID
}

// buildNotifyLocked renders the current NextMiningNotify into a V1
// mining.notify once both halves of the pair are present. prev_hash and
// the coinbase split are rendered by treating the raw wire bytes as
// already-ASCII hex text rather than re-hex-encoding
// them; DESIGN.md records why this repository keeps that behavior.
func (b *Bridge) buildNotifyLocked() (*v1.Notification, error) {
	snph := b.next.SetNewPrevHash
	job := b.next.NewExtendedMiningJob
	if snph == nil || job == nil {
		return nil, ErrNotReady
	}

	merkleBranch := make([]string, len(job.MerklePath.Elems))
	for i, h := range job.MerklePath.Elems {
		merkleBranch[i] = string(h[:])
	}

	notify := v1.Notify{
		JobID:        fmt.Sprintf("%x", snph.JobID),
		PrevHash:     string(snph.PrevHash[:]),
		CoinBase1:    string(job.CoinbaseTxPrefix.Bytes()),
		CoinBase2:    string(job.CoinbaseTxSuffix.Bytes()),
		MerkleBranch: merkleBranch,
		Version:      fmt.Sprintf("%08x", job.Version),
		Bits:         fmt.Sprintf("%08x", snph.NBits),
		Time:         fmt.Sprintf("%08x", snph.MinNTime),
		CleanJobs:    false,
	}
	return v1.NewNotifyNotification(notify), nil
}

// Subscribe mints a fresh extranonce1/subscription id pair for a newly
// connecting V1 miner and returns both the subscribe response and the
// accompanying mining.set_difficulty notification.
func (b *Bridge) Subscribe(requestID int) (*v1.Response, *v1.Notification) {
	extranonce1 := hex.EncodeToString(b.nextExtranonce1())
	subID := fmt.Sprintf("%016x", atomic.AddUint32(&b.subscriptionCounter, 1))

	resp := v1.NewSubscribeResponse(requestID, subID, extranonce1, b.extranonce2Size)
	diff := b.Difficulty()
	return resp, v1.NewDifficultyNotification(diff)
}

// nextExtranonce1 hands out a monotonically increasing 4-byte prefix so
// concurrently-subscribing miners never share a search space.
func (b *Bridge) nextExtranonce1() []byte {
	n := atomic.AddUint32(&b.extranonceCounter, 1)
	return []byte{byte(n >> 24), byte(n >> 16), byte(n >> 8), byte(n)}
}

// Difficulty returns the Bridge's current share difficulty.
func (b *Bridge) Difficulty() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.difficulty
}

// SetDifficulty updates the Bridge's share difficulty.
func (b *Bridge) SetDifficulty(d float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.difficulty = d
}

// SubmitParams is a parsed V1 mining.submit: [worker_name, job_id,
// extranonce2, ntime, nonce], with an optional trailing version-rolling
// bits element some miners append.
type SubmitParams struct {
	WorkerName  string
	JobID       string
	Extranonce2 string
	NTime       string
	Nonce       string
	VersionBits string
}

// ParseSubmitParams validates and extracts a mining.submit params array.
func ParseSubmitParams(params []interface{}) (SubmitParams, error) {
	var p SubmitParams
	if len(params) < 5 {
		return p, fmt.Errorf("bridge: mining.submit requires 5 params, got %d", len(params))
	}
	strs := make([]string, 5)
	for i := 0; i < 5; i++ {
		s, ok := params[i].(string)
		if !ok {
			return p, fmt.Errorf("bridge: mining.submit param %d is not a string", i)
		}
		strs[i] = s
	}
	p = SubmitParams{
		WorkerName:  strs[0],
		JobID:       strs[1],
		Extranonce2: strs[2],
		NTime:       strs[3],
		Nonce:       strs[4],
	}
	if len(params) >= 6 {
		if s, ok := params[5].(string); ok {
			p.VersionBits = s
		}
	}
	return p, nil
}

// TranslateSubmit resolves a V1 mining.submit against the Bridge's
// job_id→upstream_id map and builds the equivalent V2 SubmitSharesStandard.
// Version-rolling is bridged best-effort: when the
// miner supplied rolled version bits they are XORed onto the job's base
// version; V1 clients that never negotiated version-rolling simply omit
// them and get the job's version unchanged.
func (b *Bridge) TranslateSubmit(channelID, sequenceNum uint32, p SubmitParams) (upstreamID uint32, share mining.SubmitSharesStandard, err error) {
	jobID64, err := parseHexUint32(p.JobID)
	if err != nil {
		return 0, mining.SubmitSharesStandard{}, fmt.Errorf("bridge: invalid job_id %q: %w", p.JobID, err)
	}

	b.mu.Lock()
	upstream, ok := b.jobUpstream[jobID64]
	job := b.next.NewExtendedMiningJob
	b.mu.Unlock()
	if !ok {
		return 0, mining.SubmitSharesStandard{}, ErrUnknownJob
	}

	ntime, err := parseHexUint32(p.NTime)
	if err != nil {
		return 0, mining.SubmitSharesStandard{}, fmt.Errorf("bridge: invalid ntime %q: %w", p.NTime, err)
	}
	nonce, err := parseHexUint32(p.Nonce)
	if err != nil {
		return 0, mining.SubmitSharesStandard{}, fmt.Errorf("bridge: invalid nonce %q: %w", p.Nonce, err)
	}

	var version uint32
	if job != nil && job.JobID == jobID64 {
		version = job.Version
	}
	if p.VersionBits != "" {
		bits, err := parseHexUint32(p.VersionBits)
		if err != nil {
			return 0, mining.SubmitSharesStandard{}, fmt.Errorf("bridge: invalid version bits %q: %w", p.VersionBits, err)
		}
		version ^= bits
	}

	return upstream, mining.SubmitSharesStandard{
		ChannelID:   channelID,
		SequenceNum: sequenceNum,
		JobID:       jobID64,
		Nonce:       nonce,
		NTime:       ntime,
		Version:     version,
	}, nil
}

func parseHexUint32(s string) (uint32, error) {
	var v uint32
	if _, err := fmt.Sscanf(s, "%x", &v); err != nil {
		return 0, err
	}
	return v, nil
}
