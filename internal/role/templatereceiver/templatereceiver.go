// Package templatereceiver implements the Template Distribution protocol's
// client role: it tracks the latest block template and the prev_hash that
// activates it, mirroring the Bridge's SetNewPrevHash/NewExtendedMiningJob
// pairing one layer up the stack (a future NewTemplate only becomes usable
// once a SetNewPrevHash naming the same template_id arrives).
package templatereceiver

import (
	"errors"
	"sync"

	bin "github.com/ironseam/sv2bridge/internal/binary"
	"github.com/ironseam/sv2bridge/internal/merkle"
	"github.com/ironseam/sv2bridge/internal/protocol/mining"
	td "github.com/ironseam/sv2bridge/internal/protocol/templatedistribution"
)

// ErrNotReady is returned when only one half of the (template, prev_hash)
// pair has arrived, or the two halves reference different template_ids.
var ErrNotReady = errors.New("templatereceiver: no matching template/prev_hash pair yet")

// Receiver owns the client-side state of the Template Distribution
// protocol. A single Receiver serves one upstream template-provider
// connection; non-future templates replace the active template
// immediately, future templates wait in a holding map until a
// SetNewPrevHash names their template_id.
type Receiver struct {
	mu sync.Mutex

	future map[uint64]td.NewTemplate

	active   *td.NewTemplate
	prevHash *td.SetNewPrevHash

	coinbaseOutputMaxAdditionalSize uint32
}

// New builds an empty Receiver.
func New() *Receiver {
	return &Receiver{future: make(map[uint64]td.NewTemplate)}
}

// OnCoinbaseOutputDataSize records the pool's requested coinbase output
// reservation. The Receiver only stores the value; nothing in this package
// reads it back or sends it upstream.
func (r *Receiver) OnCoinbaseOutputDataSize(m td.CoinbaseOutputDataSize) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.coinbaseOutputMaxAdditionalSize = m.CoinbaseOutputMaxAdditionalSize
}

// OnNewTemplate records an incoming template. A future template is held
// until a matching SetNewPrevHash arrives; a non-future template becomes
// active immediately, paired with whatever prev_hash was last observed.
func (r *Receiver) OnNewTemplate(t td.NewTemplate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t.FutureTemplate {
		r.future[t.TemplateID] = t
		return ErrNotReady
	}

	tCopy := t
	r.active = &tCopy
	if r.prevHash == nil || r.prevHash.TemplateID != t.TemplateID {
		return ErrNotReady
	}
	return nil
}

// OnSetNewPrevHash records the prev_hash/template_id pair and, if a future
// template with the matching id is already held, activates it, discarding
// any other pending future templates, which are now stale. Only one
// template pair is live at a time.
func (r *Receiver) OnSetNewPrevHash(snph td.SetNewPrevHash) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	snphCopy := snph
	r.prevHash = &snphCopy

	t, ok := r.future[snph.TemplateID]
	if !ok {
		return ErrNotReady
	}
	delete(r.future, snph.TemplateID)
	r.future = make(map[uint64]td.NewTemplate)
	r.active = &t
	return nil
}

// Ready reports whether a matched (template, prev_hash) pair is currently
// available, and returns copies of both halves.
func (r *Receiver) Ready() (td.NewTemplate, td.SetNewPrevHash, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == nil || r.prevHash == nil || r.active.TemplateID != r.prevHash.TemplateID {
		return td.NewTemplate{}, td.SetNewPrevHash{}, false
	}
	return *r.active, *r.prevHash, true
}

// BuildExtendedJob renders the currently-ready template/prev_hash pair into
// a mining.NewExtendedMiningJob a downstream extended channel (or the
// Bridge, on behalf of a V1 miner) can consume. It fails with ErrNotReady
// if no matched pair is available.
func (r *Receiver) BuildExtendedJob(channelID, jobID uint32) (mining.NewExtendedMiningJob, error) {
	tpl, _, ok := r.Ready()
	if !ok {
		return mining.NewExtendedMiningJob{}, ErrNotReady
	}

	minNTime, err := bin.NewSv2Option[bin.U32AsRef](nil)
	if err != nil {
		return mining.NewExtendedMiningJob{}, err
	}
	prefix, err := bin.NewB064K(tpl.CoinbasePrefix.Bytes())
	if err != nil {
		return mining.NewExtendedMiningJob{}, err
	}

	return mining.NewExtendedMiningJob{
		ChannelID:             channelID,
		JobID:                 jobID,
		MinNTime:              minNTime,
		Version:               tpl.Version,
		VersionRollingAllowed: true,
		MerklePath:            tpl.MerklePath,
		CoinbaseTxPrefix:      prefix,
		CoinbaseTxSuffix:      tpl.CoinbaseTxOutputs,
	}, nil
}

// MerkleRootFor computes the block-header merkle root a fully assembled
// coinbase transaction (prefix || extranonce1 || extranonce2 || suffix,
// caller-assembled) combines with, using the ready template's merkle path.
func (r *Receiver) MerkleRootFor(coinbaseRaw []byte) ([32]byte, error) {
	tpl, _, ok := r.Ready()
	if !ok {
		return [32]byte{}, ErrNotReady
	}
	txid := merkle.CoinbaseTxID(coinbaseRaw)
	root := merkle.Root(txid, tpl.MerklePath.Elems)
	return [32]byte(root), nil
}
