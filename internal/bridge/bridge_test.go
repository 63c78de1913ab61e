package bridge

import (
	"encoding/json"
	"testing"

	"github.com/ironseam/sv2bridge/internal/binary"
	"github.com/ironseam/sv2bridge/internal/protocol/mining"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func asciiU256(s string) binary.U256 {
	var u binary.U256
	copy(u[:], s)
	return u
}

func asciiB064K(s string) binary.B064K {
	b, err := binary.NewB064K([]byte(s))
	if err != nil {
		panic(err)
	}
	return b
}

// TestBridge_NotifyRequiresBothHalves: a V1
// mining.notify is only emitted once both SetNewPrevHash and
// NewExtendedMiningJob are present.
func TestBridge_NotifyRequiresBothHalves(t *testing.T) {
	b := New(4, 1.0)

	_, err := b.OnNewExtendedMiningJob(1, mining.NewExtendedMiningJob{JobID: 0x4f, Version: 2})
	assert.ErrorIs(t, err, ErrNotReady)

	notify, err := b.OnSetNewPrevHash(1, mining.SetNewPrevHash{
		JobID:    0x4f,
		PrevHash: asciiU256("4d16b6f85af6e2198f44ae2a6de67f78"),
		MinNTime: 1347323577,
		NBits:    472564911,
	})
	require.NoError(t, err)
	require.NotNil(t, notify)
}

// TestBridge_NotifyLiteralMatch checks the rendered V1 mining.notify
// against a known-good literal JSON object, field for field.
func TestBridge_NotifyLiteralMatch(t *testing.T) {
	b := New(4, 1.0)

	prevHash := asciiU256("4d16b6f85af6e2198f44ae2a6de67f78")
	merkleEntry := asciiU256("4d16b6f85af6e2198f44ae2a6de67f78")

	_, err := b.OnSetNewPrevHash(7, mining.SetNewPrevHash{
		JobID:    0x4f,
		PrevHash: prevHash,
		MinNTime: 1347323577,
		NBits:    472564911,
	})
	require.ErrorIs(t, err, ErrNotReady)

	notify, err := b.OnNewExtendedMiningJob(7, mining.NewExtendedMiningJob{
		JobID:            0x4f,
		Version:          2,
		CoinbaseTxPrefix: asciiB064K("0100…5008"),
		CoinbaseTxSuffix: asciiB064K("072f…0000"),
		MerklePath:       binary.Seq0255[binary.U256]{Elems: []binary.U256{merkleEntry}},
	})
	require.NoError(t, err)
	require.NotNil(t, notify)

	got, err := json.Marshal(paramsToObject(notify.Params))
	require.NoError(t, err)

	want := `{"job_id":"4f","prev_hash":"4d16b6f85af6e2198f44ae2a6de67f78","coin_base1":"0100…5008","coin_base2":"072f…0000","merkle_branch":["4d16b6f85af6e2198f44ae2a6de67f78"],"version":"00000002","bits":"1c2ac4af","time":"504e86b9","clean_jobs":false}`
	assert.JSONEq(t, want, string(got))
}

// paramsToObject re-shapes the positional mining.notify params array into
// a keyed object, purely for test comparison (the wire format itself is
// the positional array).
func paramsToObject(params []interface{}) map[string]interface{} {
	keys := []string{"job_id", "prev_hash", "coin_base1", "coin_base2", "merkle_branch", "version", "bits", "time", "clean_jobs"}
	obj := make(map[string]interface{}, len(keys))
	for i, k := range keys {
		obj[k] = params[i]
	}
	return obj
}

// TestBridge_JobIdempotence: a
// second NewExtendedMiningJob for the same job_id replaces the mapping
// rather than accumulating a duplicate.
func TestBridge_JobIdempotence(t *testing.T) {
	b := New(4, 1.0)

	_, err := b.OnNewExtendedMiningJob(1, mining.NewExtendedMiningJob{JobID: 5, Version: 1})
	require.ErrorIs(t, err, ErrNotReady)
	assert.Equal(t, uint32(1), b.jobUpstream[5])

	_, err = b.OnNewExtendedMiningJob(2, mining.NewExtendedMiningJob{JobID: 5, Version: 2})
	require.ErrorIs(t, err, ErrNotReady)
	assert.Equal(t, uint32(2), b.jobUpstream[5])
	assert.Len(t, b.jobUpstream, 1)
}

func TestBridge_SubscribeAssignsFreshIdentifiers(t *testing.T) {
	b := New(4, 2.0)

	resp1, diffNotify := b.Subscribe(1)
	resp2, _ := b.Subscribe(2)

	require.NotNil(t, resp1)
	require.NotNil(t, resp2)
	result1 := resp1.Result.([]interface{})
	result2 := resp2.Result.([]interface{})
	assert.NotEqual(t, result1[1], result2[1], "extranonce1 must differ per connection")

	require.NotNil(t, diffNotify)
	assert.Equal(t, "mining.set_difficulty", diffNotify.Method)
	assert.Equal(t, []interface{}{2.0}, diffNotify.Params)
}

func TestBridge_TranslateSubmit(t *testing.T) {
	b := New(4, 1.0)

	_, err := b.OnNewExtendedMiningJob(42, mining.NewExtendedMiningJob{JobID: 9, Version: 0x20000000})
	require.ErrorIs(t, err, ErrNotReady)

	p, err := ParseSubmitParams([]interface{}{"worker1", "9", "00000001", "504e86b9", "deadbeef"})
	require.NoError(t, err)

	upstream, share, err := b.TranslateSubmit(3, 100, p)
	require.NoError(t, err)
	assert.Equal(t, uint32(42), upstream)
	assert.Equal(t, uint32(9), share.JobID)
	assert.Equal(t, uint32(3), share.ChannelID)
	assert.Equal(t, uint32(100), share.SequenceNum)
	assert.Equal(t, uint32(0xdeadbeef), share.Nonce)
	assert.Equal(t, uint32(0x504e86b9), share.NTime)
	assert.Equal(t, uint32(0x20000000), share.Version)
}

func TestBridge_TranslateSubmitUnknownJob(t *testing.T) {
	b := New(4, 1.0)
	p, err := ParseSubmitParams([]interface{}{"worker1", "ff", "00000001", "504e86b9", "deadbeef"})
	require.NoError(t, err)

	_, _, err = b.TranslateSubmit(1, 1, p)
	assert.ErrorIs(t, err, ErrUnknownJob)
}

func TestBridge_TranslateSubmitVersionRolling(t *testing.T) {
	b := New(4, 1.0)
	_, err := b.OnNewExtendedMiningJob(1, mining.NewExtendedMiningJob{JobID: 1, Version: 0x20000000})
	require.ErrorIs(t, err, ErrNotReady)

	p, err := ParseSubmitParams([]interface{}{"w", "1", "00000001", "00000000", "00000000", "00001000"})
	require.NoError(t, err)

	_, share, err := b.TranslateSubmit(1, 1, p)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x20001000), share.Version)
}
