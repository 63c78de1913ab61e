package templatereceiver

import (
	"testing"

	"github.com/stretchr/testify/require"

	bin "github.com/ironseam/sv2bridge/internal/binary"
	td "github.com/ironseam/sv2bridge/internal/protocol/templatedistribution"
)

func mustB0255(t *testing.T, b []byte) bin.B0255 {
	t.Helper()
	v, err := bin.NewB0255(b)
	require.NoError(t, err)
	return v
}

func mustB064K(t *testing.T, b []byte) bin.B064K {
	t.Helper()
	v, err := bin.NewB064K(b)
	require.NoError(t, err)
	return v
}

func TestReceiver_FutureTemplateThenMatchingPrevHash_Ready(t *testing.T) {
	r := New()

	tpl := td.NewTemplate{
		TemplateID:       7,
		FutureTemplate:   true,
		Version:          0x20000000,
		CoinbasePrefix:   mustB0255(t, []byte{0x01}),
		CoinbaseTxOutputs: mustB064K(t, []byte{0x02}),
	}
	require.ErrorIs(t, r.OnNewTemplate(tpl), ErrNotReady)

	_, _, ok := r.Ready()
	require.False(t, ok)

	err := r.OnSetNewPrevHash(td.SetNewPrevHash{TemplateID: 7, NBits: 0x1d00ffff})
	require.NoError(t, err)

	gotTpl, gotSNPH, ok := r.Ready()
	require.True(t, ok)
	require.Equal(t, uint64(7), gotTpl.TemplateID)
	require.Equal(t, uint64(7), gotSNPH.TemplateID)
}

func TestReceiver_NonMatchingTemplateID_NotReady(t *testing.T) {
	r := New()

	tpl := td.NewTemplate{TemplateID: 1, FutureTemplate: true}
	require.ErrorIs(t, r.OnNewTemplate(tpl), ErrNotReady)

	err := r.OnSetNewPrevHash(td.SetNewPrevHash{TemplateID: 2})
	require.ErrorIs(t, err, ErrNotReady)

	_, _, ok := r.Ready()
	require.False(t, ok)
}

func TestReceiver_BuildExtendedJob_RequiresReady(t *testing.T) {
	r := New()
	_, err := r.BuildExtendedJob(1, 1)
	require.ErrorIs(t, err, ErrNotReady)
}

func TestReceiver_BuildExtendedJob_OnceReady(t *testing.T) {
	r := New()
	tpl := td.NewTemplate{
		TemplateID:        5,
		FutureTemplate:    true,
		Version:           2,
		CoinbasePrefix:    mustB0255(t, []byte{0xde, 0xad}),
		CoinbaseTxOutputs: mustB064K(t, []byte{0xbe, 0xef}),
	}
	require.ErrorIs(t, r.OnNewTemplate(tpl), ErrNotReady)
	require.NoError(t, r.OnSetNewPrevHash(td.SetNewPrevHash{TemplateID: 5}))

	job, err := r.BuildExtendedJob(3, 9)
	require.NoError(t, err)
	require.Equal(t, uint32(3), job.ChannelID)
	require.Equal(t, uint32(9), job.JobID)
	require.Equal(t, uint32(2), job.Version)
	require.False(t, job.MinNTime.IsSome())
	require.Equal(t, []byte{0xde, 0xad}, job.CoinbaseTxPrefix.Bytes())
	require.Equal(t, []byte{0xbe, 0xef}, job.CoinbaseTxSuffix.Bytes())
}
