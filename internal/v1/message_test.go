package v1

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRequest(t *testing.T) {
	line := []byte(`{"id":1,"method":"mining.subscribe","params":["miner/1.0"]}`)
	req, err := ParseRequest(line)
	require.NoError(t, err)
	assert.Equal(t, 1, req.ID)
	assert.Equal(t, "mining.subscribe", req.Method)
	assert.Equal(t, []interface{}{"miner/1.0"}, req.Params)
}

func TestParseRequestMissingMethod(t *testing.T) {
	_, err := ParseRequest([]byte(`{"id":1,"params":[]}`))
	assert.Error(t, err)
}

func TestResponseToJSON(t *testing.T) {
	resp := NewAuthorizeResponse(2, true)
	b, err := resp.ToJSON()
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":2,"result":true,"error":null}`, string(b[:len(b)-1]))
	assert.Equal(t, byte('\n'), b[len(b)-1])
}

func TestNewSubscribeResponse(t *testing.T) {
	resp := NewSubscribeResponse(1, "deadbeef", "08000002", 4)
	b, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":1,"result":[[["mining.set_difficulty","deadbeef"],["mining.notify","deadbeef"]],"08000002",4],"error":null}`, string(b))
}

func TestNewErrorResponse(t *testing.T) {
	resp := NewErrorResponse(3, 23, "Job not found")
	b, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":3,"result":null,"error":[23,"Job not found",null]}`, string(b))
}

func TestNewNotifyNotification(t *testing.T) {
	n := NewNotifyNotification(Notify{
		JobID:        "4f",
		PrevHash:     "4d16b6f85af6e2198f44ae2a6de67f78",
		CoinBase1:    "0100…5008",
		CoinBase2:    "072f…0000",
		MerkleBranch: []string{"4d16b6f85af6e2198f44ae2a6de67f78"},
		Version:      "00000002",
		Bits:         "1c2ac4af",
		Time:         "504e86b9",
		CleanJobs:    false,
	})
	b, err := n.ToJSON()
	require.NoError(t, err)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, "mining.notify", got["method"])

	params := got["params"].([]interface{})
	require.Len(t, params, 9)
	assert.Equal(t, "4f", params[0])
	assert.Equal(t, "4d16b6f85af6e2198f44ae2a6de67f78", params[1])
	assert.Equal(t, false, params[8])
}

func TestNewDifficultyNotification(t *testing.T) {
	n := NewDifficultyNotification(1024)
	b, err := json.Marshal(n)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":null,"method":"mining.set_difficulty","params":[1024]}`, string(b))
}

func TestNewSetVersionMaskNotification(t *testing.T) {
	n := NewSetVersionMaskNotification(0x1fffe000)
	b, err := json.Marshal(n)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":null,"method":"mining.set_version_mask","params":["1fffe000"]}`, string(b))
}

// TestParseConfigure_WithMinBitCount covers all four extension
// parameters present: three version-rolling ones plus minimum-difficulty.
func TestParseConfigure_WithMinBitCount(t *testing.T) {
	params := []interface{}{
		[]interface{}{"version-rolling", "minimum-difficulty"},
		map[string]interface{}{
			"version-rolling":               true,
			"version-rolling.mask":          "1fffe000",
			"version-rolling.min-bit-count": "00000005",
			"minimum-difficulty":            false,
		},
	}
	cfg, err := ParseConfigure(params)
	require.NoError(t, err)
	assert.True(t, cfg.VersionRolling)
	assert.Equal(t, uint32(0x1fffe000), cfg.VersionRollingMask)
	assert.Equal(t, uint32(5), cfg.MinBitCount)
	require.NotNil(t, cfg.MinimumDifficulty)
	assert.False(t, *cfg.MinimumDifficulty)
}

// TestParseConfigure_WithoutMinBitCount: an absent min-bit-count parses
// as 0, not an error.
func TestParseConfigure_WithoutMinBitCount(t *testing.T) {
	params := []interface{}{
		[]interface{}{"version-rolling"},
		map[string]interface{}{
			"version-rolling":      true,
			"version-rolling.mask": "1fffe000",
		},
	}
	cfg, err := ParseConfigure(params)
	require.NoError(t, err)
	assert.True(t, cfg.VersionRolling)
	assert.Equal(t, uint32(0x1fffe000), cfg.VersionRollingMask)
	assert.Equal(t, uint32(0), cfg.MinBitCount)
	assert.Nil(t, cfg.MinimumDifficulty)
}

func TestParseConfigureTooFewParams(t *testing.T) {
	_, err := ParseConfigure([]interface{}{[]interface{}{}})
	assert.Error(t, err)
}

func TestParseConfigureResponseParams(t *testing.T) {
	obj := map[string]interface{}{
		"version-rolling":               true,
		"version-rolling.mask":          "1fffe000",
		"version-rolling.min-bit-count": "00000005",
	}
	cfg, err := ParseConfigureResponseParams(obj)
	require.NoError(t, err)
	assert.Equal(t, uint32(5), cfg.MinBitCount)
}
