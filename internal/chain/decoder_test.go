package chain

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	transferTopic    = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))
	approvalTopic    = crypto.Keccak256Hash([]byte("Approval(address,address,uint256)"))
	lockedTopic      = crypto.Keccak256Hash([]byte("UpdatedUserLockedBalance(address,uint256)"))
	filledTopic      = crypto.Keccak256Hash([]byte("OrderFilled(address,address,uint256,bytes32)"))
	cancelledTopic   = crypto.Keccak256Hash([]byte("OrderCancelled(address,uint256,bytes32)"))
	poolBalanceTopic = crypto.Keccak256Hash([]byte("UpdatedUserBalance(address,uint256)"))
)

func addrTopic(a common.Address) common.Hash {
	return common.BytesToHash(common.LeftPadBytes(a.Bytes(), 32))
}

func uintWord(v *big.Int) []byte {
	return common.LeftPadBytes(v.Bytes(), 32)
}

func TestDecoder_Transfer(t *testing.T) {
	d, err := NewDecoder()
	require.NoError(t, err)

	token := common.HexToAddress("0xaaaa000000000000000000000000000000000001")
	from := common.HexToAddress("0xaaaa000000000000000000000000000000000002")
	to := common.HexToAddress("0xaaaa000000000000000000000000000000000003")

	log := ethtypes.Log{
		Address: token,
		Topics:  []common.Hash{transferTopic, addrTopic(from), addrTopic(to)},
		Data:    uintWord(big.NewInt(500)),
	}

	ev, err := d.Decode(log, false)
	require.NoError(t, err)
	assert.Equal(t, KindTransfer, ev.Kind)
	assert.Equal(t, token, ev.Address)
	assert.Equal(t, from, ev.From)
	assert.Equal(t, to, ev.To)
	assert.Equal(t, int64(500), ev.Value.Int64())
	assert.False(t, ev.Removed)
}

func TestDecoder_Approval(t *testing.T) {
	d, err := NewDecoder()
	require.NoError(t, err)

	owner := common.HexToAddress("0xbbbb000000000000000000000000000000000001")
	spender := common.HexToAddress("0xbbbb000000000000000000000000000000000002")

	log := ethtypes.Log{
		Address: common.HexToAddress("0xbbbb000000000000000000000000000000000003"),
		Topics:  []common.Hash{approvalTopic, addrTopic(owner), addrTopic(spender)},
		Data:    uintWord(big.NewInt(1000)),
	}

	ev, err := d.Decode(log, true)
	require.NoError(t, err)
	assert.Equal(t, KindApproval, ev.Kind)
	assert.Equal(t, owner, ev.Owner)
	assert.Equal(t, spender, ev.Spender)
	assert.True(t, ev.Removed)
}

func TestDecoder_OrderFilled(t *testing.T) {
	d, err := NewDecoder()
	require.NoError(t, err)

	maker := common.HexToAddress("0xcccc000000000000000000000000000000000001")
	taker := common.HexToAddress("0xcccc000000000000000000000000000000000002")
	orderHash := common.HexToHash("0xdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeef")

	data := append(addrTopic(taker).Bytes(), uintWord(big.NewInt(2))...)
	data = append(data, orderHash.Bytes()...)

	log := ethtypes.Log{
		Address: common.HexToAddress("0xcccc000000000000000000000000000000000003"),
		Topics:  []common.Hash{filledTopic, addrTopic(maker)},
		Data:    data,
	}

	ev, err := d.Decode(log, false)
	require.NoError(t, err)
	assert.Equal(t, KindOrderFilled, ev.Kind)
	assert.Equal(t, maker, ev.Maker)
	assert.Equal(t, orderHash, ev.OrderHash)
	assert.Equal(t, int64(2), ev.Value.Int64())
}

func TestDecoder_OrderCancelled(t *testing.T) {
	d, err := NewDecoder()
	require.NoError(t, err)

	maker := common.HexToAddress("0xdddd000000000000000000000000000000000001")
	orderHash := common.HexToHash("0x1234000000000000000000000000000000000000000000000000000000005678")

	data := append(uintWord(big.NewInt(7)), orderHash.Bytes()...)

	log := ethtypes.Log{
		Address: common.HexToAddress("0xdddd000000000000000000000000000000000002"),
		Topics:  []common.Hash{cancelledTopic, addrTopic(maker)},
		Data:    data,
	}

	ev, err := d.Decode(log, false)
	require.NoError(t, err)
	assert.Equal(t, KindOrderCancelled, ev.Kind)
	assert.Equal(t, maker, ev.Maker)
	assert.Equal(t, orderHash, ev.OrderHash)
	assert.Equal(t, int64(7), ev.Value.Int64())
}

func TestDecoder_BalanceEvents(t *testing.T) {
	d, err := NewDecoder()
	require.NoError(t, err)

	user := common.HexToAddress("0xeeee000000000000000000000000000000000001")

	locked := ethtypes.Log{
		Address: common.HexToAddress("0xeeee000000000000000000000000000000000002"),
		Topics:  []common.Hash{lockedTopic, addrTopic(user)},
		Data:    uintWord(big.NewInt(300)),
	}
	ev, err := d.Decode(locked, false)
	require.NoError(t, err)
	assert.Equal(t, KindLockedBalance, ev.Kind)
	assert.Equal(t, user, ev.User)

	pool := ethtypes.Log{
		Address: common.HexToAddress("0xeeee000000000000000000000000000000000003"),
		Topics:  []common.Hash{poolBalanceTopic, addrTopic(user)},
		Data:    uintWord(big.NewInt(900)),
	}
	ev, err = d.Decode(pool, false)
	require.NoError(t, err)
	assert.Equal(t, KindPoolBalance, ev.Kind)
	assert.Equal(t, user, ev.User)
	assert.Equal(t, int64(900), ev.Value.Int64())
}

func TestDecoder_UnknownTopicIgnored(t *testing.T) {
	d, err := NewDecoder()
	require.NoError(t, err)

	log := ethtypes.Log{
		Address: common.HexToAddress("0xffff000000000000000000000000000000000001"),
		Topics:  []common.Hash{crypto.Keccak256Hash([]byte("SomethingElse(uint256)"))},
	}

	ev, err := d.Decode(log, false)
	require.NoError(t, err)
	assert.Equal(t, KindUnknown, ev.Kind)
}

func TestDecoder_NoTopics(t *testing.T) {
	d, err := NewDecoder()
	require.NoError(t, err)

	ev, err := d.Decode(ethtypes.Log{}, false)
	require.NoError(t, err)
	assert.Equal(t, KindUnknown, ev.Kind)
}
