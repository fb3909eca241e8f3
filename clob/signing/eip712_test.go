package signing

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betbot/orderwatch/clob/types"
)

func newTestOrder() *types.Order {
	return &types.Order{
		Maker:           common.HexToAddress("0x1111111111111111111111111111111111111111"),
		Taker:           common.Address{},
		ContractAddress: common.HexToAddress("0x2222222222222222222222222222222222222222"),
		Qty:             big.NewInt(10),
		Price:           big.NewInt(5000),
		MakerFee:        big.NewInt(0),
		TakerFee:        big.NewInt(0),
		FeeRecipient:    common.HexToAddress("0x3333333333333333333333333333333333333333"),
		Expiration:      big.NewInt(1900000000),
		Salt:            big.NewInt(42),
	}
}

func TestOrderHash_Deterministic(t *testing.T) {
	chainID := big.NewInt(137)
	order := newTestOrder()

	h1, err := OrderHash(chainID, order)
	require.NoError(t, err)
	h2, err := OrderHash(chainID, order)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}

func TestOrderHash_SaltChangesHash(t *testing.T) {
	chainID := big.NewInt(137)
	order := newTestOrder()

	h1, err := OrderHash(chainID, order)
	require.NoError(t, err)

	order.Salt = big.NewInt(43)
	h2, err := OrderHash(chainID, order)
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)
}

func TestOrderHash_ContractChangesHash(t *testing.T) {
	chainID := big.NewInt(137)
	order := newTestOrder()

	h1, err := OrderHash(chainID, order)
	require.NoError(t, err)

	order.ContractAddress = common.HexToAddress("0x4444444444444444444444444444444444444444")
	h2, err := OrderHash(chainID, order)
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)
}

func TestSignAndVerify(t *testing.T) {
	chainID := big.NewInt(137)
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	order := newTestOrder()
	order.Maker = crypto.PubkeyToAddress(key.PublicKey)

	signed, err := SignOrder(key, chainID, order)
	require.NoError(t, err)

	hash, err := OrderHash(chainID, order)
	require.NoError(t, err)

	ok, err := VerifySignature(hash, signed.Signature, order.Maker)
	require.NoError(t, err)
	assert.True(t, ok)

	// v 使用 27/28 编码也应通过
	legacy := make([]byte, len(signed.Signature))
	copy(legacy, signed.Signature)
	legacy[64] += 27
	ok, err = VerifySignature(hash, legacy, order.Maker)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerifySignature_WrongSigner(t *testing.T) {
	chainID := big.NewInt(137)
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	order := newTestOrder()
	order.Maker = crypto.PubkeyToAddress(key.PublicKey)

	signed, err := SignOrder(key, chainID, order)
	require.NoError(t, err)

	hash, err := OrderHash(chainID, order)
	require.NoError(t, err)

	ok, err := VerifySignature(hash, signed.Signature, common.HexToAddress("0x5555555555555555555555555555555555555555"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifySignature_BadLength(t *testing.T) {
	_, err := VerifySignature(common.Hash{}, []byte{0x01}, common.Address{})
	assert.Error(t, err)
}
