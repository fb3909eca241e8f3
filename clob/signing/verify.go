package signing

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/betbot/orderwatch/clob/types"
)

// SignOrder 用私钥对订单哈希签名，返回已签名订单
func SignOrder(privateKey *ecdsa.PrivateKey, chainID *big.Int, order *types.Order) (*types.SignedOrder, error) {
	hash, err := OrderHash(chainID, order)
	if err != nil {
		return nil, err
	}

	// crypto.Sign 返回 65 字节：r(32) + s(32) + v(1)，v 为 0/1
	signature, err := crypto.Sign(hash.Bytes(), privateKey)
	if err != nil {
		return nil, fmt.Errorf("签名失败: %w", err)
	}

	return &types.SignedOrder{Order: *order, Signature: signature}, nil
}

// VerifySignature 校验签名是否由 claimedSigner 对 hash 签出
// 兼容 v 为 0/1 与 27/28 两种编码。
func VerifySignature(hash common.Hash, signature []byte, claimedSigner common.Address) (bool, error) {
	if len(signature) != SignatureLength {
		return false, fmt.Errorf("签名长度无效: %d", len(signature))
	}

	sig := make([]byte, SignatureLength)
	copy(sig, signature)
	if sig[64] >= 27 {
		sig[64] -= 27
	}

	pub, err := crypto.SigToPub(hash.Bytes(), sig)
	if err != nil {
		return false, fmt.Errorf("恢复公钥失败: %w", err)
	}

	return crypto.PubkeyToAddress(*pub) == claimedSigner, nil
}
