package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

// ContractReader 通过 eth_call 执行只读合约调用的最小接口
// ethclient.Client 满足该接口。
type ContractReader interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// ContractCaller 基于 ethclient 的 Caller 实现
type ContractCaller struct {
	reader        ContractReader
	settlementABI abi.ABI
	erc20ABI      abi.ABI
	poolABI       abi.ABI
}

var _ Caller = (*ContractCaller)(nil)

// NewContractCaller 创建合约访问器
func NewContractCaller(reader ContractReader) (*ContractCaller, error) {
	settlementABI, err := abi.JSON(strings.NewReader(SettlementABI))
	if err != nil {
		return nil, fmt.Errorf("解析结算合约 ABI 失败: %w", err)
	}
	erc20ABI, err := abi.JSON(strings.NewReader(ERC20ABI))
	if err != nil {
		return nil, fmt.Errorf("解析 ERC20 ABI 失败: %w", err)
	}
	poolABI, err := abi.JSON(strings.NewReader(CollateralPoolABI))
	if err != nil {
		return nil, fmt.Errorf("解析抵押品池 ABI 失败: %w", err)
	}

	return &ContractCaller{
		reader:        reader,
		settlementABI: settlementABI,
		erc20ABI:      erc20ABI,
		poolABI:       poolABI,
	}, nil
}

// Dial 连接 RPC 节点并创建合约访问器
func Dial(rpcURL string) (*ContractCaller, *ethclient.Client, error) {
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, nil, fmt.Errorf("连接RPC节点失败: %w", err)
	}
	caller, err := NewContractCaller(client)
	if err != nil {
		return nil, nil, err
	}
	return caller, client, nil
}

// call 打包参数、执行 eth_call 并解析单个返回值
func (c *ContractCaller) call(ctx context.Context, contractABI abi.ABI, to common.Address, method string, out interface{}, args ...interface{}) error {
	data, err := contractABI.Pack(method, args...)
	if err != nil {
		return fmt.Errorf("打包 %s 参数失败: %w", method, err)
	}

	result, err := c.reader.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return fmt.Errorf("调用 %s 失败: %w", method, err)
	}

	if err := contractABI.UnpackIntoInterface(out, method, result); err != nil {
		return fmt.Errorf("解析 %s 结果失败: %w", method, err)
	}
	return nil
}

// CollateralPoolAddress 结算合约的抵押品池地址
func (c *ContractCaller) CollateralPoolAddress(ctx context.Context, contract common.Address) (common.Address, error) {
	var addr common.Address
	err := c.call(ctx, c.settlementABI, contract, "COLLATERAL_POOL_ADDRESS", &addr)
	return addr, err
}

// CollateralTokenAddress 结算合约的抵押品代币地址
func (c *ContractCaller) CollateralTokenAddress(ctx context.Context, contract common.Address) (common.Address, error) {
	var addr common.Address
	err := c.call(ctx, c.settlementABI, contract, "COLLATERAL_TOKEN_ADDRESS", &addr)
	return addr, err
}

// FeeTokenAddress 结算合约的手续费代币地址
func (c *ContractCaller) FeeTokenAddress(ctx context.Context, contract common.Address) (common.Address, error) {
	var addr common.Address
	err := c.call(ctx, c.settlementABI, contract, "FEE_TOKEN_ADDRESS", &addr)
	return addr, err
}

// TokenBalance 代币余额
func (c *ContractCaller) TokenBalance(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	var balance *big.Int
	err := c.call(ctx, c.erc20ABI, token, "balanceOf", &balance, owner)
	return balance, err
}

// TokenAllowance 代币授权额度
func (c *ContractCaller) TokenAllowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	var allowance *big.Int
	err := c.call(ctx, c.erc20ABI, token, "allowance", &allowance, owner, spender)
	return allowance, err
}

// CollateralBalance 用户在抵押品池中的余额
func (c *ContractCaller) CollateralBalance(ctx context.Context, pool, user common.Address) (*big.Int, error) {
	var balance *big.Int
	err := c.call(ctx, c.poolABI, pool, "getUserBalance", &balance, user)
	return balance, err
}

// FilledOrCancelledQty 订单已成交或已取消的累计数量
func (c *ContractCaller) FilledOrCancelledQty(ctx context.Context, contract common.Address, orderHash common.Hash) (*big.Int, error) {
	var qty *big.Int
	err := c.call(ctx, c.settlementABI, contract, "getQtyFilledOrCancelled", &qty, orderHash)
	return qty, err
}

// NeededCollateral 按合约保证金规则计算所需抵押品
func (c *ContractCaller) NeededCollateral(ctx context.Context, contract common.Address, qty, price *big.Int) (*big.Int, error) {
	var needed *big.Int
	err := c.call(ctx, c.settlementABI, contract, "calculateNeededCollateral", &needed, qty, price)
	return needed, err
}
