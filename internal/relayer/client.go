package relayer

import (
	"context"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/betbot/orderwatch/clob/types"
)

var log = logrus.WithField("component", "relayer")

// OrderAdder 订单接收方（通常是 orderwatch.Watcher）
type OrderAdder interface {
	AddOrder(ctx context.Context, signedOrder *types.SignedOrder) (common.Hash, error)
}

// Client 链下撮合服务 REST 客户端
// 用于启动时拉取全部敞口订单，为监视器灌入初始集合。
type Client struct {
	client *resty.Client
}

// NewClient 创建 REST 客户端
func NewClient(host string) *Client {
	if strings.HasSuffix(host, "/") {
		host = host[:len(host)-1]
	}

	// resty 会自动从环境变量读取代理配置（HTTP_PROXY, HTTPS_PROXY）
	client := resty.New().
		SetBaseURL(host).
		SetTimeout(30 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(10 * time.Second)

	return &Client{client: client}
}

// orderPayload 撮合服务的订单线格式
// 地址为 0x 前缀十六进制，数值为十进制字符串，签名为十六进制。
type orderPayload struct {
	Maker           string `json:"maker"`
	Taker           string `json:"taker"`
	ContractAddress string `json:"contractAddress"`
	Qty             string `json:"qty"`
	Price           string `json:"price"`
	MakerFee        string `json:"makerFee"`
	TakerFee        string `json:"takerFee"`
	FeeRecipient    string `json:"feeRecipient"`
	Expiration      string `json:"expiration"`
	Salt            string `json:"salt"`
	Signature       string `json:"signature"`
}

type openOrdersResponse struct {
	Orders []orderPayload `json:"orders"`
}

// GetOpenOrders 拉取全部敞口订单
func (c *Client) GetOpenOrders(ctx context.Context) ([]*types.SignedOrder, error) {
	var out openOrdersResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetResult(&out).
		Get("/orders/open")
	if err != nil {
		return nil, errors.Wrap(err, "拉取敞口订单失败")
	}
	if !resp.IsSuccess() {
		return nil, errors.Errorf("拉取敞口订单失败: http %d: %s", resp.StatusCode(), resp.String())
	}

	orders := make([]*types.SignedOrder, 0, len(out.Orders))
	for i := range out.Orders {
		signed, err := out.Orders[i].toSignedOrder()
		if err != nil {
			// 单条订单损坏不影响其余订单
			log.WithError(err).WithField("index", i).Warn("订单解析失败，跳过")
			continue
		}
		orders = append(orders, signed)
	}
	return orders, nil
}

// SeedWatcher 拉取敞口订单并逐条交给监视器
// 返回成功加入的订单数；单条被拒（如签名无效）只记日志。
func (c *Client) SeedWatcher(ctx context.Context, adder OrderAdder) (int, error) {
	orders, err := c.GetOpenOrders(ctx)
	if err != nil {
		return 0, err
	}

	added := 0
	for _, signed := range orders {
		if _, err := adder.AddOrder(ctx, signed); err != nil {
			log.WithError(err).WithField("maker", signed.Maker.Hex()).Warn("订单被拒，跳过")
			continue
		}
		added++
	}

	log.WithFields(logrus.Fields{
		"fetched": len(orders),
		"added":   added,
	}).Info("初始订单集合灌入完成")
	return added, nil
}

func (p *orderPayload) toSignedOrder() (*types.SignedOrder, error) {
	qty, err := parseBig(p.Qty)
	if err != nil {
		return nil, errors.Wrap(err, "qty")
	}
	price, err := parseBig(p.Price)
	if err != nil {
		return nil, errors.Wrap(err, "price")
	}
	makerFee, err := parseBig(p.MakerFee)
	if err != nil {
		return nil, errors.Wrap(err, "makerFee")
	}
	takerFee, err := parseBig(p.TakerFee)
	if err != nil {
		return nil, errors.Wrap(err, "takerFee")
	}
	expiration, err := parseBig(p.Expiration)
	if err != nil {
		return nil, errors.Wrap(err, "expiration")
	}
	salt, err := parseBig(p.Salt)
	if err != nil {
		return nil, errors.Wrap(err, "salt")
	}

	sig, err := parseSignature(p.Signature)
	if err != nil {
		return nil, err
	}

	return &types.SignedOrder{
		Order: types.Order{
			Maker:           common.HexToAddress(p.Maker),
			Taker:           common.HexToAddress(p.Taker),
			ContractAddress: common.HexToAddress(p.ContractAddress),
			Qty:             qty,
			Price:           price,
			MakerFee:        makerFee,
			TakerFee:        takerFee,
			FeeRecipient:    common.HexToAddress(p.FeeRecipient),
			Expiration:      expiration,
			Salt:            salt,
		},
		Signature: sig,
	}, nil
}

func parseBig(s string) (*big.Int, error) {
	if s == "" {
		return big.NewInt(0), nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, errors.Errorf("非法数值: %q", s)
	}
	return v, nil
}

func parseSignature(s string) ([]byte, error) {
	s = strings.TrimPrefix(s, "0x")
	if s == "" {
		return nil, errors.New("签名为空")
	}
	sig := common.FromHex("0x" + s)
	if len(sig) == 0 {
		return nil, errors.Errorf("非法签名: %q", s)
	}
	return sig, nil
}
