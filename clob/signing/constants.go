package signing

// EIP712 域参数
// 哈希布局是对外契约：任何实现必须逐位一致，否则订单哈希无法互认。
const (
	DomainName    = "Margin Order Book"
	DomainVersion = "1"
)

// SignatureLength 签名长度（r(32) + s(32) + v(1)）
const SignatureLength = 65
