package chain

// SettlementABI 结算合约 view 函数 ABI
const SettlementABI = `[
	{"constant":true,"inputs":[],"name":"COLLATERAL_POOL_ADDRESS","outputs":[{"name":"","type":"address"}],"payable":false,"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[],"name":"COLLATERAL_TOKEN_ADDRESS","outputs":[{"name":"","type":"address"}],"payable":false,"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[],"name":"FEE_TOKEN_ADDRESS","outputs":[{"name":"","type":"address"}],"payable":false,"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[{"name":"orderHash","type":"bytes32"}],"name":"getQtyFilledOrCancelled","outputs":[{"name":"","type":"uint256"}],"payable":false,"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[{"name":"qty","type":"uint256"},{"name":"price","type":"uint256"}],"name":"calculateNeededCollateral","outputs":[{"name":"","type":"uint256"}],"payable":false,"stateMutability":"view","type":"function"}
]`

// ERC20ABI 代币 view 函数 ABI（余额与授权）
const ERC20ABI = `[
	{"constant":true,"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"payable":false,"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"name":"allowance","outputs":[{"name":"","type":"uint256"}],"payable":false,"stateMutability":"view","type":"function"}
]`

// CollateralPoolABI 抵押品池 view 函数 ABI
const CollateralPoolABI = `[
	{"constant":true,"inputs":[{"name":"user","type":"address"}],"name":"getUserBalance","outputs":[{"name":"","type":"uint256"}],"payable":false,"stateMutability":"view","type":"function"}
]`

// EventsABI 监听的全部事件 ABI
// Transfer/Approval 来自代币合约；UpdatedUserLockedBalance 来自手续费代币；
// OrderFilled/OrderCancelled 来自结算合约；UpdatedUserBalance 来自抵押品池。
const EventsABI = `[
	{"anonymous":false,"inputs":[{"indexed":true,"name":"from","type":"address"},{"indexed":true,"name":"to","type":"address"},{"indexed":false,"name":"value","type":"uint256"}],"name":"Transfer","type":"event"},
	{"anonymous":false,"inputs":[{"indexed":true,"name":"owner","type":"address"},{"indexed":true,"name":"spender","type":"address"},{"indexed":false,"name":"value","type":"uint256"}],"name":"Approval","type":"event"},
	{"anonymous":false,"inputs":[{"indexed":true,"name":"user","type":"address"},{"indexed":false,"name":"balance","type":"uint256"}],"name":"UpdatedUserLockedBalance","type":"event"},
	{"anonymous":false,"inputs":[{"indexed":true,"name":"maker","type":"address"},{"indexed":false,"name":"taker","type":"address"},{"indexed":false,"name":"filledQty","type":"uint256"},{"indexed":false,"name":"orderHash","type":"bytes32"}],"name":"OrderFilled","type":"event"},
	{"anonymous":false,"inputs":[{"indexed":true,"name":"maker","type":"address"},{"indexed":false,"name":"cancelledQty","type":"uint256"},{"indexed":false,"name":"orderHash","type":"bytes32"}],"name":"OrderCancelled","type":"event"},
	{"anonymous":false,"inputs":[{"indexed":true,"name":"user","type":"address"},{"indexed":false,"name":"balance","type":"uint256"}],"name":"UpdatedUserBalance","type":"event"}
]`
