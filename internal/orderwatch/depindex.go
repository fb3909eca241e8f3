package orderwatch

import (
	"github.com/ethereum/go-ethereum/common"
)

// depIndex 依赖反向索引：maker 地址 → 资源地址 → 订单哈希集合
//
// 订单加入监视集合时登记其三个相关地址（手续费代币、抵押品代币、
// 抵押品池），移除时全部撤销。空的内层容器立刻剪除，不留悬空。
// 非线程安全，由 Watcher 的锁保护。
type depIndex struct {
	index map[common.Address]map[common.Address]map[common.Hash]struct{}
}

func newDepIndex() *depIndex {
	return &depIndex{
		index: make(map[common.Address]map[common.Address]map[common.Hash]struct{}),
	}
}

// add 在 (maker, addr) 下登记订单
func (d *depIndex) add(maker, addr common.Address, orderHash common.Hash) {
	byAddr, ok := d.index[maker]
	if !ok {
		byAddr = make(map[common.Address]map[common.Hash]struct{})
		d.index[maker] = byAddr
	}
	hashes, ok := byAddr[addr]
	if !ok {
		hashes = make(map[common.Hash]struct{})
		byAddr[addr] = hashes
	}
	hashes[orderHash] = struct{}{}
}

// remove 撤销 (maker, addr) 下的订单登记，剪除空容器
func (d *depIndex) remove(maker, addr common.Address, orderHash common.Hash) {
	byAddr, ok := d.index[maker]
	if !ok {
		return
	}
	hashes, ok := byAddr[addr]
	if !ok {
		return
	}
	delete(hashes, orderHash)
	if len(hashes) == 0 {
		delete(byAddr, addr)
	}
	if len(byAddr) == 0 {
		delete(d.index, maker)
	}
}

// get (owner, addr) 下登记的全部订单哈希
func (d *depIndex) get(owner, addr common.Address) []common.Hash {
	byAddr, ok := d.index[owner]
	if !ok {
		return nil
	}
	hashes, ok := byAddr[addr]
	if !ok {
		return nil
	}
	out := make([]common.Hash, 0, len(hashes))
	for h := range hashes {
		out = append(out, h)
	}
	return out
}

// has 订单是否登记在 (owner, addr) 下
func (d *depIndex) has(owner, addr common.Address, orderHash common.Hash) bool {
	byAddr, ok := d.index[owner]
	if !ok {
		return false
	}
	hashes, ok := byAddr[addr]
	if !ok {
		return false
	}
	_, ok = hashes[orderHash]
	return ok
}

// empty 索引是否为空（包含任何 maker 即为非空）
func (d *depIndex) empty() bool {
	return len(d.index) == 0
}
