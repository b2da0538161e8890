// Package persist 延迟合并写入："标记脏数据，空闲后或显式 Flush 时写出"
package persist

import (
	"sync"
	"time"

	"ChatBGM/logger"
)

// FlushFunc 实际的写出操作
type FlushFunc func() error

// Debouncer 合并短时间内的多次写入请求
type Debouncer struct {
	name  string
	delay time.Duration
	flush FlushFunc

	mu      sync.Mutex
	timer   *time.Timer
	dirty   bool
	stopped bool

	flushMu sync.Mutex // 保证同一时刻只有一次写出
}

// NewDebouncer 创建延迟写入器，delay <= 0 时每次 MarkDirty 立即写出
func NewDebouncer(name string, delay time.Duration, flush FlushFunc) *Debouncer {
	return &Debouncer{name: name, delay: delay, flush: flush}
}

// MarkDirty 标记有待写出的数据，并重置空闲计时器
func (d *Debouncer) MarkDirty() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.dirty = true
	if d.delay <= 0 {
		d.mu.Unlock()
		d.flushLogged()
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, d.flushLogged)
	d.mu.Unlock()
}

// Pending 是否有未写出的数据
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dirty
}

// Flush 立即写出待写数据，没有时什么也不做
func (d *Debouncer) Flush() error {
	d.flushMu.Lock()
	defer d.flushMu.Unlock()

	d.mu.Lock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	if !d.dirty {
		d.mu.Unlock()
		return nil
	}
	d.dirty = false
	d.mu.Unlock()

	if err := d.flush(); err != nil {
		// 写失败时保留脏标记，下次再试
		d.mu.Lock()
		d.dirty = true
		d.mu.Unlock()
		return err
	}
	return nil
}

// Close 写出剩余数据并停止接受新的标记
func (d *Debouncer) Close() error {
	err := d.Flush()
	d.mu.Lock()
	d.stopped = true
	d.mu.Unlock()
	return err
}

func (d *Debouncer) flushLogged() {
	if err := d.Flush(); err != nil {
		logger.Error("延迟写入失败", logger.String("name", d.name), logger.ErrorField(err))
	}
}
