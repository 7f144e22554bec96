package storage

import (
	"sync"
	"time"

	"cdpauth/pkg/model"
)

// EventRepo 操作事件历史仓库，异步批量落盘
type EventRepo struct {
	db *DB
	// 异步写入缓冲
	buffer    []OperationEventRecord
	bufferMu  sync.Mutex
	batchSize int
	flushCh   chan struct{}
	stopCh    chan struct{}
	wg        sync.WaitGroup
}

// NewEventRepo 创建事件仓库实例并启动写入协程
func NewEventRepo(db *DB) *EventRepo {
	r := &EventRepo{
		db:        db,
		buffer:    make([]OperationEventRecord, 0, 100),
		batchSize: 50,
		flushCh:   make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
	}
	r.wg.Add(1)
	go r.asyncWriter()
	return r
}

// asyncWriter 异步批量写入协程
func (r *EventRepo) asyncWriter() {
	defer r.wg.Done()
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			// 停止前刷新剩余数据
			r.flush()
			return
		case <-ticker.C:
			r.flush()
		case <-r.flushCh:
			r.flush()
		}
	}
}

// flush 刷新缓冲区到数据库
func (r *EventRepo) flush() {
	r.bufferMu.Lock()
	if len(r.buffer) == 0 {
		r.bufferMu.Unlock()
		return
	}
	toWrite := r.buffer
	r.buffer = make([]OperationEventRecord, 0, 100)
	r.bufferMu.Unlock()

	// 批量插入，失败不阻塞调用方
	if err := r.db.GormDB().CreateInBatches(toWrite, 100).Error; err != nil {
		_ = err
	}
}

// Stop 停止异步写入并排空缓冲
func (r *EventRepo) Stop() {
	close(r.stopCh)
	r.wg.Wait()
}

// OperationFailed 记录失败事件（异步），实现 obs.Observer
func (r *EventRepo) OperationFailed(evt model.OperationEvent) {
	record := OperationEventRecord{
		Op:        evt.Op,
		Message:   evt.Message,
		Timestamp: evt.Timestamp,
		CreatedAt: time.Now(),
	}

	r.bufferMu.Lock()
	r.buffer = append(r.buffer, record)
	needFlush := len(r.buffer) >= r.batchSize
	r.bufferMu.Unlock()

	if needFlush {
		select {
		case r.flushCh <- struct{}{}:
		default:
		}
	}
}

// Recent 查询最近的失败事件，按时间倒序
func (r *EventRepo) Recent(limit int) ([]model.OperationEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	var records []OperationEventRecord
	err := r.db.GormDB().Order("timestamp DESC").Limit(limit).Find(&records).Error
	if err != nil {
		return nil, err
	}
	out := make([]model.OperationEvent, 0, len(records))
	for _, rec := range records {
		out = append(out, model.OperationEvent{
			Op:        rec.Op,
			Message:   rec.Message,
			Timestamp: rec.Timestamp,
		})
	}
	return out, nil
}
