package hasher

import (
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/rs/zerolog"
)

// 任务与结果通道的缓冲区大小
const poolBufferSize = 1000

// Task 单个文件的哈希计算任务
type Task struct {
	Path string
	Size int64
}

// Result 单个文件的哈希计算结果
type Result struct {
	Path  string
	Hash  string
	Size  int64
	Error error
}

// Pool 基于 goroutine 池的并发哈希计算
// 调度器在每个周期开始时预先计算整批文件的摘要，
// 后续的文件处理保持串行，不会并发访问存储层
type Pool struct {
	hasher  *Hasher
	workers int
	tasks   chan Task
	results chan Result
	wg      sync.WaitGroup
	pool    *ants.Pool
	log     zerolog.Logger
}

// NewPool 创建哈希计算池
func NewPool(h *Hasher, workers int, log zerolog.Logger) (*Pool, error) {
	if workers < 1 {
		workers = 1
	}

	antsPool, err := ants.NewPool(workers)
	if err != nil {
		return nil, err
	}

	log.Debug().Int("workers", workers).Msg("创建哈希计算池")

	p := &Pool{
		hasher:  h,
		workers: workers,
		tasks:   make(chan Task, poolBufferSize),
		results: make(chan Result, poolBufferSize),
		pool:    antsPool,
		log:     log,
	}

	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		if err := antsPool.Submit(p.worker); err != nil {
			p.wg.Done()
			antsPool.Release()
			return nil, err
		}
	}

	return p, nil
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for task := range p.tasks {
		hash, err := p.hasher.Sum(task.Path)
		p.results <- Result{
			Path:  task.Path,
			Hash:  hash,
			Size:  task.Size,
			Error: err,
		}
	}
}

// Submit 提交哈希计算任务
func (p *Pool) Submit(task Task) {
	p.tasks <- task
}

// Results 返回结果通道
func (p *Pool) Results() <-chan Result {
	return p.results
}

// Close 关闭任务通道并等待所有任务完成，随后关闭结果通道
func (p *Pool) Close() {
	close(p.tasks)
	p.wg.Wait()
	p.pool.Release()
	close(p.results)
	p.log.Debug().Msg("哈希计算池已关闭")
}
