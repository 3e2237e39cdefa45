package pipeline

import (
	"context"
	"errors"
	"fmt"

	"multisend/internal/logic/chain"
	"multisend/internal/logic/core"
	"multisend/internal/logic/instruction"
	"multisend/pkg/logger"
)

// Stage 流水线阶段
type Stage int

const (
	StageParsed Stage = iota
	StageAmountValidated
	StageAddressValidated
	StageBalanceValidated
	StageExecuted
	StageFailed
)

func (s Stage) String() string {
	switch s {
	case StageParsed:
		return "parsed"
	case StageAmountValidated:
		return "amount_validated"
	case StageAddressValidated:
		return "address_validated"
	case StageBalanceValidated:
		return "balance_validated"
	case StageExecuted:
		return "executed"
	case StageFailed:
		return "failed"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// Locker 按 (chain, address) 串行化提交
type Locker interface {
	Lock(ctx context.Context, chainName, address string) (unlock func(context.Context) error, err error)
}

// EventSink 生命周期事件出口，失败只记录日志
type EventSink interface {
	Publish(ctx context.Context, ev *core.Event) error
}

// Pipeline 驱动一次发放：校验 -> 构造 -> 提交，不做任何重试
type Pipeline struct {
	backend chain.Backend
	instr   *instruction.MultisendInstruction
	network string
	locker  Locker
	sink    EventSink

	stage     Stage
	failedAt  Stage // 失败前最后到达的阶段
	lastError error
}

type Option func(*Pipeline)

func WithNetwork(network string) Option { return func(p *Pipeline) { p.network = network } }
func WithLocker(l Locker) Option        { return func(p *Pipeline) { p.locker = l } }
func WithEventSink(s EventSink) Option  { return func(p *Pipeline) { p.sink = s } }

// New instr 须已解析，流水线只读使用
func New(backend chain.Backend, instr *instruction.MultisendInstruction, opts ...Option) *Pipeline {
	p := &Pipeline{backend: backend, instr: instr, stage: StageParsed}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Stage 当前阶段
func (p *Pipeline) Stage() Stage { return p.stage }

// FailedAt 进入 Failed 之前到达的阶段
func (p *Pipeline) FailedAt() Stage { return p.failedAt }

// Err 最近一次失败原因
func (p *Pipeline) Err() error { return p.lastError }

func (p *Pipeline) fail(err error) error {
	p.failedAt = p.stage
	p.stage = StageFailed
	p.lastError = err
	return err
}

// Validate 依次校验金额守恒、地址、余额，遇错即停，不改变链上状态
func (p *Pipeline) Validate(ctx context.Context) error {
	p.stage, p.lastError = StageParsed, nil
	name := p.backend.Name()

	if err := instruction.ValidateAmountConservation(p.instr); err != nil {
		return p.fail(err)
	}
	p.stage = StageAmountValidated
	logger.Infof("[%s] amount conservation ok: %d recipients, %d senders", name, len(p.instr.Recipients), len(p.instr.Senders))

	if err := p.backend.ValidateAddresses(p.instr); err != nil {
		return p.fail(err)
	}
	p.stage = StageAddressValidated
	logger.Infof("[%s] all addresses valid", name)

	if err := p.backend.ValidateBalances(ctx, p.instr); err != nil {
		return p.fail(err)
	}
	p.stage = StageBalanceValidated
	logger.Infof("[%s] all sender balances sufficient", name)

	ev := p.newEvent(core.EventValidated, "")
	p.publish(ctx, ev)
	return nil
}

// Broadcast 构造并提交全部转账。不隐式执行 Validate，调用方自行决定顺序
func (p *Pipeline) Broadcast(ctx context.Context, id chain.Identity) (*chain.Receipt, error) {
	if id == nil {
		return nil, p.fail(errors.New("no signing identity"))
	}
	p.lastError = nil
	if p.stage == StageFailed || p.stage == StageExecuted {
		p.stage = StageParsed
	}
	name := p.backend.Name()

	ops, err := p.backend.BuildTransfers(id, p.instr)
	if err != nil {
		return nil, p.fail(err)
	}

	if p.locker != nil {
		unlock, err := p.locker.Lock(ctx, name, id.Address())
		if err != nil {
			err = &chain.SubmissionError{Cause: fmt.Errorf("acquire submit lock: %w", err)}
			p.publishFailure(ctx, id, err)
			return nil, p.fail(err)
		}
		defer func() {
			// 提交结果已确定，释放不受调用方取消影响
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				logger.Warnf("[%s] release submit lock: %v", name, err)
			}
		}()
	}

	logger.Infof("[%s] submitting %d transfers from %s", name, len(p.instr.Recipients), id.Address())
	receipt, err := p.backend.Submit(ctx, id, ops)
	if err != nil {
		p.publishFailure(ctx, id, err)
		return nil, p.fail(err)
	}
	p.stage = StageExecuted
	logger.Infof("[%s] disbursement complete: %d transfers in %d transaction(s)", name, receipt.Transfers, len(receipt.Signatures))

	ev := p.newEvent(core.EventBroadcastSucceeded, id.Address())
	ev.Transfers = uint32(receipt.Transfers)
	ev.Signatures = receipt.Signatures
	p.publish(ctx, ev)
	return receipt, nil
}

func (p *Pipeline) publishFailure(ctx context.Context, id chain.Identity, err error) {
	ev := p.newEvent(core.EventBroadcastFailed, id.Address())
	ev.Error = err.Error()
	var subErr *chain.SubmissionError
	if errors.As(err, &subErr) {
		ev.Signatures = subErr.Confirmed
		ev.Partial = subErr.Partial()
	}
	p.publish(ctx, ev)
}

func (p *Pipeline) newEvent(kind core.EventKind, address string) *core.Event {
	ev := core.NewEvent(kind, p.backend.Name(), p.network)
	ev.Address = address
	ev.Stage = p.stage.String()
	ev.Recipients = uint32(len(p.instr.Recipients))
	return ev
}

func (p *Pipeline) publish(ctx context.Context, ev *core.Event) {
	if p.sink == nil {
		return
	}
	if err := p.sink.Publish(ctx, ev); err != nil {
		logger.Warnf("[%s] publish %s event: %v", ev.Chain, core.EventKind(ev.Kind), err)
	}
}
