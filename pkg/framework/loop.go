package framework

import (
	"context"
	"log"
	"time"

	"github.com/golang/glog"
)

// DefaultMinPeriod is used when Loop.MinPeriod is not set.
const DefaultMinPeriod = 50 * time.Millisecond

// Loop runs controllers back to back. Every iteration runs all
// controllers by priority level and lasts at least MinPeriod.
type Loop struct {
	MinPeriod time.Duration

	controllers [PriorityLevels][]Controller
	runners     []Runnable

	iteration  uint64
	lastPeriod time.Duration
}

// LoopAdder provides specific logic to add components to loop.
type LoopAdder interface {
	AddToLoop(*Loop)
}

type loopIteration struct {
	ctx           context.Context
	time          time.Time
	seq           uint64
	lastPeriod    time.Duration
	priorityLevel int
	messages      messageList
}

type messageList struct {
	head *messageItem
	tail *messageItem
}

type messageItem struct {
	msg  Message
	next *messageItem
}

func (l *messageList) append(item *messageItem) {
	if l.head == nil {
		l.head = item
	} else {
		l.tail.next = item
	}
	l.tail = item
}

func (l *messageList) splice(src *messageList) {
	l.head, l.tail, src.head, src.tail = src.head, src.tail, nil, nil
}

func (l *messageList) concat(lst *messageList) {
	if l.head == nil {
		l.head = lst.head
	} else {
		l.tail.next = lst.head
	}
	if lst.head != nil {
		l.tail = lst.tail
	}
}

// NewLoop creates a Loop.
func NewLoop() *Loop {
	return &Loop{MinPeriod: DefaultMinPeriod}
}

// Add adds LoopAdders.
func (l *Loop) Add(adders ...LoopAdder) *Loop {
	for _, adder := range adders {
		adder.AddToLoop(l)
	}
	return l
}

// AddController registers controllers to the loop. Controllers
// implementing Runnable are also started in background by Run.
func (l *Loop) AddController(priorityLevel int, ctls ...Controller) *Loop {
	l.controllers[priorityLevel] = append(l.controllers[priorityLevel], ctls...)
	for _, ctl := range ctls {
		if runner, ok := ctl.(Runnable); ok {
			l.runners = append(l.runners, runner)
		}
	}
	return l
}

// AddRunnable adds Runnable implementions.
func (l *Loop) AddRunnable(runnables ...Runnable) *Loop {
	l.runners = append(l.runners, runnables...)
	return l
}

// Run implements Runnable. It iterates until ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	runnerCtx, cancel := context.WithCancel(ctx)
	runner := NewRunnerWith(runnerCtx)
	runner.Go(l.runners...)
	defer func() {
		cancel()
		if err := runner.Wait(); err != nil {
			glog.Errorf("loop runners: %v", err)
		}
	}()

	for {
		if err := l.Iterate(ctx); err != nil {
			return err
		}
	}
}

// RunOrFail is intended to be used in main to run the loop until
// interrupted by a signal.
func (l *Loop) RunOrFail() {
	if err := NewRunner().HandleSignals().Go(l).Wait(); err != nil {
		log.Fatalln(err)
	}
}

// Iterate runs exactly one iteration and waits until MinPeriod has
// elapsed since it started. Messages added during the iteration are
// discarded when it ends. It only fails when ctx is done.
func (l *Loop) Iterate(ctx context.Context) error {
	iter := &loopIteration{
		ctx:        ctx,
		time:       time.Now(),
		seq:        l.iteration,
		lastPeriod: l.lastPeriod,
	}
	for i := 0; i < PriorityLevels; i++ {
		iter.priorityLevel = i
		runControllers(iter, l.controllers[i])
	}
	err := sleepUntil(ctx, iter.time.Add(l.minPeriod()))
	l.iteration++
	l.lastPeriod = time.Since(iter.time)
	return err
}

func (l *Loop) minPeriod() time.Duration {
	if l.MinPeriod > 0 {
		return l.MinPeriod
	}
	return DefaultMinPeriod
}

func sleepUntil(ctx context.Context, deadline time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d := time.Until(deadline)
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (t *loopIteration) Context() context.Context {
	return t.ctx
}

func (t *loopIteration) Time() time.Time {
	return t.time
}

func (t *loopIteration) PriorityLevel() int {
	return t.priorityLevel
}

func (t *loopIteration) Iteration() uint64 {
	return t.seq
}

func (t *loopIteration) LastPeriod() time.Duration {
	return t.lastPeriod
}

func (t *loopIteration) Messages() MessageStore {
	return t
}

// MessageStore implementations

type messageContext struct {
	iter  *loopIteration
	item  *messageItem
	taken bool
	stop  bool
}

func (c *messageContext) CurrentMessage() Message     { return c.item.msg }
func (c *messageContext) MessageTaken()               { c.taken = true }
func (c *messageContext) StopProcessing()             { c.stop = true }
func (c *messageContext) AddMessages(msgs ...Message) { c.iter.AddMessages(msgs...) }

func (t *loopIteration) ProcessMessages(proc MessageProcessor) {
	var msgs, remains messageList
	msgs.splice(&t.messages)
	for msgs.head != nil {
		mctx := &messageContext{iter: t, item: msgs.head}
		msgs.head = msgs.head.next
		mctx.item.next = nil
		proc.ProcessMessage(mctx)
		if !mctx.taken {
			remains.append(mctx.item)
		}
		if mctx.stop {
			remains.concat(&msgs)
			break
		}
	}
	remains.concat(&t.messages)
	t.messages = remains
}

func (t *loopIteration) AddMessages(msgs ...Message) {
	for _, msg := range msgs {
		t.messages.append(&messageItem{msg: msg})
	}
}

func runControllers(iter *loopIteration, ctls []Controller) {
	for _, ctl := range ctls {
		if err := ctl.Control(iter); err != nil {
			glog.Errorf("controller error: %v", err)
		}
	}
}
