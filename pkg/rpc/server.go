package rpc

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	wqueue "github.com/Workiva/go-datastructures/queue"
	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/panjf2000/ants/v2"

	"github.com/omnirt/shmq/api"
	"github.com/omnirt/shmq/internal/logx"
	"github.com/omnirt/shmq/pkg/queue"
)

// Handler serves one method: it receives the raw request payload and
// returns a value to serialize into the response, or an error that
// travels back as an application-level failure.
type Handler = api.Handler

// ServerOptions configures a Server. The zero value picks defaults.
type ServerOptions struct {
	// QueueSize is the element capacity of each direction's queue.
	// Clients must attach with the same value. Default 64.
	QueueSize uint64
	// PollInterval is how long the poll loop sleeps when the request
	// queue is empty. Default 50µs.
	PollInterval time.Duration
	// Workers caps the handler goroutine pool. Default NumCPU.
	Workers int
}

func (o *ServerOptions) withDefaults() {
	if o.QueueSize == 0 {
		o.QueueSize = 64
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 50 * time.Microsecond
	}
	if o.Workers <= 0 {
		o.Workers = runtime.NumCPU()
	}
}

// ErrServerClosed is returned by Start after Close.
var ErrServerClosed = errors.New("rpc: server closed")

// Server owns the channel's two queues as Creator, consumes requests and
// produces responses.
//
// The queue contract allows exactly one producer and one consumer per
// queue, so the server funnels everything through two dedicated
// goroutines: the poll loop is the sole consumer of the request queue and
// the send loop is the sole producer of the response queue. Handlers run
// in between on a worker pool and never touch shared memory directly.
type Server struct {
	channel string
	opts    ServerOptions

	req  queue.ShmQueue[Frame]
	resp queue.ShmQueue[Frame]

	methods cmap.ConcurrentMap[string, Handler]
	backlog *wqueue.Queue
	pool    *ants.Pool
	replies chan Frame

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	started bool
	closed  bool
}

// NewServer creates both queues for the channel and prepares the worker
// pool. The server does not consume anything until Start.
//
// The server must own both queues as Creator: attaching to queues left
// behind by a crashed server, or shared with a second server on the same
// channel, would add a second consumer to the request queue. NewServer
// fails in that case; stale segments have to be removed first.
func NewServer(channel string, opts ServerOptions) (*Server, error) {
	opts.withDefaults()

	s := &Server{
		channel: channel,
		opts:    opts,
		methods: cmap.New[Handler](),
		backlog: wqueue.New(int64(opts.QueueSize)),
		replies: make(chan Frame, opts.QueueSize),
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	if !s.req.Init(ReqQueueName(channel), opts.QueueSize, false, true) {
		return nil, fmt.Errorf("rpc: create request queue for channel %q", channel)
	}
	if s.req.GetShmState() != api.ShmCreator {
		s.req.Close()
		return nil, fmt.Errorf("rpc: request queue for channel %q already exists", channel)
	}
	if !s.resp.Init(RespQueueName(channel), opts.QueueSize, false, true) {
		s.req.Close()
		return nil, fmt.Errorf("rpc: create response queue for channel %q", channel)
	}
	if s.resp.GetShmState() != api.ShmCreator {
		s.resp.Close()
		s.req.Close()
		return nil, fmt.Errorf("rpc: response queue for channel %q already exists", channel)
	}

	pool, err := ants.NewPool(opts.Workers)
	if err != nil {
		s.req.Close()
		s.resp.Close()
		return nil, fmt.Errorf("rpc: worker pool: %w", err)
	}
	s.pool = pool
	return s, nil
}

// Register binds a handler to a method name. Later registrations replace
// earlier ones; registration is safe while the server runs.
func (s *Server) Register(method string, h Handler) error {
	if len(method) > MaxMethodLen {
		return fmt.Errorf("%w: %q", ErrMethodTooLong, method)
	}
	if h == nil {
		return errors.New("rpc: nil handler")
	}
	s.methods.Set(method, h)
	return nil
}

// Start launches the poll, dispatch and send loops.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrServerClosed
	}
	if s.started {
		return nil
	}
	s.started = true

	s.wg.Add(3)
	go s.pollLoop()
	go s.dispatchLoop()
	go s.sendLoop()
	logx.Infof("rpc server %q: serving with %d workers, queue size %d",
		s.channel, s.opts.Workers, s.opts.QueueSize)
	return nil
}

// pollLoop is the single consumer of the request queue. The queue never
// blocks, so waiting happens here: sleep briefly when the queue is empty.
func (s *Server) pollLoop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}
		var f Frame
		if !s.req.Dequeue(&f) {
			time.Sleep(s.opts.PollInterval)
			continue
		}
		if err := s.backlog.Put(f); err != nil {
			return // disposed during shutdown
		}
	}
}

// dispatchLoop drains the backlog and hands frames to the worker pool.
func (s *Server) dispatchLoop() {
	defer s.wg.Done()
	for {
		items, err := s.backlog.Poll(1, 10*time.Millisecond)
		if err != nil {
			if errors.Is(err, wqueue.ErrTimeout) {
				select {
				case <-s.ctx.Done():
					return
				default:
					continue
				}
			}
			return // disposed
		}
		f := items[0].(Frame)
		if err := s.pool.Submit(func() { s.handle(f) }); err != nil {
			logx.Warnf("rpc server %q: submit: %v", s.channel, err)
			s.reply(f.Seq, statusAppError, wireError{Error: "server overloaded"})
		}
	}
}

func (s *Server) handle(f Frame) {
	if f.Kind != kindRequest {
		logx.Debugf("rpc server %q: ignoring frame kind %d", s.channel, f.Kind)
		return
	}
	method := f.method()
	h, ok := s.methods.Get(method)
	if !ok {
		s.reply(f.Seq, statusNoMethod, wireError{Error: "unknown method: " + method})
		return
	}

	result, err := h(s.ctx, f.payload())
	if err != nil {
		s.reply(f.Seq, statusAppError, wireError{Error: err.Error()})
		return
	}
	s.reply(f.Seq, statusOK, result)
}

func (s *Server) reply(seq uint64, status uint8, v any) {
	out := Frame{Seq: seq, Kind: kindResponse, Status: status}
	if err := out.encodePayload(v); err != nil {
		logx.Warnf("rpc server %q: seq %d: %v", s.channel, seq, err)
		out = Frame{Seq: seq, Kind: kindResponse, Status: statusBadPayload}
		_ = out.encodePayload(wireError{Error: err.Error()})
	}
	select {
	case s.replies <- out:
	case <-s.ctx.Done():
	}
}

// sendLoop is the single producer of the response queue. Responses are
// never dropped: a full queue is retried until the client drains it or
// the server shuts down.
func (s *Server) sendLoop() {
	defer s.wg.Done()
	for {
		select {
		case f := <-s.replies:
			for !s.resp.Enqueue(f) {
				select {
				case <-s.ctx.Done():
					return
				default:
					time.Sleep(s.opts.PollInterval)
				}
			}
		case <-s.ctx.Done():
			return
		}
	}
}

// Close stops the loops, releases the worker pool and unlinks both
// queues. Idempotent.
func (s *Server) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.backlog.Dispose()
	s.wg.Wait()
	s.pool.Release()
	s.req.Close()
	s.resp.Close()
	logx.Infof("rpc server %q: closed", s.channel)
}
