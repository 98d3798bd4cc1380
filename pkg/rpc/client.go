package rpc

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	cmap "github.com/orcaman/concurrent-map/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/omnirt/shmq/api"
	"github.com/omnirt/shmq/internal/logx"
	"github.com/omnirt/shmq/pkg/queue"
)

var _ api.Caller = (*Client)(nil)

// ClientOptions configures Dial. The zero value picks defaults.
type ClientOptions struct {
	// QueueSize must match the serving side's ServerOptions.QueueSize.
	// Default 64.
	QueueSize uint64
	// PollInterval is how long the receive loop sleeps when the
	// response queue is empty. Default 50µs.
	PollInterval time.Duration
	// DialTimeout bounds how long Dial keeps retrying the attach while
	// the server has not created the queues yet. Default 5s.
	DialTimeout time.Duration
}

func (o *ClientOptions) withDefaults() {
	if o.QueueSize == 0 {
		o.QueueSize = 64
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 50 * time.Microsecond
	}
	if o.DialTimeout <= 0 {
		o.DialTimeout = 5 * time.Second
	}
}

var (
	// ErrClientClosed is returned by Call after Close.
	ErrClientClosed = errors.New("rpc: client closed")
	// ErrRemote wraps application errors reported by the server.
	ErrRemote = errors.New("rpc: remote error")
)

// Client attaches to a channel's queues and correlates responses to
// in-flight calls by sequence number. Call is safe for concurrent use:
// the SPSC contract is honored by funneling all queue traffic through
// one sender and one receiver goroutine.
type Client struct {
	channel string
	opts    ClientOptions

	req  queue.ShmQueue[Frame]
	resp queue.ShmQueue[Frame]

	seq     atomic.Uint64
	pending cmap.ConcurrentMap[uint64, chan Frame]
	sendCh  chan Frame

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	closeOnce sync.Once
}

// Dial attaches to the channel's queues, retrying with exponential
// backoff while the server has not created them yet. The create-or-attach
// negotiation lives in the queue; the waiting lives here, outside it.
func Dial(channel string, opts ClientOptions) (*Client, error) {
	opts.withDefaults()

	c := &Client{
		channel: channel,
		opts:    opts,
		pending: cmap.NewWithCustomShardingFunction[uint64, chan Frame](shardSeq),
		sendCh:  make(chan Frame, opts.QueueSize),
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 5 * time.Millisecond
	bo.MaxInterval = 250 * time.Millisecond
	bo.MaxElapsedTime = opts.DialTimeout

	attach := func() error {
		if !c.req.Init(ReqQueueName(channel), opts.QueueSize, false, false) {
			return fmt.Errorf("rpc: attach request queue for channel %q", channel)
		}
		if !c.resp.Init(RespQueueName(channel), opts.QueueSize, false, false) {
			c.req.Close()
			return fmt.Errorf("rpc: attach response queue for channel %q", channel)
		}
		return nil
	}
	if err := backoff.Retry(attach, bo); err != nil {
		c.cancel()
		return nil, err
	}

	c.wg.Add(2)
	go c.sendLoop()
	go c.recvLoop()
	logx.Infof("rpc client %q: attached, queue size %d", channel, opts.QueueSize)
	return c, nil
}

// shardSeq spreads sequence numbers over the pending map's shards.
func shardSeq(seq uint64) uint32 {
	seq ^= seq >> 33
	seq *= 0xff51afd7ed558ccd
	return uint32(seq ^ seq>>33)
}

// Call invokes method with req serialized as the request payload and, on
// success, deserializes the response payload into out (which may be nil
// to discard it). It honors ctx cancellation and deadline; a canceled
// call abandons its pending slot and the late response is dropped by the
// receive loop.
func (c *Client) Call(ctx context.Context, method string, req any, out any) (err error) {
	tracer := otel.Tracer("github.com/omnirt/shmq/pkg/rpc")
	ctx, span := tracer.Start(ctx, "shmq.rpc/"+method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("rpc.channel", c.channel)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(otelcodes.Error, err.Error())
		}
		span.End()
	}()

	seq := c.seq.Add(1)
	f := Frame{Seq: seq, Kind: kindRequest}
	if err := f.setMethod(method); err != nil {
		return err
	}
	if err := f.encodePayload(req); err != nil {
		return err
	}

	replyCh := make(chan Frame, 1)
	c.pending.Set(seq, replyCh)
	defer c.pending.Remove(seq)

	select {
	case c.sendCh <- f:
	case <-ctx.Done():
		return ctx.Err()
	case <-c.ctx.Done():
		return ErrClientClosed
	}

	select {
	case reply := <-replyCh:
		return decodeReply(&reply, out)
	case <-ctx.Done():
		return ctx.Err()
	case <-c.ctx.Done():
		return ErrClientClosed
	}
}

func decodeReply(f *Frame, out any) error {
	if f.Status == statusOK {
		return f.decodePayload(out)
	}
	var we wireError
	if err := f.decodePayload(&we); err != nil || we.Error == "" {
		return fmt.Errorf("%w: status %d", ErrRemote, f.Status)
	}
	return fmt.Errorf("%w: %s", ErrRemote, we.Error)
}

// sendLoop is the single producer of the request queue.
func (c *Client) sendLoop() {
	defer c.wg.Done()
	for {
		select {
		case f := <-c.sendCh:
			for !c.req.Enqueue(f) {
				select {
				case <-c.ctx.Done():
					return
				default:
					time.Sleep(c.opts.PollInterval)
				}
			}
		case <-c.ctx.Done():
			return
		}
	}
}

// recvLoop is the single consumer of the response queue. Responses whose
// call already gave up are dropped.
func (c *Client) recvLoop() {
	defer c.wg.Done()
	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}
		var f Frame
		if !c.resp.Dequeue(&f) {
			time.Sleep(c.opts.PollInterval)
			continue
		}
		if ch, ok := c.pending.Pop(f.Seq); ok {
			ch <- f
		} else {
			logx.Debugf("rpc client %q: dropping stray response seq %d", c.channel, f.Seq)
		}
	}
}

// Close stops the loops and unmaps both queues; as an attacher it never
// unlinks them. Idempotent. In-flight calls fail with ErrClientClosed.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.cancel()
		c.wg.Wait()
		c.req.Close()
		c.resp.Close()
		logx.Infof("rpc client %q: closed", c.channel)
	})
}
