package client

import (
	"io"
	"log"
	"sync"
	"time"
)

const (
	defaultInitialRTO = 200 * time.Millisecond
	defaultMinRTO     = 100 * time.Millisecond
	defaultMaxRTO     = 2 * time.Second
	defaultMaxRetries = 3
)

// pendingRequest is one unacknowledged reliable send. The packed bytes are
// kept so every retransmission is byte-identical, sequence number included.
type pendingRequest struct {
	seq     uint32
	data    []byte
	timer   *time.Timer
	retries int
	rto     time.Duration
	nacked  bool
	sentAt  time.Time
}

// retransmitter adds selective reliability on top of the fire-and-forget
// socket: it retries unacknowledged requests on an adaptive timeout and
// reports the ones the server definitively rejected or that ran out of
// retries. RTT is sampled only from requests answered on their first
// transmission, so a retransmission can never pair with the wrong reply
// (Karn's algorithm).
type retransmitter struct {
	mu      sync.Mutex
	out     io.Writer
	pending map[uint32]*pendingRequest

	srtt      time.Duration
	rttvar    time.Duration
	hasSample bool

	initialRTO time.Duration
	minRTO     time.Duration
	maxRTO     time.Duration
	maxRetries int

	// onFail runs without the lock held when a request is abandoned.
	onFail func(seq uint32)
}

func newRetransmitter(out io.Writer, onFail func(uint32)) *retransmitter {
	if onFail == nil {
		onFail = func(uint32) {}
	}
	return &retransmitter{
		out:        out,
		pending:    make(map[uint32]*pendingRequest),
		initialRTO: defaultInitialRTO,
		minRTO:     defaultMinRTO,
		maxRTO:     defaultMaxRTO,
		maxRetries: defaultMaxRetries,
		onFail:     onFail,
	}
}

// rto returns the current retransmission timeout: SRTT + 4*RTTVAR clamped
// to [minRTO, maxRTO], or the fixed initial value before any RTT sample.
func (r *retransmitter) rto() time.Duration {
	if !r.hasSample {
		return r.initialRTO
	}
	rto := r.srtt + 4*r.rttvar
	if rto < r.minRTO {
		rto = r.minRTO
	}
	if rto > r.maxRTO {
		rto = r.maxRTO
	}
	return rto
}

// track sends data and arms the retry timer for it.
func (r *retransmitter) track(seq uint32, data []byte) {
	r.mu.Lock()
	p := &pendingRequest{
		seq:    seq,
		data:   data,
		rto:    r.rto(),
		sentAt: time.Now(),
	}
	r.pending[seq] = p
	p.timer = time.AfterFunc(p.rto, func() { r.onTimeout(seq) })
	r.mu.Unlock()

	r.out.Write(data)
}

func (r *retransmitter) onTimeout(seq uint32) {
	r.mu.Lock()
	p, ok := r.pending[seq]
	if !ok {
		r.mu.Unlock()
		return
	}

	p.retries++
	if p.retries > r.maxRetries {
		delete(r.pending, seq)
		r.mu.Unlock()
		log.Printf("[CLIENT] request seq %d abandoned after %d retries", seq, r.maxRetries)
		r.onFail(seq)
		return
	}

	p.rto *= 2
	if p.rto > r.maxRTO {
		p.rto = r.maxRTO
	}
	data := p.data
	p.timer = time.AfterFunc(p.rto, func() { r.onTimeout(seq) })
	r.mu.Unlock()

	r.out.Write(data)
}

// ack resolves a request positively. The RTT sample is taken only when the
// request was never retransmitted.
func (r *retransmitter) ack(seq uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.pending[seq]
	if !ok {
		return
	}
	p.timer.Stop()
	delete(r.pending, seq)

	if p.retries > 0 {
		return
	}
	rtt := time.Since(p.sentAt)
	if !r.hasSample {
		r.srtt = rtt
		r.rttvar = rtt / 2
		r.hasSample = true
		return
	}
	diff := r.srtt - rtt
	if diff < 0 {
		diff = -diff
	}
	r.rttvar = (3*r.rttvar + diff) / 4
	r.srtt = (7*r.srtt + rtt) / 8
}

// nack resets the retry budget and forces an immediate identical resend,
// giving the request one more full round. A second NACK for the same
// sequence number resolves it as failed; without that bound the server's
// cached-outcome replay would keep the exchange alive forever.
func (r *retransmitter) nack(seq uint32) {
	r.mu.Lock()
	p, ok := r.pending[seq]
	if !ok {
		r.mu.Unlock()
		return
	}
	p.timer.Stop()

	if p.nacked {
		delete(r.pending, seq)
		r.mu.Unlock()
		r.onFail(seq)
		return
	}

	p.nacked = true
	p.retries = 0
	p.rto = r.rto()
	p.sentAt = time.Now()
	data := p.data
	p.timer = time.AfterFunc(p.rto, func() { r.onTimeout(seq) })
	r.mu.Unlock()

	r.out.Write(data)
}

// inFlight returns the number of unresolved requests.
func (r *retransmitter) inFlight() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// close stops every retry timer.
func (r *retransmitter) close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for seq, p := range r.pending {
		p.timer.Stop()
		delete(r.pending, seq)
	}
}
