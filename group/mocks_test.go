package group

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/opd-ai/groupdir/config"
	"github.com/opd-ai/groupdir/interfaces"
	"github.com/opd-ai/groupdir/messaging"
	"github.com/opd-ai/groupdir/node"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// MockTimeProvider is a deterministic time provider for testing.
// ---------------------------------------------------------------------------

// MockTimeProvider allows tests to control time deterministically.
type MockTimeProvider struct {
	mu          sync.Mutex
	currentTime time.Time
	ticks       chan time.Time
	intervals   []time.Duration
}

func newMockClock() *MockTimeProvider {
	return &MockTimeProvider{currentTime: testEpoch}
}

// Now returns the mock time.
func (m *MockTimeProvider) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentTime
}

// NewTicker returns a real ticker unless manualTicks was called, in which
// case the ticker fires only when the test sends on the returned channel.
func (m *MockTimeProvider) NewTicker(d time.Duration) *time.Ticker {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.intervals = append(m.intervals, d)
	if m.ticks != nil {
		return &time.Ticker{C: m.ticks}
	}
	return time.NewTicker(d)
}

// manualTicks switches tickers created afterwards to test-driven ticks.
func (m *MockTimeProvider) manualTicks() chan<- time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ticks = make(chan time.Time)
	return m.ticks
}

// tickerIntervals returns the interval of every ticker created so far.
func (m *MockTimeProvider) tickerIntervals() []time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]time.Duration(nil), m.intervals...)
}

// Advance moves the mock time forward by the given duration.
func (m *MockTimeProvider) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.currentTime = m.currentTime.Add(d)
}

// ---------------------------------------------------------------------------
// mockQuerier records requests and answers them through a handler.
// ---------------------------------------------------------------------------

var errMockTransport = errors.New("connection closed")

type mockQuerier struct {
	mu         sync.Mutex
	requests   []*node.Node
	handler    func(req *node.Node) (*node.Node, error)
	ctxHandler func(ctx context.Context, req *node.Node) (*node.Node, error)
}

func (q *mockQuerier) Query(ctx context.Context, req *node.Node) (*node.Node, error) {
	q.mu.Lock()
	q.requests = append(q.requests, req)
	handler, ctxHandler := q.handler, q.ctxHandler
	q.mu.Unlock()

	switch {
	case ctxHandler != nil:
		return ctxHandler(ctx, req)
	case handler != nil:
		return handler(req)
	default:
		return node.New("iq", node.Attrs{"type": "result"}), nil
	}
}

// setContextHandler answers requests with a handler that sees the query
// context. It takes precedence over setHandler.
func (q *mockQuerier) setContextHandler(h func(ctx context.Context, req *node.Node) (*node.Node, error)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.ctxHandler = h
}

func (q *mockQuerier) setHandler(h func(req *node.Node) (*node.Node, error)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handler = h
}

func (q *mockQuerier) count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.requests)
}

func (q *mockQuerier) last() *node.Node {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.requests) == 0 {
		return nil
	}
	return q.requests[len(q.requests)-1]
}

func (q *mockQuerier) all() []*node.Node {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]*node.Node(nil), q.requests...)
}

// ---------------------------------------------------------------------------
// recordingEmitter captures emitted events.
// ---------------------------------------------------------------------------

type emittedEvent struct {
	name    string
	payload any
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []emittedEvent
}

func (e *recordingEmitter) Emit(name string, payload any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, emittedEvent{name: name, payload: payload})
}

func (e *recordingEmitter) named(name string) []emittedEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []emittedEvent
	for _, ev := range e.events {
		if ev.name == name {
			out = append(out, ev)
		}
	}
	return out
}

// ---------------------------------------------------------------------------
// mockDirtyCleaner records acknowledged dirty categories.
// ---------------------------------------------------------------------------

type mockDirtyCleaner struct {
	mu         sync.Mutex
	categories []string
	err        error
}

func (c *mockDirtyCleaner) CleanDirtyBits(_ context.Context, category string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.categories = append(c.categories, category)
	return c.err
}

func (c *mockDirtyCleaner) cleaned() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.categories...)
}

// ---------------------------------------------------------------------------
// mockUpserter stores upserted messages.
// ---------------------------------------------------------------------------

type mockUpserter struct {
	mu       sync.Mutex
	messages []*messaging.WebMessage
	types    []messaging.UpsertType
	err      error
}

func (u *mockUpserter) UpsertMessage(_ context.Context, msg *messaging.WebMessage, typ messaging.UpsertType) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.err != nil {
		return u.err
	}
	u.messages = append(u.messages, msg)
	u.types = append(u.types, typ)
	return nil
}

func (u *mockUpserter) stored() []*messaging.WebMessage {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]*messaging.WebMessage(nil), u.messages...)
}

// ---------------------------------------------------------------------------
// mockRouter keeps registered notification handlers.
// ---------------------------------------------------------------------------

type mockRouter struct {
	mu       sync.Mutex
	handlers map[string]interfaces.NotificationHandler
}

func (r *mockRouter) RegisterHandler(route string, h interfaces.NotificationHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.handlers == nil {
		r.handlers = make(map[string]interfaces.NotificationHandler)
	}
	r.handlers[route] = h
}

func (r *mockRouter) deliver(route string, n *node.Node) bool {
	r.mu.Lock()
	h := r.handlers[route]
	r.mu.Unlock()
	if h == nil {
		return false
	}
	h(n)
	return true
}

type staticCredentials string

func (c staticCredentials) SelfID() string { return string(c) }

// ---------------------------------------------------------------------------
// Directory fixture.
// ---------------------------------------------------------------------------

type testDirectory struct {
	*Directory
	querier  *mockQuerier
	emitter  *recordingEmitter
	dirty    *mockDirtyCleaner
	upserter *mockUpserter
	router   *mockRouter
	clock    *MockTimeProvider
}

func newTestDirectory(t *testing.T, cfg *config.Config) *testDirectory {
	t.Helper()

	td := &testDirectory{
		querier:  &mockQuerier{},
		emitter:  &recordingEmitter{},
		dirty:    &mockDirtyCleaner{},
		upserter: &mockUpserter{},
		router:   &mockRouter{},
		clock:    newMockClock(),
	}
	d, err := NewDirectory(cfg, Dependencies{
		Querier:     td.querier,
		Events:      td.emitter,
		Router:      td.router,
		DirtyBits:   td.dirty,
		Messages:    td.upserter,
		Credentials: staticCredentials(testSelfID),
		Clock:       td.clock,
	})
	require.NoError(t, err)
	td.Directory = d
	t.Cleanup(d.Stop)
	return td
}

// ---------------------------------------------------------------------------
// Response builders.
// ---------------------------------------------------------------------------

func resultIQ(children ...*node.Node) *node.Node {
	return node.New("iq", node.Attrs{"type": "result", "from": "g.us"}, children...)
}

func groupNode(id, subject string, participants ...string) *node.Node {
	children := make([]*node.Node, 0, len(participants))
	for _, p := range participants {
		children = append(children, node.New("participant", node.Attrs{"jid": p}))
	}
	return node.New("group", node.Attrs{
		"id":       id,
		"subject":  subject,
		"creation": "1700000000",
	}, children...)
}

func errorIQ(code, text string) *node.Node {
	return node.New("iq", node.Attrs{"type": "error"},
		node.New("error", node.Attrs{"code": code, "text": text}))
}

// metadataHandler answers metadata queries with a group named after the id.
func metadataHandler(req *node.Node) (*node.Node, error) {
	id := req.Attr("to")
	return resultIQ(groupNode(id, "group "+id, testAdminID)), nil
}
