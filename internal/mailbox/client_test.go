package mailbox

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"mailboxgw/internal/model"
	"mailboxgw/internal/protocol"
	"mailboxgw/internal/storage"
	"mailboxgw/internal/testutil"
)

func newTestClient(t *testing.T, opts ...Option) (*Client, *testutil.CountingStore) {
	t.Helper()
	store := testutil.NewCountingStore()
	return NewClient(store, protocol.NewEDNEncoder(), opts...), store
}

// writeRegion 模拟后端 worker 在某区域写入对象
func writeRegion(t *testing.T, c *Client, region Region, session, id string, body string) {
	t.Helper()
	key, err := c.Scheme().Path(region, session, id)
	if err != nil {
		t.Fatalf("Path() error = %v", err)
	}
	if err := c.Store().Put(context.Background(), key, []byte(body)); err != nil {
		t.Fatalf("Put(%s) error = %v", key, err)
	}
}

func TestClient_SubmitThenPending(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	res, err := c.Submit(ctx, "b1", "")
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if res.Status != "submitted" || res.BundleID != "b1" {
		t.Errorf("Submit() = %+v", res)
	}
	if !strings.HasPrefix(res.SessionID, "gateway-session-") {
		t.Errorf("SessionID = %q, want gateway-session- prefix", res.SessionID)
	}
	if !strings.HasPrefix(res.RequestID, "req-") {
		t.Errorf("RequestID = %q, want req- prefix", res.RequestID)
	}
	wantPath := fmt.Sprintf("memory://mailbox/requests/%s/%s.edn", res.SessionID, res.RequestID)
	if res.GCSPath != wantPath {
		t.Errorf("GCSPath = %q, want %q", res.GCSPath, wantPath)
	}

	status, err := c.CheckStatus(ctx, res.SessionID, res.RequestID)
	if err != nil {
		t.Fatalf("CheckStatus() error = %v", err)
	}
	if status.State != StatePending {
		t.Errorf("State = %q, want pending", status.State)
	}
	if status.Message != "Request is still being processed" {
		t.Errorf("Message = %q", status.Message)
	}
}

func TestClient_SubmitWritesRequestMessage(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c, store := newTestClient(t, WithClock(func() time.Time { return fixed }))

	res, err := c.Submit(context.Background(), "bundle-42", "my-session")
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if res.SessionID != "my-session" {
		t.Errorf("SessionID = %q, want my-session", res.SessionID)
	}
	if !strings.HasPrefix(res.RequestID, fmt.Sprintf("req-%d-", fixed.UnixMilli())) {
		t.Errorf("RequestID = %q, want millisecond timestamp prefix", res.RequestID)
	}

	key, _ := c.Scheme().Path(RegionRequests, res.SessionID, res.RequestID)
	data, err := store.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	msg, err := protocol.NewEDNEncoder().Decode(data)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	if msg.Type != model.MessageTypeRequest {
		t.Errorf("Type = %q, want request", msg.Type)
	}
	if msg.SchemaVersion != "1.0.0" {
		t.Errorf("SchemaVersion = %q", msg.SchemaVersion)
	}
	if msg.From != "my-session" || msg.SessionID != "my-session" || msg.MessageID != res.RequestID {
		t.Errorf("addressing = from %q session %q id %q", msg.From, msg.SessionID, msg.MessageID)
	}
	if msg.Payload.BundleID != "bundle-42" || msg.Payload.Priority != model.PriorityNormal {
		t.Errorf("Payload = %+v", msg.Payload)
	}
	if !msg.Timestamp.Equal(fixed) {
		t.Errorf("Timestamp = %v, want %v", msg.Timestamp, fixed)
	}
	if store.Puts() != 1 {
		t.Errorf("Puts = %d, want exactly 1", store.Puts())
	}
}

func TestClient_SubmitValidation(t *testing.T) {
	c, store := newTestClient(t)

	if _, err := c.Submit(context.Background(), "", ""); !IsValidation(err) {
		t.Errorf("empty bundle: err = %v, want ValidationError", err)
	}
	if _, err := c.Submit(context.Background(), "b1", "../escape"); !IsValidation(err) {
		t.Errorf("traversal session: err = %v, want ValidationError", err)
	}
	if store.Calls() != 0 {
		t.Errorf("store calls = %d, want 0", store.Calls())
	}
}

func TestClient_SubmitUploadFailure(t *testing.T) {
	c, store := newTestClient(t)
	store.FailPuts(true)

	_, err := c.Submit(context.Background(), "b1", "")
	if !errors.Is(err, ErrUploadFailed) {
		t.Fatalf("err = %v, want ErrUploadFailed", err)
	}
	if keys := store.Keys(t); len(keys) != 0 {
		t.Errorf("keys after failed upload = %v, want none", keys)
	}
}

func TestClient_SubmitTwiceDistinct(t *testing.T) {
	c, store := newTestClient(t)
	ctx := context.Background()

	a, err := c.Submit(ctx, "b1", "")
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	b, err := c.Submit(ctx, "b1", "")
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	if a.RequestID == b.RequestID {
		t.Errorf("request ids collide: %q", a.RequestID)
	}
	if a.GCSPath == b.GCSPath {
		t.Errorf("paths collide: %q", a.GCSPath)
	}
	if keys := store.Keys(t); len(keys) != 2 {
		t.Errorf("stored objects = %d, want 2", len(keys))
	}
}

func TestClient_ConcurrentSubmitSameSession(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c, store := newTestClient(t, WithClock(func() time.Time { return fixed }))

	const n = 50
	var wg sync.WaitGroup
	ids := make([]string, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := c.Submit(context.Background(), "b1", "shared")
			errs[i] = err
			if err == nil {
				ids[i] = res.RequestID
			}
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool, n)
	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("Submit() error = %v", errs[i])
		}
		if seen[ids[i]] {
			t.Fatalf("duplicate request id %q within one millisecond", ids[i])
		}
		seen[ids[i]] = true
	}
	if keys := store.Keys(t); len(keys) != n {
		t.Errorf("stored objects = %d, want %d", len(keys), n)
	}
}

func TestClient_CheckStatusDecisionTable(t *testing.T) {
	tests := []struct {
		name    string
		regions []Region
		want    State
	}{
		{"nothing", nil, StateNotFound},
		{"request only", []Region{RegionRequests}, StatePending},
		{"processed only", []Region{RegionProcessed}, StateProcessed},
		{"response only", []Region{RegionResponses}, StateCompleted},
		{"request and processed", []Region{RegionRequests, RegionProcessed}, StatePending},
		{"response and processed", []Region{RegionResponses, RegionProcessed}, StateCompleted},
		{"response and request", []Region{RegionResponses, RegionRequests}, StateCompleted},
		{"all three", []Region{RegionRequests, RegionResponses, RegionProcessed}, StateCompleted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t)
			for _, r := range tt.regions {
				writeRegion(t, c, r, "s1", "req-1", "body-"+string(r))
			}

			got, err := c.CheckStatus(context.Background(), "s1", "req-1")
			if err != nil {
				t.Fatalf("CheckStatus() error = %v", err)
			}
			if got.State != tt.want {
				t.Errorf("State = %q, want %q", got.State, tt.want)
			}
			if tt.want == StateCompleted {
				if string(got.Response) != "body-responses" {
					t.Errorf("Response = %q, want response body", got.Response)
				}
				if got.ResponsePath != "memory://mailbox/responses/s1/req-1.edn" {
					t.Errorf("ResponsePath = %q", got.ResponsePath)
				}
			}
		})
	}
}

func TestClient_CheckStatusEmptyResponseIsCompleted(t *testing.T) {
	c, _ := newTestClient(t)
	writeRegion(t, c, RegionResponses, "s1", "req-1", "")

	got, err := c.CheckStatus(context.Background(), "s1", "req-1")
	if err != nil {
		t.Fatalf("CheckStatus() error = %v", err)
	}
	if got.State != StateCompleted {
		t.Errorf("State = %q, want completed", got.State)
	}
}

func TestClient_CheckStatusStoreFailure(t *testing.T) {
	c, store := newTestClient(t)
	store.FailGets(true)

	_, err := c.CheckStatus(context.Background(), "s1", "req-1")
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("err = %v, want ErrStoreUnavailable", err)
	}
}

func TestClient_EndToEnd(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	res, err := c.Submit(ctx, "b1", "")
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	status, err := c.CheckStatus(ctx, res.SessionID, res.RequestID)
	if err != nil || status.State != StatePending {
		t.Fatalf("CheckStatus() = %+v, %v; want pending", status, err)
	}

	writeRegion(t, c, RegionResponses, res.SessionID, res.RequestID, "ok")

	status, err = c.CheckStatus(ctx, res.SessionID, res.RequestID)
	if err != nil {
		t.Fatalf("CheckStatus() error = %v", err)
	}
	if status.State != StateCompleted || string(status.Response) != "ok" {
		t.Errorf("CheckStatus() = %q %q, want completed ok", status.State, status.Response)
	}
}

func TestClient_ListRequests(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	empty, err := c.ListRequests(ctx)
	if err != nil {
		t.Fatalf("ListRequests() error = %v", err)
	}
	if empty.Count != 0 || len(empty.Requests) != 0 {
		t.Errorf("empty mailbox = %+v", empty)
	}

	submitted := map[string]string{}
	for _, session := range []string{"s1", "s2", "s3"} {
		res, err := c.Submit(ctx, "b-"+session, session)
		if err != nil {
			t.Fatalf("Submit() error = %v", err)
		}
		submitted[res.RequestID] = session
	}
	// 占位文件和其他扩展名不计入
	for _, key := range []string{"mailbox/requests/.gitkeep", "mailbox/requests/s1/.gitkeep", "mailbox/requests/s1/notes.txt"} {
		if err := c.Store().Put(ctx, key, []byte("x")); err != nil {
			t.Fatal(err)
		}
	}

	list, err := c.ListRequests(ctx)
	if err != nil {
		t.Fatalf("ListRequests() error = %v", err)
	}
	if list.Count != 3 || len(list.Requests) != 3 {
		t.Fatalf("ListRequests() count = %d, entries = %d; want 3", list.Count, len(list.Requests))
	}
	for _, e := range list.Requests {
		if submitted[e.RequestID] != e.SessionID {
			t.Errorf("entry %+v does not match a submission", e)
		}
		key, err := c.Scheme().Path(RegionRequests, e.SessionID, e.RequestID)
		if err != nil {
			t.Fatalf("Path() error = %v", err)
		}
		if c.Store().URL(key) != e.GCSPath {
			t.Errorf("round trip path = %q, want %q", c.Store().URL(key), e.GCSPath)
		}
	}
}

func TestClient_ListRequestsStoreFailure(t *testing.T) {
	c, store := newTestClient(t)
	store.FailLists(true)

	if _, err := c.ListRequests(context.Background()); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("err = %v, want ErrStoreUnavailable", err)
	}
}

func TestClient_ListResponses(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	writeRegion(t, c, RegionResponses, "s1", "req-1", "a")
	writeRegion(t, c, RegionResponses, "s1", "req-2", "b")
	writeRegion(t, c, RegionResponses, "s10", "req-3", "c")
	writeRegion(t, c, RegionRequests, "s1", "req-4", "d")

	list, err := c.ListResponses(ctx, "s1")
	if err != nil {
		t.Fatalf("ListResponses() error = %v", err)
	}
	if list.SessionID != "s1" || list.Count != 2 {
		t.Fatalf("ListResponses() = %+v, want 2 entries for s1", list)
	}
	got := map[string]bool{}
	for _, e := range list.Responses {
		got[e.RequestID] = true
	}
	if !got["req-1"] || !got["req-2"] {
		t.Errorf("responses = %+v", list.Responses)
	}

	none, err := c.ListResponses(ctx, "unknown")
	if err != nil {
		t.Fatalf("ListResponses() error = %v", err)
	}
	if none.Count != 0 {
		t.Errorf("unknown session count = %d, want 0", none.Count)
	}
}

func TestClient_WithRoot(t *testing.T) {
	c, store := newTestClient(t, WithRoot("/tenant/"))

	res, err := c.Submit(context.Background(), "b1", "s1")
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	want := "memory://tenant/mailbox/requests/s1/" + res.RequestID + ".edn"
	if res.GCSPath != want {
		t.Errorf("GCSPath = %q, want %q", res.GCSPath, want)
	}

	list, err := c.ListRequests(context.Background())
	if err != nil {
		t.Fatalf("ListRequests() error = %v", err)
	}
	if list.Count != 1 {
		t.Errorf("count = %d, want 1 (keys %v)", list.Count, store.Keys(t))
	}
}

func TestRequest_DecodesSubmittedMessage(t *testing.T) {
	for _, enc := range []protocol.MessageEncoder{protocol.NewEDNEncoder(), protocol.NewJSONEncoder()} {
		c := NewClient(testutil.NewCountingStore(), enc)
		ctx := context.Background()

		sub, err := c.Submit(ctx, "bundle-7", "s1")
		if err != nil {
			t.Fatalf("%s Submit() error = %v", enc.EncodingType(), err)
		}

		msg, err := c.Request(ctx, "s1", sub.RequestID)
		if err != nil {
			t.Fatalf("%s Request() error = %v", enc.EncodingType(), err)
		}
		if msg.MessageID != sub.RequestID || msg.SessionID != "s1" || msg.Payload.BundleID != "bundle-7" {
			t.Errorf("%s Request() = %+v", enc.EncodingType(), msg)
		}
		if msg.Type != model.MessageTypeRequest || msg.Payload.Priority != model.PriorityNormal {
			t.Errorf("%s type/priority = %q/%q", enc.EncodingType(), msg.Type, msg.Payload.Priority)
		}
	}
}

func TestRequest_Errors(t *testing.T) {
	c, store := newTestClient(t)
	ctx := context.Background()

	if _, err := c.Request(ctx, "s1", "req-missing"); !storage.IsNotFound(err) {
		t.Errorf("missing request err = %v, want not found", err)
	}

	writeRegion(t, c, RegionRequests, "s1", "req-bad", "{:timestamp")
	if _, err := c.Request(ctx, "s1", "req-bad"); err == nil || storage.IsNotFound(err) {
		t.Errorf("corrupt request err = %v, want decode error", err)
	}

	store.FailGets(true)
	if _, err := c.Request(ctx, "s1", "req-1"); !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("store failure err = %v, want ErrStoreUnavailable", err)
	}
}
