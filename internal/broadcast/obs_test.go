package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/uplink-switcher/internal/state"
)

// ─── Fake OBS ───────────────────────────────────────────────────

const (
	fakeSalt      = "lM1GncleQOaCu9lT1yeUZhFYnqhsLLP1G5lAGo3ixaI="
	fakeChallenge = "+IxH4CnCiqpX1rM9scsNynZzbOe4KhDeYcTNS3PDaeY="
)

type fakeConn struct {
	mu sync.Mutex
	ws *websocket.Conn
}

func (c *fakeConn) send(op int, d any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ws.WriteJSON(frame{Op: op, D: d}) //nolint:errcheck // test fake
}

// fakeOBS speaks enough obs-websocket v5 to exercise the client.
type fakeOBS struct {
	srv      *httptest.Server
	password string

	mu        sync.Mutex
	conns     []*fakeConn
	accepted  int
	rejected  int
	requests  []request
	scenes    []string
	current   string
	streaming bool
	recording bool
	outBytes  uint64
	outMillis uint64
	items     map[string][]sceneItem
	media     map[string]string
	settings  map[string]map[string]any
	enabled   map[int]bool
}

// newFakeOBS starts a fake; setup runs before the server accepts connections.
func newFakeOBS(t *testing.T, password string, setup ...func(*fakeOBS)) *fakeOBS {
	t.Helper()
	f := &fakeOBS{
		password: password,
		scenes:   []string{"Live", "Low", "Offline", "Starting"},
		current:  "Live",
		items:    map[string][]sceneItem{},
		media:    map[string]string{},
		settings: map[string]map[string]any{},
		enabled:  map[int]bool{},
	}
	for _, fn := range setup {
		fn(f)
	}
	f.srv = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeOBS) config() Config {
	addr := f.srv.Listener.Addr().(*net.TCPAddr)
	return Config{
		Host:           addr.IP.String(),
		Port:           addr.Port,
		Password:       f.password,
		InfoWindow:     10 * time.Millisecond,
		AuthRetryDelay: 10 * time.Millisecond,
		RequestTimeout: 2 * time.Second,
	}
}

func (f *fakeOBS) handle(w http.ResponseWriter, r *http.Request) {
	up := websocket.Upgrader{}
	ws, err := up.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer ws.Close()
	c := &fakeConn{ws: ws}

	h := hello{OBSWebSocketVersion: "5.5.0", RPCVersion: 1}
	if f.password != "" {
		h.Authentication = &authChallenge{Challenge: fakeChallenge, Salt: fakeSalt}
	}
	c.send(opHello, h)

	var id identify
	if err := readOp(ws, opIdentify, &id); err != nil {
		return
	}
	if f.password != "" && id.Authentication != authResponse(f.password, fakeSalt, fakeChallenge) {
		f.mu.Lock()
		f.rejected++
		f.mu.Unlock()
		c.mu.Lock()
		ws.WriteMessage(websocket.CloseMessage, //nolint:errcheck // test fake
			websocket.FormatCloseMessage(closeAuthenticationFailed, "Authentication failed."))
		c.mu.Unlock()
		return
	}
	c.send(opIdentified, identified{NegotiatedRPCVersion: 1})

	f.mu.Lock()
	f.accepted++
	f.conns = append(f.conns, c)
	f.mu.Unlock()

	for {
		var env envelope
		if err := ws.ReadJSON(&env); err != nil {
			return
		}
		if env.Op != opRequest {
			continue
		}
		var req struct {
			RequestType string          `json:"requestType"`
			RequestID   string          `json:"requestId"`
			RequestData json.RawMessage `json:"requestData"`
		}
		if err := json.Unmarshal(env.D, &req); err != nil {
			continue
		}
		var data map[string]any
		json.Unmarshal(req.RequestData, &data) //nolint:errcheck // absent data is fine

		resp, ok, events := f.respond(req.RequestType, data)

		f.mu.Lock()
		f.requests = append(f.requests, request{RequestType: req.RequestType, RequestID: req.RequestID, RequestData: data})
		f.mu.Unlock()

		status := requestStatus{Result: ok, Code: 100}
		if !ok {
			status = requestStatus{Result: false, Code: 600, Comment: "resource not found"}
		}
		c.send(opRequestResponse, map[string]any{
			"requestType":   req.RequestType,
			"requestId":     req.RequestID,
			"requestStatus": status,
			"responseData":  resp,
		})
		for _, ev := range events {
			c.send(opEvent, ev)
		}
	}
}

func (f *fakeOBS) respond(requestType string, data map[string]any) (any, bool, []event) {
	f.mu.Lock()
	defer f.mu.Unlock()

	str := func(key string) string {
		s, _ := data[key].(string)
		return s
	}
	num := func(key string) int {
		n, _ := data[key].(float64)
		return int(n)
	}

	switch requestType {
	case "GetCurrentProgramScene":
		return map[string]any{"currentProgramSceneName": f.current}, true, nil
	case "GetSceneList":
		list := make([]map[string]any, len(f.scenes))
		for i, s := range f.scenes {
			list[i] = map[string]any{"sceneName": s, "sceneIndex": i}
		}
		return map[string]any{"currentProgramSceneName": f.current, "scenes": list}, true, nil
	case "SetCurrentProgramScene":
		name := str("sceneName")
		for _, s := range f.scenes {
			if s == name {
				f.current = name
				return nil, true, []event{sceneEvent(name)}
			}
		}
		return nil, false, nil
	case "GetStreamStatus":
		if f.streaming {
			f.outBytes += 250_000
			f.outMillis += 2000
		}
		return map[string]any{
			"outputActive":        f.streaming,
			"outputBytes":         f.outBytes,
			"outputDuration":      f.outMillis,
			"outputTotalFrames":   500,
			"outputSkippedFrames": 5,
		}, true, nil
	case "StartStream":
		f.streaming = true
		return nil, true, []event{streamEvent(true, outputStarted)}
	case "StopStream":
		f.streaming = false
		return nil, true, []event{streamEvent(false, outputStopped)}
	case "ToggleRecord":
		f.recording = !f.recording
		return nil, true, nil
	case "GetRecordStatus":
		return map[string]any{"outputActive": f.recording}, true, nil
	case "GetStats":
		return map[string]any{
			"activeFps":           60.0,
			"renderTotalFrames":   1000,
			"renderSkippedFrames": 2,
			"outputTotalFrames":   900,
			"outputSkippedFrames": 3,
		}, true, nil
	case "GetSceneItemList", "GetGroupSceneItemList":
		items, ok := f.items[str("sceneName")]
		return map[string]any{"sceneItems": items}, ok, nil
	case "GetMediaInputStatus":
		st, ok := f.media[str("inputName")]
		return map[string]any{"mediaState": st}, ok, nil
	case "GetInputSettings":
		s, ok := f.settings[str("inputName")]
		return map[string]any{"inputSettings": s}, ok, nil
	case "SetInputSettings":
		return nil, true, nil
	case "GetSceneItemEnabled":
		return map[string]any{"sceneItemEnabled": f.enabled[num("sceneItemId")]}, true, nil
	case "SetSceneItemEnabled":
		f.enabled[num("sceneItemId")], _ = data["sceneItemEnabled"].(bool)
		return nil, true, nil
	}
	return nil, false, nil
}

func sceneEvent(name string) event {
	raw, _ := json.Marshal(map[string]string{"sceneName": name})
	return event{EventType: eventCurrentProgramSceneChanged, EventIntent: subscribeScenes, EventData: raw}
}

func streamEvent(active bool, outputState string) event {
	raw, _ := json.Marshal(map[string]any{"outputActive": active, "outputState": outputState})
	return event{EventType: eventStreamStateChanged, EventIntent: subscribeOutputs, EventData: raw}
}

func (f *fakeOBS) emit(ev event) {
	f.mu.Lock()
	conns := append([]*fakeConn(nil), f.conns...)
	f.mu.Unlock()
	for _, c := range conns {
		c.send(opEvent, ev)
	}
}

// dropAll closes every live connection without a close frame.
func (f *fakeOBS) dropAll() {
	f.mu.Lock()
	conns := f.conns
	f.conns = nil
	f.mu.Unlock()
	for _, c := range conns {
		c.ws.Close() //nolint:errcheck // test fake
	}
}

func (f *fakeOBS) counts() (accepted, rejected int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.accepted, f.rejected
}

func (f *fakeOBS) requestsOf(requestType string) []request {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []request
	for _, r := range f.requests {
		if r.RequestType == requestType {
			out = append(out, r)
		}
	}
	return out
}

// ─── Helpers ────────────────────────────────────────────────────

func newTestState() *state.State {
	return state.New(state.Options{
		User:            "alice",
		SwitcherEnabled: true,
		Scenes:          state.SwitchingScenes{Normal: "Live", Low: "Low", Offline: "Offline"},
		OptionalScenes:  state.OptionalScenes{Starting: "Starting"},
	})
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// startOBS runs a client against f and waits until it is connected.
func startOBS(t *testing.T, f *fakeOBS) (*OBS, *state.State) {
	t.Helper()
	st := newTestState()
	o := New(f.config(), st)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- o.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	waitFor(t, "connection", func() bool {
		return st.Broadcasting().Status == state.Connected
	})
	return o, st
}

// ─── Pure helpers ───────────────────────────────────────────────

func TestAuthResponse(t *testing.T) {
	got := authResponse("supersecretpassword", fakeSalt, fakeChallenge)
	want := "1Ct943GAT+6YQUUX47Ia/ncufilbe6+oD6lY+5kaCu4="
	if got != want {
		t.Errorf("authResponse() = %q, want %q", got, want)
	}
}

func TestMatchScene(t *testing.T) {
	scenes := []string{"Live", "Low", "Offline Scene", "BRB"}

	tests := []struct {
		name      string
		requested string
		want      string
		wantOK    bool
	}{
		{"exact", "Live", "Live", true},
		{"case insensitive", "LIVE", "Live", true},
		{"typo", "ofline scene", "Offline Scene", true},
		{"below threshold", "starting", "starting", false},
		{"brb lower", "brb", "BRB", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := MatchScene(tt.requested, scenes, DefaultMatchThreshold)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("MatchScene(%q) = (%q, %v), want (%q, %v)", tt.requested, got, ok, tt.want, tt.wantOK)
			}
		})
	}

	t.Run("no candidates", func(t *testing.T) {
		got, ok := MatchScene("Live", nil, DefaultMatchThreshold)
		if got != "Live" || ok {
			t.Errorf("MatchScene() = (%q, %v), want (Live, false)", got, ok)
		}
	})
}

func TestBitrateKbps(t *testing.T) {
	tests := []struct {
		name          string
		first, second outputStatus
		want          uint64
	}{
		{"1000 kbps", outputStatus{OutputBytes: 0, OutputDuration: 0}, outputStatus{OutputBytes: 250_000, OutputDuration: 2000}, 1000},
		{"no time elapsed", outputStatus{OutputBytes: 10, OutputDuration: 5}, outputStatus{OutputBytes: 20, OutputDuration: 5}, 0},
		{"counter reset", outputStatus{OutputBytes: 500, OutputDuration: 1000}, outputStatus{OutputBytes: 100, OutputDuration: 2000}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := bitrateKbps(tt.first, tt.second); got != tt.want {
				t.Errorf("bitrateKbps() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestConfigURL(t *testing.T) {
	c := Config{Host: "localhost", Port: 4455}
	if got := c.URL(); got != "ws://localhost:4455" {
		t.Errorf("URL() = %q, want ws://localhost:4455", got)
	}
}

// ─── Connection lifecycle ───────────────────────────────────────

func TestRunConnectsAndSyncs(t *testing.T) {
	f := newFakeOBS(t, "supersecretpassword")
	o, st := startOBS(t, f)

	bs := st.Broadcasting()
	if bs.CurrentScene != "Live" {
		t.Errorf("CurrentScene = %q, want Live", bs.CurrentScene)
	}
	if bs.IsStreaming {
		t.Error("IsStreaming = true, want false")
	}
	if st.Software() == nil {
		t.Error("Software() = nil, want attached client")
	}
	if !o.Connected() {
		t.Error("Connected() = false, want true")
	}
}

func TestRunSyncsLiveStreamAndBaseline(t *testing.T) {
	f := newFakeOBS(t, "", func(f *fakeOBS) { f.streaming = true })
	_, st := startOBS(t, f)

	if !st.IsStreaming() {
		t.Fatal("IsStreaming() = false, want true")
	}
	waitFor(t, "baseline", func() bool {
		_, ok := st.Baseline()
		return ok
	})
}

func TestRunRetriesAfterAuthFailure(t *testing.T) {
	f := newFakeOBS(t, "right")
	cfg := f.config()
	cfg.Password = "wrong"

	st := newTestState()
	o := New(cfg, st)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- o.Run(ctx) }()

	waitFor(t, "two rejected attempts", func() bool {
		_, rejected := f.counts()
		return rejected >= 2
	})
	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run() = %v, want nil", err)
	}
	if st.Broadcasting().Status != state.Disconnected {
		t.Error("status should stay disconnected")
	}
}

func TestHandshakeRequiresPassword(t *testing.T) {
	f := newFakeOBS(t, "secret")
	cfg := f.config()

	_, err := dial(context.Background(), websocket.DefaultDialer, cfg.URL(), "", noopLogger{})
	if !errors.Is(err, ErrAuthFailed) {
		t.Errorf("dial() error = %v, want ErrAuthFailed", err)
	}
}

func TestHandshakeRejectedPassword(t *testing.T) {
	f := newFakeOBS(t, "secret")
	cfg := f.config()

	_, err := dial(context.Background(), websocket.DefaultDialer, cfg.URL(), "nope", noopLogger{})
	if !errors.Is(err, ErrAuthFailed) {
		t.Errorf("dial() error = %v, want ErrAuthFailed", err)
	}
}

func TestRunReconnectsAfterDrop(t *testing.T) {
	f := newFakeOBS(t, "")
	_, st := startOBS(t, f)

	f.dropAll()

	waitFor(t, "second connection", func() bool {
		accepted, _ := f.counts()
		return accepted >= 2 && st.Broadcasting().Status == state.Connected
	})
}

func TestRunMarksDisconnectedOnCancel(t *testing.T) {
	f := newFakeOBS(t, "")
	st := newTestState()
	o := New(f.config(), st)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- o.Run(ctx) }()

	waitFor(t, "connection", func() bool { return st.Broadcasting().Status == state.Connected })
	cancel()

	if err := <-done; err != nil {
		t.Errorf("Run() = %v, want nil", err)
	}
	if st.Broadcasting().Status != state.Disconnected {
		t.Error("status should be disconnected after Run returns")
	}
	if st.Software() != nil {
		t.Error("software should be detached after Run returns")
	}
	if o.Connected() {
		t.Error("Connected() = true after Run returned")
	}
}

func TestRequestsWithoutConnection(t *testing.T) {
	o := New(Config{Host: "127.0.0.1", Port: 1}, newTestState())

	if err := o.StartStreaming(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("StartStreaming() error = %v, want ErrNotConnected", err)
	}
	if _, err := o.SwitchScene(context.Background(), "Live"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("SwitchScene() error = %v, want ErrNotConnected", err)
	}
}

// ─── Software operations ────────────────────────────────────────

func TestSwitchSceneFuzzyMatch(t *testing.T) {
	f := newFakeOBS(t, "", func(f *fakeOBS) { f.current = "Offline" })
	o, st := startOBS(t, f)

	got, err := o.SwitchScene(context.Background(), "low")
	if err != nil {
		t.Fatalf("SwitchScene() error = %v", err)
	}
	if got != "Low" {
		t.Errorf("SwitchScene() = %q, want Low", got)
	}

	waitFor(t, "scene event", func() bool { return st.CurrentScene() == "Low" })

	sets := f.requestsOf("SetCurrentProgramScene")
	if len(sets) != 1 {
		t.Fatalf("SetCurrentProgramScene sent %d times, want 1", len(sets))
	}
}

func TestSwitchSceneUnknownFails(t *testing.T) {
	f := newFakeOBS(t, "")
	o, _ := startOBS(t, f)

	_, err := o.SwitchScene(context.Background(), "intermission")
	if !errors.Is(err, ErrRequestFailed) {
		t.Errorf("SwitchScene() error = %v, want ErrRequestFailed", err)
	}
	sets := f.requestsOf("SetCurrentProgramScene")
	if len(sets) != 1 {
		t.Fatalf("SetCurrentProgramScene sent %d times, want 1", len(sets))
	}
	data := sets[0].RequestData.(map[string]any)
	if data["sceneName"] != "intermission" {
		t.Errorf("sceneName = %v, want literal intermission", data["sceneName"])
	}
}

func TestStreamEventsUpdateState(t *testing.T) {
	f := newFakeOBS(t, "")
	o, st := startOBS(t, f)
	ctx := context.Background()

	if err := o.StartStreaming(ctx); err != nil {
		t.Fatalf("StartStreaming() error = %v", err)
	}
	waitFor(t, "streaming", st.IsStreaming)
	waitFor(t, "baseline", func() bool {
		_, ok := st.Baseline()
		return ok
	})
	if st.Broadcasting().LastStreamStartedAt.IsZero() {
		t.Error("LastStreamStartedAt not set")
	}

	if err := o.StopStreaming(ctx); err != nil {
		t.Fatalf("StopStreaming() error = %v", err)
	}
	waitFor(t, "stopped", func() bool { return !st.IsStreaming() })
	if _, ok := st.Baseline(); ok {
		t.Error("baseline should be cleared when the stream stops")
	}
}

func TestEnqueueMarksResyncWhenFull(t *testing.T) {
	c := &conn{log: noopLogger{}, events: make(chan event, 1), resync: make(chan struct{}, 1)}

	c.enqueue(sceneEvent("Live"))
	select {
	case <-c.resync:
		t.Fatal("resync signalled before the queue was full")
	default:
	}

	c.enqueue(sceneEvent("Low"))
	c.enqueue(streamEvent(true, outputStarted))
	if len(c.events) != 1 {
		t.Errorf("queued = %d, want 1", len(c.events))
	}
	select {
	case <-c.resync:
	default:
		t.Error("dropped events did not signal a resync")
	}
}

func TestResyncAppliesMissedChanges(t *testing.T) {
	f := newFakeOBS(t, "")
	o, st := startOBS(t, f)

	// OBS moved on without the events reaching the client.
	f.mu.Lock()
	f.current = "Low"
	f.streaming = true
	f.mu.Unlock()

	c, err := o.current()
	if err != nil {
		t.Fatalf("current() error = %v", err)
	}
	c.markResync()

	waitFor(t, "resync", func() bool {
		return st.CurrentScene() == "Low" && st.IsStreaming()
	})
	waitFor(t, "baseline", func() bool {
		_, ok := st.Baseline()
		return ok
	})

	f.mu.Lock()
	f.streaming = false
	f.mu.Unlock()
	c.markResync()
	waitFor(t, "stopped", func() bool { return !st.IsStreaming() })
}

func TestTransitionalStreamStatesIgnored(t *testing.T) {
	f := newFakeOBS(t, "")
	_, st := startOBS(t, f)

	f.emit(streamEvent(false, "OBS_WEBSOCKET_OUTPUT_STARTING"))
	f.emit(streamEvent(true, outputStarted))
	waitFor(t, "streaming", st.IsStreaming)

	f.emit(streamEvent(true, "OBS_WEBSOCKET_OUTPUT_STOPPING"))
	f.emit(sceneEvent("Low"))
	waitFor(t, "scene event", func() bool { return st.CurrentScene() == "Low" })
	if !st.IsStreaming() {
		t.Error("stopping state should not end the stream")
	}
}

func TestRecording(t *testing.T) {
	f := newFakeOBS(t, "")
	o, _ := startOBS(t, f)
	ctx := context.Background()

	rec, err := o.IsRecording(ctx)
	if err != nil || rec {
		t.Fatalf("IsRecording() = (%v, %v), want (false, nil)", rec, err)
	}
	if err := o.ToggleRecording(ctx); err != nil {
		t.Fatalf("ToggleRecording() error = %v", err)
	}
	rec, err = o.IsRecording(ctx)
	if err != nil || !rec {
		t.Errorf("IsRecording() = (%v, %v), want (true, nil)", rec, err)
	}
}

func TestInfo(t *testing.T) {
	f := newFakeOBS(t, "")
	o, _ := startOBS(t, f)

	f.mu.Lock()
	f.streaming = true
	f.mu.Unlock()

	ss, err := o.Info(context.Background())
	if err != nil {
		t.Fatalf("Info() error = %v", err)
	}
	if ss.Bitrate != 1000 {
		t.Errorf("Bitrate = %d, want 1000", ss.Bitrate)
	}
	if ss.FPS != 60 {
		t.Errorf("FPS = %v, want 60", ss.FPS)
	}
	if ss.RenderMissedFrames != 2 || ss.NumDroppedFrames != 5 {
		t.Errorf("frames = %+v", ss)
	}
}

func TestInfoSubtractsBaseline(t *testing.T) {
	f := newFakeOBS(t, "")
	o, st := startOBS(t, f)

	f.mu.Lock()
	f.streaming = true
	f.mu.Unlock()
	st.StreamStarted(time.Now())
	st.SetBaseline(state.StreamStatus{RenderTotalFrames: 400, NumTotalFrames: 100})

	ss, err := o.Info(context.Background())
	if err != nil {
		t.Fatalf("Info() error = %v", err)
	}
	if ss.RenderTotalFrames != 600 {
		t.Errorf("RenderTotalFrames = %d, want 600", ss.RenderTotalFrames)
	}
	if ss.NumTotalFrames != 400 {
		t.Errorf("NumTotalFrames = %d, want 400", ss.NumTotalFrames)
	}
}

// fixScenes builds Live -> nested (cycling back to Live) and Live -> grp.
func fixScenes(f *fakeOBS) {
	f.items = map[string][]sceneItem{
		"Live": {
			{SceneItemID: 1, SourceName: "cam", SourceType: "OBS_SOURCE_TYPE_INPUT", InputKind: kindFFmpeg},
			{SceneItemID: 2, SourceName: "nested", SourceType: sourceTypeScene},
			{SceneItemID: 3, SourceName: "grp", SourceType: sourceTypeScene, IsGroup: true},
		},
		"nested": {
			{SceneItemID: 4, SourceName: "irl", SourceType: "OBS_SOURCE_TYPE_INPUT", InputKind: kindVLC},
			{SceneItemID: 5, SourceName: "Live", SourceType: sourceTypeScene},
		},
		"grp": {
			{SceneItemID: 6, SourceName: "clip", SourceType: "OBS_SOURCE_TYPE_INPUT", InputKind: kindFFmpeg},
			{SceneItemID: 7, SourceName: "paused", SourceType: "OBS_SOURCE_TYPE_INPUT", InputKind: kindFFmpeg},
		},
	}
	f.media = map[string]string{
		"cam":    "OBS_MEDIA_STATE_PLAYING",
		"irl":    "OBS_MEDIA_STATE_BUFFERING",
		"clip":   "OBS_MEDIA_STATE_PLAYING",
		"paused": "OBS_MEDIA_STATE_PAUSED",
	}
	f.settings = map[string]map[string]any{
		"cam":    {"input": "RTMP://ingest/live"},
		"irl":    {"playlist": []map[string]any{{"value": "srt://relay:9000"}}},
		"clip":   {"input": "/videos/intro.mp4"},
		"paused": {"input": "udp://239.0.0.1:1234"},
	}
}

func TestFixRestartsNetworkInputs(t *testing.T) {
	f := newFakeOBS(t, "", fixScenes)
	o, _ := startOBS(t, f)

	if err := o.Fix(context.Background()); err != nil {
		t.Fatalf("Fix() error = %v", err)
	}

	resets := f.requestsOf("SetInputSettings")
	if len(resets) != 1 {
		t.Fatalf("SetInputSettings sent %d times, want 1", len(resets))
	}
	if name := resets[0].RequestData.(map[string]any)["inputName"]; name != "cam" {
		t.Errorf("reset input = %v, want cam", name)
	}

	toggles := f.requestsOf("SetSceneItemEnabled")
	if len(toggles) != 2 {
		t.Fatalf("SetSceneItemEnabled sent %d times, want 2", len(toggles))
	}
	first := toggles[0].RequestData.(map[string]any)
	second := toggles[1].RequestData.(map[string]any)
	if first["sceneItemEnabled"] != false || second["sceneItemEnabled"] != true {
		t.Errorf("toggle sequence = %v, %v, want false then true", first["sceneItemEnabled"], second["sceneItemEnabled"])
	}
	if first["sceneName"] != "nested" {
		t.Errorf("toggle scene = %v, want nested", first["sceneName"])
	}

	if got := len(f.requestsOf("GetGroupSceneItemList")); got != 1 {
		t.Errorf("GetGroupSceneItemList sent %d times, want 1", got)
	}
	if got := len(f.requestsOf("GetSceneItemList")); got != 2 {
		t.Errorf("GetSceneItemList sent %d times, want 2 (cycle not revisited)", got)
	}
}

func TestToggleSource(t *testing.T) {
	f := newFakeOBS(t, "", func(f *fakeOBS) {
		f.items = map[string][]sceneItem{
			"Live": {
				{SceneItemID: 1, SourceName: "Camera", SourceType: "OBS_SOURCE_TYPE_INPUT", InputKind: kindFFmpeg},
				{SceneItemID: 2, SourceName: "Chat", SourceType: "OBS_SOURCE_TYPE_INPUT", InputKind: "browser_source"},
			},
		}
		f.enabled[2] = true
	})
	o, _ := startOBS(t, f)

	name, enabled, err := o.ToggleSource(context.Background(), "chat")
	if err != nil {
		t.Fatalf("ToggleSource() error = %v", err)
	}
	if name != "Chat" || enabled {
		t.Errorf("ToggleSource() = (%q, %v), want (Chat, false)", name, enabled)
	}
}

func TestToggleSourceEmptyScene(t *testing.T) {
	f := newFakeOBS(t, "", func(f *fakeOBS) { f.items = map[string][]sceneItem{"Live": {}} })
	o, _ := startOBS(t, f)

	if _, _, err := o.ToggleSource(context.Background(), "chat"); !errors.Is(err, ErrNoSourceFound) {
		t.Errorf("ToggleSource() error = %v, want ErrNoSourceFound", err)
	}
}
