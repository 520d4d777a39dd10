package broadcast

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
)

// obs-websocket v5 op codes.
const (
	opHello           = 0
	opIdentify        = 1
	opIdentified      = 2
	opEvent           = 5
	opRequest         = 6
	opRequestResponse = 7
)

const rpcVersion = 1

// Event subscription bits.
const (
	subscribeScenes  = 1 << 2
	subscribeOutputs = 1 << 6
)

// closeAuthenticationFailed is the close code OBS sends for a wrong password.
const closeAuthenticationFailed = 4009

// Event types the connection reacts to.
const (
	eventCurrentProgramSceneChanged = "CurrentProgramSceneChanged"
	eventStreamStateChanged         = "StreamStateChanged"
)

// Output states carried by StreamStateChanged.
const (
	outputStarted = "OBS_WEBSOCKET_OUTPUT_STARTED"
	outputStopped = "OBS_WEBSOCKET_OUTPUT_STOPPED"
)

// Media states that count as an input being in use.
var activeMediaStates = map[string]bool{
	"OBS_MEDIA_STATE_PLAYING":   true,
	"OBS_MEDIA_STATE_BUFFERING": true,
	"OBS_MEDIA_STATE_OPENING":   true,
}

const (
	kindFFmpeg = "ffmpeg_source"
	kindVLC    = "vlc_source"

	sourceTypeScene = "OBS_SOURCE_TYPE_SCENE"
)

// envelope is an incoming frame with its payload left undecoded.
type envelope struct {
	Op int             `json:"op"`
	D  json.RawMessage `json:"d"`
}

// frame is an outgoing message.
type frame struct {
	Op int `json:"op"`
	D  any `json:"d"`
}

type hello struct {
	OBSWebSocketVersion string         `json:"obsWebSocketVersion"`
	RPCVersion          int            `json:"rpcVersion"`
	Authentication      *authChallenge `json:"authentication,omitempty"`
}

type authChallenge struct {
	Challenge string `json:"challenge"`
	Salt      string `json:"salt"`
}

type identify struct {
	RPCVersion         int    `json:"rpcVersion"`
	Authentication     string `json:"authentication,omitempty"`
	EventSubscriptions int    `json:"eventSubscriptions"`
}

type identified struct {
	NegotiatedRPCVersion int `json:"negotiatedRpcVersion"`
}

type event struct {
	EventType   string          `json:"eventType"`
	EventIntent int             `json:"eventIntent"`
	EventData   json.RawMessage `json:"eventData"`
}

type request struct {
	RequestType string `json:"requestType"`
	RequestID   string `json:"requestId"`
	RequestData any    `json:"requestData,omitempty"`
}

type requestResponse struct {
	RequestType   string          `json:"requestType"`
	RequestID     string          `json:"requestId"`
	RequestStatus requestStatus   `json:"requestStatus"`
	ResponseData  json.RawMessage `json:"responseData,omitempty"`
}

type requestStatus struct {
	Result  bool   `json:"result"`
	Code    int    `json:"code"`
	Comment string `json:"comment,omitempty"`
}

// ─── Response payloads ──────────────────────────────────────────

type sceneList struct {
	CurrentProgramSceneName string `json:"currentProgramSceneName"`
	Scenes                  []struct {
		SceneName string `json:"sceneName"`
	} `json:"scenes"`
}

type currentProgramScene struct {
	CurrentProgramSceneName string `json:"currentProgramSceneName"`
}

type outputStatus struct {
	OutputActive        bool   `json:"outputActive"`
	OutputBytes         uint64 `json:"outputBytes"`
	OutputDuration      uint64 `json:"outputDuration"` // milliseconds
	OutputSkippedFrames uint64 `json:"outputSkippedFrames"`
	OutputTotalFrames   uint64 `json:"outputTotalFrames"`
}

type stats struct {
	ActiveFPS           float64 `json:"activeFps"`
	RenderSkippedFrames uint64  `json:"renderSkippedFrames"`
	RenderTotalFrames   uint64  `json:"renderTotalFrames"`
	OutputSkippedFrames uint64  `json:"outputSkippedFrames"`
	OutputTotalFrames   uint64  `json:"outputTotalFrames"`
}

type sceneItem struct {
	SceneItemID int    `json:"sceneItemId"`
	SourceName  string `json:"sourceName"`
	SourceType  string `json:"sourceType"`
	InputKind   string `json:"inputKind,omitempty"`
	IsGroup     bool   `json:"isGroup,omitempty"`
}

type sceneItems struct {
	SceneItems []sceneItem `json:"sceneItems"`
}

type mediaInputStatus struct {
	MediaState string `json:"mediaState"`
}

type inputSettings struct {
	InputKind     string `json:"inputKind"`
	InputSettings struct {
		Input    string `json:"input"`
		Playlist []struct {
			Value string `json:"value"`
		} `json:"playlist"`
	} `json:"inputSettings"`
}

type sceneItemEnabled struct {
	SceneItemEnabled bool `json:"sceneItemEnabled"`
}

// authResponse computes the Identify authentication string:
// base64(sha256(base64(sha256(password + salt)) + challenge)).
func authResponse(password, salt, challenge string) string {
	sum := sha256.Sum256([]byte(password + salt))
	secret := base64.StdEncoding.EncodeToString(sum[:])
	sum = sha256.Sum256([]byte(secret + challenge))
	return base64.StdEncoding.EncodeToString(sum[:])
}
