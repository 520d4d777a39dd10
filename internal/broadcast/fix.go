package broadcast

import (
	"context"
	"fmt"
	"strings"
)

// sourceRef locates one scene item.
type sourceRef struct {
	scene  string
	itemID int
	name   string
	kind   string
}

// networkSchemes are the input URL prefixes Fix treats as network feeds.
var networkSchemes = []string{"rtmp", "srt", "udp"}

// Fix restarts network media inputs in the current program scene.
//
// Nested scenes and groups are walked once each. ffmpeg inputs are reset
// by re-applying their settings; vlc inputs are hidden and shown again.
// Inputs that are not playing, buffering or opening, or whose URL is not
// rtmp, srt or udp, are left alone.
func (o *OBS) Fix(ctx context.Context) error {
	scene, err := o.CurrentScene(ctx)
	if err != nil {
		return err
	}

	var media []sourceRef
	if err := o.walk(ctx, scene, false, map[string]bool{scene: true}, func(ref sourceRef) {
		if ref.kind == kindFFmpeg || ref.kind == kindVLC {
			media = append(media, ref)
		}
	}); err != nil {
		return err
	}

	for _, ref := range media {
		var status mediaInputStatus
		if err := o.request(ctx, "GetMediaInputStatus", map[string]string{"inputName": ref.name}, &status); err != nil {
			o.log.Debug("media status unavailable", "input", ref.name, "error", err)
			continue
		}
		if !activeMediaStates[status.MediaState] {
			continue
		}

		var settings inputSettings
		if err := o.request(ctx, "GetInputSettings", map[string]string{"inputName": ref.name}, &settings); err != nil {
			return err
		}
		if !isNetworkInput(ref.kind, settings) {
			continue
		}

		o.log.Info("restarting media input", "input", ref.name, "kind", ref.kind)
		if err := o.restart(ctx, ref); err != nil {
			return fmt.Errorf("restarting %s: %w", ref.name, err)
		}
	}
	return nil
}

func (o *OBS) restart(ctx context.Context, ref sourceRef) error {
	if ref.kind == kindVLC {
		if err := o.setItemEnabled(ctx, ref, false); err != nil {
			return err
		}
		return o.setItemEnabled(ctx, ref, true)
	}
	data := map[string]any{
		"inputName":     ref.name,
		"inputSettings": map[string]any{},
		"overlay":       true,
	}
	return o.request(ctx, "SetInputSettings", data, nil)
}

func isNetworkInput(kind string, s inputSettings) bool {
	var urls []string
	switch kind {
	case kindFFmpeg:
		urls = append(urls, s.InputSettings.Input)
	case kindVLC:
		for _, p := range s.InputSettings.Playlist {
			urls = append(urls, p.Value)
		}
	}
	for _, u := range urls {
		u = strings.ToLower(u)
		for _, scheme := range networkSchemes {
			if strings.HasPrefix(u, scheme) {
				return true
			}
		}
	}
	return false
}

// ToggleSource flips the visibility of the source in the current program
// scene (or any scene nested in it) whose name best matches name.
//
// Returns:
//   - string: The source that was toggled
//   - bool: Its new visibility
//   - error: ErrNoSourceFound when the scene tree has no sources
func (o *OBS) ToggleSource(ctx context.Context, name string) (string, bool, error) {
	scene, err := o.CurrentScene(ctx)
	if err != nil {
		return "", false, err
	}

	var refs []sourceRef
	if err := o.walk(ctx, scene, false, map[string]bool{scene: true}, func(ref sourceRef) {
		refs = append(refs, ref)
	}); err != nil {
		return "", false, err
	}
	if len(refs) == 0 {
		return "", false, ErrNoSourceFound
	}

	names := make([]string, len(refs))
	for i, r := range refs {
		names[i] = r.name
	}
	// Any source beats none here, so there is no threshold.
	match, _ := MatchScene(name, names, 0)
	ref := refs[0]
	for _, r := range refs {
		if r.name == match {
			ref = r
			break
		}
	}

	var cur sceneItemEnabled
	q := map[string]any{"sceneName": ref.scene, "sceneItemId": ref.itemID}
	if err := o.request(ctx, "GetSceneItemEnabled", q, &cur); err != nil {
		return "", false, err
	}
	enabled := !cur.SceneItemEnabled
	if err := o.setItemEnabled(ctx, ref, enabled); err != nil {
		return "", false, err
	}
	return ref.name, enabled, nil
}

func (o *OBS) setItemEnabled(ctx context.Context, ref sourceRef, enabled bool) error {
	data := map[string]any{
		"sceneName":        ref.scene,
		"sceneItemId":      ref.itemID,
		"sceneItemEnabled": enabled,
	}
	return o.request(ctx, "SetSceneItemEnabled", data, nil)
}

// walk visits every item of scene and recurses into nested scenes and
// groups not yet in visited.
func (o *OBS) walk(ctx context.Context, scene string, group bool, visited map[string]bool, visit func(sourceRef)) error {
	requestType := "GetSceneItemList"
	if group {
		requestType = "GetGroupSceneItemList"
	}

	var list sceneItems
	if err := o.request(ctx, requestType, map[string]string{"sceneName": scene}, &list); err != nil {
		return err
	}

	for _, item := range list.SceneItems {
		visit(sourceRef{scene: scene, itemID: item.SceneItemID, name: item.SourceName, kind: item.InputKind})

		if item.SourceType != sourceTypeScene || visited[item.SourceName] {
			continue
		}
		visited[item.SourceName] = true
		if err := o.walk(ctx, item.SourceName, item.IsGroup, visited, visit); err != nil {
			return err
		}
	}
	return nil
}
