package extraction

import (
	"strings"
)

// domEventProps covers the React synthetic event surface. Handlers inherited
// from HTML attribute types add noise without describing the component, so
// they never survive filtering.
var domEventProps = map[string]bool{
	"onClick": true, "onDoubleClick": true, "onMouseDown": true, "onMouseUp": true,
	"onMouseEnter": true, "onMouseLeave": true, "onMouseMove": true, "onMouseOver": true,
	"onMouseOut": true, "onContextMenu": true, "onWheel": true,
	"onKeyDown": true, "onKeyUp": true, "onKeyPress": true,
	"onFocus": true, "onBlur": true,
	"onChange": true, "onInput": true, "onSubmit": true, "onReset": true, "onInvalid": true,
	"onSelect": true, "onCopy": true, "onCut": true, "onPaste": true,
	"onDrag": true, "onDragStart": true, "onDragEnd": true, "onDragEnter": true,
	"onDragLeave": true, "onDragOver": true, "onDrop": true,
	"onTouchStart": true, "onTouchEnd": true, "onTouchMove": true, "onTouchCancel": true,
	"onPointerDown": true, "onPointerUp": true, "onPointerMove": true,
	"onPointerEnter": true, "onPointerLeave": true, "onPointerOver": true,
	"onPointerOut": true, "onPointerCancel": true, "onGotPointerCapture": true,
	"onLostPointerCapture": true,
	"onScroll":             true, "onLoad": true, "onError": true, "onAbort": true,
	"onAnimationStart": true, "onAnimationEnd": true, "onAnimationIteration": true,
	"onTransitionEnd": true, "onCompositionStart": true, "onCompositionEnd": true,
	"onCompositionUpdate": true, "onBeforeInput": true,
	"onPlay": true, "onPause": true, "onEnded": true, "onVolumeChange": true,
	"onSeeked": true, "onSeeking": true, "onTimeUpdate": true, "onDurationChange": true,
	"onCanPlay": true, "onCanPlayThrough": true, "onLoadedData": true,
	"onLoadedMetadata": true, "onLoadStart": true, "onProgress": true,
	"onStalled": true, "onSuspend": true, "onWaiting": true, "onRateChange": true,
	"onEmptied": true, "onEncrypted": true, "onToggle": true,
}

// passthroughProps are generic HTML/React attributes that every element
// accepts. They say nothing about a component's own API.
var passthroughProps = map[string]bool{
	"className": true, "style": true, "id": true, "ref": true, "key": true,
	"slot": true, "tabIndex": true, "role": true, "title": true, "lang": true,
	"dir": true, "hidden": true, "draggable": true, "spellCheck": true,
	"translate": true, "contentEditable": true, "inputMode": true,
	"enterKeyHint": true, "autoFocus": true, "form": true, "formAction": true,
	"formEncType": true, "formMethod": true, "formNoValidate": true,
	"formTarget": true,
}

// thirdPartyPathMarkers identify props whose declarations live inside a
// dependency's type tree rather than the project source.
var thirdPartyPathMarkers = []string{
	"node_modules/",
	"@types/react/",
	"@types/react-dom/",
}

// keepProp decides whether a single extracted prop belongs in the structural
// API surface. children is always kept: it is the composition contract.
func keepProp(name, declaringFile string) bool {
	if name == "children" {
		return true
	}
	if domEventProps[name] {
		return false
	}
	if passthroughProps[name] {
		return false
	}
	if strings.HasPrefix(name, "aria-") || strings.HasPrefix(name, "data-") {
		return false
	}
	if declaringFile != "" {
		normalized := strings.ReplaceAll(declaringFile, "\\", "/")
		for _, marker := range thirdPartyPathMarkers {
			if strings.Contains(normalized, marker) {
				return false
			}
		}
	}
	return true
}

// filterProps applies keepProp over a raw extraction result, preserving
// order.
func filterProps(props []RawProp) []RawProp {
	out := make([]RawProp, 0, len(props))
	for _, p := range props {
		if keepProp(p.Name, p.DeclaringFile) {
			out = append(out, p)
		}
	}
	return out
}
