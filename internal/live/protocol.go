package live

import (
	"github.com/vibeteen/vibe-teen/internal/mural"
	"github.com/vibeteen/vibe-teen/internal/viewport"
)

// Inbound message types.
const (
	MsgWheel       = "wheel"
	MsgZoom        = "zoom"
	MsgPointerDown = "pointerdown"
	MsgPointerMove = "pointermove"
	MsgPointerUp   = "pointerup"
	MsgReset       = "reset"
	MsgRegister    = "register"
)

// Outbound frame types.
const (
	FrameFeed     = "feed"
	FrameViewport = "viewport"
	FrameStatus   = "status"
	FrameNotice   = "notice"
	FrameMission  = "mission"
)

// Inbound is one client message. Only the fields for its Type are read.
type Inbound struct {
	Type string `json:"type"`

	DeltaY float64 `json:"deltaY,omitempty"`
	Dir    string  `json:"dir,omitempty"` // "in" | "out"
	X      float64 `json:"x,omitempty"`
	Y      float64 `json:"y,omitempty"`

	BeneficiaryName string `json:"beneficiaryName,omitempty"`
	Category        string `json:"category,omitempty"`
}

// Outbound is one server frame.
type Outbound struct {
	Type string `json:"type"`

	// feed
	Frame *mural.Frame `json:"frame,omitempty"`

	// viewport
	Viewport  *viewport.State `json:"viewport,omitempty"`
	Transform string          `json:"transform,omitempty"`

	// status
	Syncing *bool `json:"syncing,omitempty"`

	// notice, mission
	Message string `json:"message,omitempty"`
}
