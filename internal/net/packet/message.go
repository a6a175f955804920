package packet

import "encoding/json"

const ProtocolVersion = "1.0"

// Client → server message types.
const (
	C_SUBSCRIBE = "SUBSCRIBE"
	C_LEAVE     = "LEAVE"
)

// Server → client message types.
const (
	S_WELCOME     = "WELCOME"
	S_CHUNK_ENTER = "CHUNK_ENTER"
	S_CHUNK_EXIT  = "CHUNK_EXIT"
	S_VIEW_CENTER = "VIEW_CENTER"
	S_ERROR       = "ERROR"
)

// Error codes carried by S_ERROR.
const (
	ErrBadRequest = "bad_request"
	ErrBusy       = "server_busy"
	ErrForbidden  = "forbidden"
	ErrNameTaken  = "name_taken"
)

// Subscribe moves the observer's anchor and optionally its view distance.
// The first Subscribe on a connection creates the viewer. A nil ViewDistance
// keeps the current (or restored, or configured default) distance. Resume on
// the first Subscribe restores the viewer's saved anchor, ignoring X and Z.
type Subscribe struct {
	Type         string `json:"type"`
	Name         string `json:"name"`
	X            int32  `json:"x"`
	Z            int32  `json:"z"`
	ViewDistance *int   `json:"view_distance,omitempty"`
	Resume       bool   `json:"resume,omitempty"`
}

type Leave struct {
	Type string `json:"type"`
}

type Welcome struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Name            string `json:"name"`
	X               int32  `json:"x"`
	Z               int32  `json:"z"`
	ViewDistance    int    `json:"view_distance"`
	MaxViewDistance int    `json:"max_view_distance"`
	TickRateMs      int64  `json:"tick_rate_ms"`
	Restored        bool   `json:"restored"`
}

// Chunk is sent as S_CHUNK_ENTER or S_CHUNK_EXIT.
type Chunk struct {
	Type string `json:"type"`
	X    int32  `json:"x"`
	Z    int32  `json:"z"`
}

type ViewCenter struct {
	Type string `json:"type"`
	X    int32  `json:"x"`
	Z    int32  `json:"z"`
}

type Error struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func ChunkEnter(x, z int32) Chunk         { return Chunk{Type: S_CHUNK_ENTER, X: x, Z: z} }
func ChunkExit(x, z int32) Chunk          { return Chunk{Type: S_CHUNK_EXIT, X: x, Z: z} }
func NewViewCenter(x, z int32) ViewCenter { return ViewCenter{Type: S_VIEW_CENTER, X: x, Z: z} }

func NewError(code, msg string) Error {
	return Error{Type: S_ERROR, Code: code, Message: msg}
}

// Encode serializes an outbound message.
func Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}
