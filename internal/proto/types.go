package proto

// HeaderMagic is the first byte of every frame header.
const HeaderMagic = byte('P')

// HeaderSize: magic(1) + flags(1) + level(1) + index(1) + payload size(4).
const HeaderSize = 8

// MaxPayloadSize 16MiB.
const MaxPayloadSize = 1024 * 1024 * 16

// Header flag bits. 0x08 and 0x80 are reserved: never set on encode,
// ignored on decode.
const (
	FlagJSON     = 0x01 // packet body serialized as JSON instead of the binary codec
	FlagCipher   = 0x02 // payload sealed with the session cipher
	FlagYAML     = 0x04 // packet body serialized as YAML
	FlagLZ4      = 0x10 // payload compressed with lz4
	FlagBrotli   = 0x20 // payload compressed with brotli
	FlagNoHeader = 0x40 // raw payload, compression bits ignored
)

// MaxCompressionLevel bounds the level byte (zlib scale).
const MaxCompressionLevel = 9

// PacketType: 1-byte packet discriminator, first byte of every
// decompressed payload.
type PacketType uint8

const (
	TypeHello             PacketType = 0x01
	TypeChallenge         PacketType = 0x02
	TypeChallengeResponse PacketType = 0x03
	TypeAuthResult        PacketType = 0x04
	TypePing              PacketType = 0x05
	TypePong              PacketType = 0x06
	TypeDisconnect        PacketType = 0x07
	TypeDamage            PacketType = 0x10
	TypeDraw              PacketType = 0x11
	TypeAck               PacketType = 0x12
)

// Hello opens a session: client identity, digests it can answer,
// optional ML-KEM encapsulation key when it wants an encrypted session.
type Hello struct {
	Username string   `json:"username" yaml:"username"`
	Digests  []string `json:"digests" yaml:"digests"`
	KemKey   []byte   `json:"kem_key,omitempty" yaml:"kem_key,omitempty"`
}

// Challenge carries the server salt and the digest the client must use.
// KemCiphertext is set when the server accepted the cipher offer.
type Challenge struct {
	Salt          []byte `json:"salt" yaml:"salt"`
	Digest        string `json:"digest" yaml:"digest"`
	KemCiphertext []byte `json:"kem_ciphertext,omitempty" yaml:"kem_ciphertext,omitempty"`
}

// ChallengeResponse: digest of (secret, server salt, client salt).
type ChallengeResponse struct {
	Response   []byte `json:"response" yaml:"response"`
	ClientSalt []byte `json:"client_salt" yaml:"client_salt"`
}

// AuthResult is terminal for the handshake.
type AuthResult struct {
	OK     bool   `json:"ok" yaml:"ok"`
	Reason string `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// Ping echo; EchoMillis comes back unchanged in the Pong.
type Ping struct {
	EchoMillis int64 `json:"echo_ms" yaml:"echo_ms"`
}

// Pong answers a Ping. ServerMillis is the remote clock at reply time.
type Pong struct {
	EchoMillis   int64 `json:"echo_ms" yaml:"echo_ms"`
	ServerMillis int64 `json:"server_ms" yaml:"server_ms"`
}

// Disconnect tells the peer why the connection is going away.
type Disconnect struct {
	Reason string `json:"reason" yaml:"reason"`
}

// Damage: a changed rectangle on a window, pending capture.
type Damage struct {
	WID      uint32 `json:"wid" yaml:"wid"`
	X        int32  `json:"x" yaml:"x"`
	Y        int32  `json:"y" yaml:"y"`
	W        uint32 `json:"w" yaml:"w"`
	H        uint32 `json:"h" yaml:"h"`
	AtMillis int64  `json:"at_ms" yaml:"at_ms"`
}

// Draw delivers one encoded update for a window region.
// Data is opaque: whatever the capture backend produced.
type Draw struct {
	WID      uint32 `json:"wid" yaml:"wid"`
	X        int32  `json:"x" yaml:"x"`
	Y        int32  `json:"y" yaml:"y"`
	W        uint32 `json:"w" yaml:"w"`
	H        uint32 `json:"h" yaml:"h"`
	Encoding string `json:"encoding" yaml:"encoding"`
	Seq      uint64 `json:"seq" yaml:"seq"`
	Data     []byte `json:"data" yaml:"data"`
}

// Ack confirms a Draw was decoded; DecodeMillis feeds the server's
// batching statistics.
type Ack struct {
	WID          uint32 `json:"wid" yaml:"wid"`
	Seq          uint64 `json:"seq" yaml:"seq"`
	DecodeMillis uint32 `json:"decode_ms" yaml:"decode_ms"`
}
