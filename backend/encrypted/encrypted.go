// Package encrypted implements the ENCRYPTED_STREAM resolver helper
// (§4.1): a block- or stream-cipher-wrapped parent, decrypted with a key
// resolved through the explicit attribute -> key-chain -> callback order
// (§4.3), decoded in full once and served as a seekable in-memory
// window.
//
// Grounded on rclone's backend/crypt's cipher.go: its block-at-a-time
// seekable decrypt loop and scrypt-based password stretching are the
// shape this package generalizes from "one obscured nacl/secretbox
// stream format" to "a small family of standard block/stream ciphers
// named by an encryption_method attribute".
package encrypted

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/des"
	"crypto/rc4"
	"fmt"
	"io"

	"github.com/rfjakob/eme"
	"golang.org/x/crypto/blowfish"
	"golang.org/x/crypto/scrypt"

	"github.com/log2timeline/dfvfs-go/backend"
	"github.com/log2timeline/dfvfs-go/dfvfserrors"
	"github.com/log2timeline/dfvfs-go/pathspec"
	"github.com/log2timeline/dfvfs-go/stream"
)

func init() {
	backend.RegisterResolverHelper(&backend.ResolverHelper{
		Type:          pathspec.ENCRYPTED_STREAM,
		NewFileObject: newFileObject,
	})
}

// Supported method names (§6 encryption_method attribute values).
const (
	MethodAES      = "aes"
	MethodBlowfish = "blowfish"
	MethodDES3     = "des3"
	MethodRC4      = "rc4"
)

// Supported cipher_mode values for block ciphers. XTS is approximated
// with rfjakob/eme's wide-block tweakable transform: no real XTS
// implementation exists anywhere in the pack, and eme is the nearest
// real, already-vendored wide-block primitive (documented here, not a
// drop-in XTS).
const (
	ModeCBC = "cbc"
	ModeCFB = "cfb"
	ModeOFB = "ofb"
	ModeECB = "ecb"
	ModeXTS = "xts"
)

const scryptSalt = "dfvfs-go encrypted stream"

func newFileObject(ctx context.Context, spec *pathspec.PathSpec, rc backend.Context) (stream.Stream, error) {
	method := spec.AttrString(pathspec.AttrEncryptionMethod)
	mode := spec.AttrString(pathspec.AttrCipherMode)
	if mode == "" {
		mode = ModeCBC
	}

	key, err := resolveKey(spec, rc, method)
	if err != nil {
		return nil, err
	}

	parent, err := rc.OpenParentStream(ctx, spec)
	if err != nil {
		return nil, err
	}
	defer parent.Close()

	if _, err := parent.Seek(0, stream.SeekStart); err != nil {
		return nil, err
	}
	ciphertext, err := io.ReadAll(parent)
	if err != nil {
		return nil, err
	}

	plaintext, err := decrypt(method, mode, key, spec.AttrBytes(pathspec.AttrInitializationVector), ciphertext)
	if err != nil {
		return nil, err
	}

	return &bufferStream{data: plaintext}, nil
}

func resolveKey(spec *pathspec.PathSpec, rc backend.Context, method string) ([]byte, error) {
	if key := spec.AttrBytes(pathspec.AttrKey); len(key) > 0 {
		return key, nil
	}
	if password, ok := rc.Credential(spec, pathspec.AttrPassword); ok {
		return scrypt.Key([]byte(password), []byte(scryptSalt), 16384, 8, 1, keySizeFor(method))
	}
	return nil, fmt.Errorf("no key or password available for %s stream: %w", method, dfvfserrors.ErrEncryptedVolumeLocked)
}

func keySizeFor(method string) int {
	switch method {
	case MethodAES:
		return 32
	case MethodDES3:
		return 24
	case MethodBlowfish:
		return 32
	case MethodRC4:
		return 16
	default:
		return 32
	}
}

func newBlockCipher(method string, key []byte) (cipher.Block, error) {
	switch method {
	case MethodAES:
		return aes.NewCipher(key)
	case MethodDES3:
		return des.NewTripleDESCipher(key)
	case MethodBlowfish:
		return blowfish.NewCipher(key)
	default:
		return nil, fmt.Errorf("%s is not a block cipher: %w", method, dfvfserrors.ErrUnsupportedType)
	}
}

func decrypt(method, mode string, key, iv, ciphertext []byte) ([]byte, error) {
	if method == MethodRC4 {
		c, err := rc4.NewCipher(key)
		if err != nil {
			return nil, fmt.Errorf("rc4 key: %w", err)
		}
		plaintext := make([]byte, len(ciphertext))
		c.XORKeyStream(plaintext, ciphertext)
		return plaintext, nil
	}

	block, err := newBlockCipher(method, key)
	if err != nil {
		return nil, err
	}
	blockSize := block.BlockSize()

	if mode == ModeXTS {
		tweak := make([]byte, blockSize)
		copy(tweak, iv)
		if len(ciphertext)%blockSize != 0 {
			return nil, fmt.Errorf("xts ciphertext length %d not a multiple of block size %d: %w", len(ciphertext), blockSize, dfvfserrors.ErrInvalidData)
		}
		return eme.Transform(block, tweak, ciphertext, eme.DirectionDecrypt), nil
	}

	if len(iv) < blockSize {
		iv = append(iv, make([]byte, blockSize-len(iv))...)
	}
	iv = iv[:blockSize]

	switch mode {
	case ModeCBC:
		if len(ciphertext)%blockSize != 0 {
			return nil, fmt.Errorf("cbc ciphertext length %d not a multiple of block size %d: %w", len(ciphertext), blockSize, dfvfserrors.ErrInvalidData)
		}
		plaintext := make([]byte, len(ciphertext))
		cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)
		return plaintext, nil
	case ModeCFB:
		plaintext := make([]byte, len(ciphertext))
		cipher.NewCFBDecrypter(block, iv).XORKeyStream(plaintext, ciphertext)
		return plaintext, nil
	case ModeOFB:
		plaintext := make([]byte, len(ciphertext))
		cipher.NewOFB(block, iv).XORKeyStream(plaintext, ciphertext)
		return plaintext, nil
	case ModeECB:
		if len(ciphertext)%blockSize != 0 {
			return nil, fmt.Errorf("ecb ciphertext length %d not a multiple of block size %d: %w", len(ciphertext), blockSize, dfvfserrors.ErrInvalidData)
		}
		plaintext := make([]byte, len(ciphertext))
		for off := 0; off < len(ciphertext); off += blockSize {
			block.Decrypt(plaintext[off:off+blockSize], ciphertext[off:off+blockSize])
		}
		return plaintext, nil
	default:
		return nil, fmt.Errorf("cipher mode %q: %w", mode, dfvfserrors.ErrUnsupportedType)
	}
}

type bufferStream struct {
	data []byte
	pos  int64
}

func (b *bufferStream) Read(p []byte) (int, error) {
	if b.pos >= int64(len(b.data)) {
		return 0, io.EOF
	}
	n := copy(p, b.data[b.pos:])
	b.pos += int64(n)
	return n, nil
}

func (b *bufferStream) Seek(offset int64, whence int) (int64, error) {
	var base int64
	switch whence {
	case stream.SeekStart:
		base = 0
	case stream.SeekCurrent:
		base = b.pos
	case stream.SeekEnd:
		base = int64(len(b.data))
	default:
		return 0, fmt.Errorf("invalid whence %d", whence)
	}
	pos := base + offset
	if pos < 0 {
		return 0, fmt.Errorf("negative seek position")
	}
	b.pos = pos
	return pos, nil
}

func (b *bufferStream) Close() error         { return nil }
func (b *bufferStream) Offset() int64        { return b.pos }
func (b *bufferStream) Size() (int64, error) { return int64(len(b.data)), nil }

var _ stream.Stream = (*bufferStream)(nil)
