package pathspec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequiresParentRule(t *testing.T) {
	_, err := New(OS, nil, map[string]any{AttrLocation: "/tmp/img.raw"})
	require.NoError(t, err)

	os0, err := New(OS, nil, map[string]any{AttrLocation: "/tmp/img.raw"})
	require.NoError(t, err)

	// OS must not have a parent.
	_, err = New(OS, os0, map[string]any{AttrLocation: "/tmp/img.raw"})
	assert.Error(t, err)

	// DATA_RANGE requires a parent.
	_, err = New(DATA_RANGE, nil, map[string]any{AttrRangeOffset: int64(0), AttrRangeSize: int64(10)})
	assert.Error(t, err)
}

func TestNewValidatesRequiredAttrs(t *testing.T) {
	_, err := New(DATA_RANGE, mustOS(t), map[string]any{AttrRangeOffset: int64(0)})
	assert.Error(t, err, "range_size missing")

	dr, err := New(DATA_RANGE, mustOS(t), map[string]any{
		AttrRangeOffset: int64(32256),
		AttrRangeSize:   int64(8577654784),
	})
	require.NoError(t, err)
	assert.EqualValues(t, 32256, dr.AttrInt64(AttrRangeOffset))
}

func TestUnsupportedType(t *testing.T) {
	_, err := New(Type("BOGUS"), nil, nil)
	assert.Error(t, err)
}

func TestComparableRoundTrip(t *testing.T) {
	osSpec, err := New(OS, nil, map[string]any{AttrLocation: "image.qcow2"})
	require.NoError(t, err)
	qcow, err := New(QCOW, osSpec, nil)
	require.NoError(t, err)
	part, err := New(TSK_PARTITION, qcow, map[string]any{AttrLocation: "/p1"})
	require.NoError(t, err)
	tsk, err := New(TSK, part, map[string]any{AttrLocation: "/Users/MyUser/MyFile.txt"})
	require.NoError(t, err)

	comp := tsk.Comparable()
	parsed, err := Parse(comp)
	require.NoError(t, err)
	assert.Equal(t, comp, parsed.Comparable())
	assert.True(t, tsk.Equal(parsed))
}

func TestComparableSortsKeysAndHexEncodesBytes(t *testing.T) {
	osSpec, err := New(OS, nil, map[string]any{AttrLocation: "disk.raw"})
	require.NoError(t, err)
	enc, err := New(ENCRYPTED_STREAM, osSpec, map[string]any{
		AttrEncryptionMethod:      "aes",
		AttrCipherMode:            "cbc",
		AttrKey:                   []byte{0xde, 0xad, 0xbe, 0xef},
		AttrInitializationVector: []byte{0x01},
	})
	require.NoError(t, err)
	comp := enc.Comparable()
	// cipher_mode < encryption_method < initialization_vector < key ASCII-sorted
	assert.Contains(t, comp, "cipher_mode=cbc, encryption_method=aes, initialization_vector=0x01, key=0xdeadbeef")
}

func TestEqualityBySeparatelyConstructedChains(t *testing.T) {
	osA, err := New(OS, nil, map[string]any{AttrLocation: "a.raw"})
	require.NoError(t, err)
	osB, err := New(OS, nil, map[string]any{AttrLocation: "a.raw"})
	require.NoError(t, err)
	rangeA, err := New(DATA_RANGE, osA, map[string]any{AttrRangeOffset: int64(0), AttrRangeSize: int64(10)})
	require.NoError(t, err)
	rangeB, err := New(DATA_RANGE, osB, map[string]any{AttrRangeOffset: int64(0), AttrRangeSize: int64(10)})
	require.NoError(t, err)
	assert.True(t, rangeA.Equal(rangeB))
}

func TestVolumeSystemRequiresOneOfLocators(t *testing.T) {
	osSpec, err := New(OS, nil, map[string]any{AttrLocation: "disk.raw"})
	require.NoError(t, err)
	_, err = New(GPT, osSpec, map[string]any{})
	assert.Error(t, err)

	gpt, err := New(GPT, osSpec, map[string]any{AttrVolumeIndex: int64(1)})
	require.NoError(t, err)
	assert.EqualValues(t, 1, gpt.AttrInt64(AttrVolumeIndex))
}

func TestSQLiteBlobRequiresRowSelector(t *testing.T) {
	osSpec, err := New(OS, nil, map[string]any{AttrLocation: "evidence.db"})
	require.NoError(t, err)
	_, err = New(SQLITE_BLOB, osSpec, map[string]any{
		AttrTableName:  "attachments",
		AttrColumnName: "data",
	})
	assert.Error(t, err)

	blob, err := New(SQLITE_BLOB, osSpec, map[string]any{
		AttrTableName:  "attachments",
		AttrColumnName: "data",
		AttrRowIndex:   int64(42),
	})
	require.NoError(t, err)
	assert.EqualValues(t, 42, blob.AttrInt64(AttrRowIndex))
}

func mustOS(t *testing.T) *PathSpec {
	t.Helper()
	os0, err := New(OS, nil, map[string]any{AttrLocation: "image.raw"})
	require.NoError(t, err)
	return os0
}
