package ebml

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestReadVInt mirrors luispater-matroska-go/ebml_test.go's table-driven
// VINT coverage (1/2/4/8-byte widths, keepMarker both ways, and the
// truncated/invalid-lead-byte error cases), since the underlying encoding
// is unchanged from the teacher's own tests.
func TestReadVInt(t *testing.T) {
	cases := []struct {
		name       string
		data       []byte
		keepMarker bool
		want       uint64
		wantWidth  int
		wantErr    bool
	}{
		{"1-byte, keep marker", []byte{0x81}, true, 0x81, 1, false},
		{"1-byte, strip marker", []byte{0x81}, false, 0x01, 1, false},
		{"2-byte, strip marker", []byte{0x40, 0x7f}, false, 0x7f, 2, false},
		{"4-byte, strip marker", []byte{0x10, 0x00, 0x00, 0x01}, false, 0x01, 4, false},
		{"8-byte, strip marker", []byte{0x01, 0, 0, 0, 0, 0, 0, 0x2a}, false, 0x2a, 8, false},
		{"zero lead byte is invalid", []byte{0x00, 0x01}, false, 0, 0, true},
		{"truncated multi-byte", []byte{0x40}, false, 0, 0, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v, w, err := readVInt(bytes.NewReader(tc.data), tc.keepMarker)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if v != tc.want || w != tc.wantWidth {
				t.Errorf("got (%d,%d), want (%d,%d)", v, w, tc.want, tc.wantWidth)
			}
		})
	}
}

func TestVIntRoundTrip(t *testing.T) {
	values := []uint64{0, 1, 126, 127, 16383, 1 << 20, 1<<28 - 2}
	for _, v := range values {
		buf, err := appendVInt(nil, v, 0)
		require.NoError(t, err)
		got, _, err := readVInt(bytes.NewReader(buf), false)
		require.NoError(t, err)
		require.Equal(t, v, got)
	}
}

func TestWriterReaderElementRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.WriteUInt(IDTrackNumber, 7))
	require.NoError(t, w.WriteString(IDCodecID, "V_MPEG4/ISO/AVC"))
	require.NoError(t, w.WriteFloat64(IDSamplingFrequency, 48000))

	r := NewBytesReader(buf.Bytes())

	el, err := r.ReadElement()
	require.NoError(t, err)
	require.EqualValues(t, IDTrackNumber, el.ID)
	v, err := el.ReadUInt()
	require.NoError(t, err)
	require.EqualValues(t, 7, v)

	el, err = r.ReadElement()
	require.NoError(t, err)
	require.Equal(t, "V_MPEG4/ISO/AVC", el.ReadString())

	el, err = r.ReadElement()
	require.NoError(t, err)
	f, err := el.ReadFloat()
	require.NoError(t, err)
	require.Equal(t, float64(48000), f)
}

func TestVoidRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.WriteVoid(10))
	require.Len(t, buf.Bytes(), 10)

	r := NewBytesReader(buf.Bytes())
	el, err := r.ReadElementHeader()
	require.NoError(t, err)
	require.EqualValues(t, IDVoidElement, el.ID)
	require.EqualValues(t, 8, el.Size)
}
